/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameRelease = "releases"

// ReleaseStatus tracks a Release from assembly through deployment.
type ReleaseStatus string

const (
	ReleaseStatusDraft    ReleaseStatus = "draft"
	ReleaseStatusReleased ReleaseStatus = "released"
	ReleaseStatusDeployed ReleaseStatus = "deployed"
)

// Release is the pinned-digest projection of exactly one successful
// CopyJob (spec §3, resolving the open question in favor of the
// copy_job_id-keyed model). ReleaseID is globally unique and
// caller-chosen; the manifest itself is derived, not stored, per 4.8.
type Release struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID     `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	CopyJobID uuid.UUID     `gorm:"column:copy_job_id;type:uuid;not null;uniqueIndex" json:"copy_job_id"`
	ReleaseID string        `gorm:"column:release_id;not null;uniqueIndex" json:"release_id"`
	Status    ReleaseStatus `gorm:"column:status;not null;default:draft" json:"status"`
	Notes     string        `gorm:"column:notes" json:"notes"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*Release) TableName() string { return TableNameRelease }
