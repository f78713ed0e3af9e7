/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameCopyJob = "copy_jobs"

// CopyJobStatus is the Copy Job Runner state machine (4.5):
// pending -> in_progress -> {success, failed, cancelled}, all terminal
// states are sinks.
type CopyJobStatus string

const (
	CopyJobStatusPending    CopyJobStatus = "pending"
	CopyJobStatusInProgress CopyJobStatus = "in_progress"
	CopyJobStatusSuccess    CopyJobStatus = "success"
	CopyJobStatusFailed     CopyJobStatus = "failed"
	CopyJobStatusCancelled  CopyJobStatus = "cancelled"
)

// IsTerminal reports whether s is one of the three sink states.
func (s CopyJobStatus) IsTerminal() bool {
	switch s {
	case CopyJobStatusSuccess, CopyJobStatusFailed, CopyJobStatusCancelled:
		return true
	default:
		return false
	}
}

// CopyJob is one execution of a bundle version to a target registry
// tag within an environment (spec §3). completed_at is set iff status
// is terminal; once terminal no attribute mutates except via
// CopyJobLog append.
type CopyJob struct {
	ID               uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID     `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	BundleVersionID  uuid.UUID     `gorm:"column:bundle_version_id;type:uuid;not null;index" json:"bundle_version_id"`
	EnvironmentID    uuid.UUID     `gorm:"column:environment_id;type:uuid;not null;index" json:"environment_id"`
	SourceRegistryID uuid.UUID     `gorm:"column:source_registry_id;type:uuid;not null" json:"source_registry_id"`
	TargetRegistryID uuid.UUID     `gorm:"column:target_registry_id;type:uuid;not null" json:"target_registry_id"`
	TargetTag        string        `gorm:"column:target_tag;not null" json:"target_tag"`
	Status           CopyJobStatus `gorm:"column:status;not null;index" json:"status"`
	IsReleaseJob     bool          `gorm:"column:is_release_job;not null;default:false" json:"is_release_job"`
	SourceCopyJobID  *uuid.UUID    `gorm:"column:source_copy_job_id;type:uuid" json:"source_copy_job_id,omitempty"`
	ReleaseID        *string       `gorm:"column:release_id" json:"release_id,omitempty"`
	ReleaseNotes     string        `gorm:"column:release_notes" json:"release_notes"`
	TriggeredBy      string        `gorm:"column:triggered_by" json:"triggered_by"`
	CancelRequested  bool          `gorm:"column:cancel_requested;not null;default:false" json:"-"`
	StartedAt        *time.Time    `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time    `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*CopyJob) TableName() string { return TableNameCopyJob }

const TableNameCopyJobImage = "copy_job_images"

// CopyJobImageStatus mirrors CopyJobStatus's terminal shape for a
// single image within a job's fan-out.
type CopyJobImageStatus string

const (
	CopyJobImageStatusPending    CopyJobImageStatus = "pending"
	CopyJobImageStatusInProgress CopyJobImageStatus = "in_progress"
	CopyJobImageStatusSuccess    CopyJobImageStatus = "success"
	CopyJobImageStatusFailed     CopyJobImageStatus = "failed"
	CopyJobImageStatusCancelled  CopyJobImageStatus = "cancelled"
)

// CopyJobImage is a per-image execution record owned by a CopyJob
// (spec §3). Source/target fields are a snapshot taken at job
// creation time so later plan mutation (if any) cannot rewrite
// history.
type CopyJobImage struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CopyJobID    uuid.UUID          `gorm:"column:copy_job_id;type:uuid;not null;index" json:"copy_job_id"`
	SourceImage  string             `gorm:"column:source_image;not null" json:"source_image"`
	SourceTag    string             `gorm:"column:source_tag;not null" json:"source_tag"`
	TargetImage  string             `gorm:"column:target_image;not null" json:"target_image"`
	TargetTag    string             `gorm:"column:target_tag;not null" json:"target_tag"`
	SourceSHA256 string             `gorm:"column:source_sha256" json:"source_sha256,omitempty"`
	TargetSHA256 string             `gorm:"column:target_sha256" json:"target_sha256,omitempty"`
	CopyStatus   CopyJobImageStatus `gorm:"column:copy_status;not null" json:"copy_status"`
	ErrorMessage string             `gorm:"column:error_message" json:"error_message,omitempty"`
	Attempts     int                `gorm:"column:attempts;not null;default:0" json:"attempts"`
	BytesCopied  int64              `gorm:"column:bytes_copied;not null;default:0" json:"bytes_copied"`
	CopiedAt     *time.Time         `gorm:"column:copied_at" json:"copied_at,omitempty"`
}

func (*CopyJobImage) TableName() string { return TableNameCopyJobImage }

const TableNameCopyJobLog = "copy_job_logs"

// CopyJobLog is an append-only line log per CopyJob, ordered by
// Seq (4.2's durable side of the Log Bus).
type CopyJobLog struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CopyJobID uuid.UUID `gorm:"column:copy_job_id;type:uuid;not null;index" json:"copy_job_id"`
	Seq       int64     `gorm:"column:seq;not null" json:"seq"`
	Line      string    `gorm:"column:line;not null" json:"line"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (*CopyJobLog) TableName() string { return TableNameCopyJobLog }
