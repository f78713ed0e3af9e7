/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameDeployJob = "deploy_jobs"

// DeployJobStatus shares the same terminal shape as CopyJobStatus
// (spec §4.7: "state machine identical to 4.5").
type DeployJobStatus string

const (
	DeployJobStatusPending    DeployJobStatus = "pending"
	DeployJobStatusInProgress DeployJobStatus = "in_progress"
	DeployJobStatusSuccess    DeployJobStatus = "success"
	DeployJobStatusFailed     DeployJobStatus = "failed"
	DeployJobStatusCancelled  DeployJobStatus = "cancelled"
)

func (s DeployJobStatus) IsTerminal() bool {
	switch s {
	case DeployJobStatusSuccess, DeployJobStatusFailed, DeployJobStatusCancelled:
		return true
	default:
		return false
	}
}

// DeployJob is one invocation of the deploy toolchain for an
// environment, optionally bound to a Release (spec §3).
type DeployJob struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	EnvironmentID   uuid.UUID       `gorm:"column:environment_id;type:uuid;not null;index" json:"environment_id"`
	ReleaseID       *uuid.UUID      `gorm:"column:release_id;type:uuid" json:"release_id,omitempty"`
	Status          DeployJobStatus `gorm:"column:status;not null;index" json:"status"`
	DryRun          bool            `gorm:"column:dry_run;not null;default:false" json:"dry_run"`
	TriggeredBy     string          `gorm:"column:triggered_by" json:"triggered_by"`
	Notes           string          `gorm:"column:notes" json:"notes"`
	CancelRequested bool            `gorm:"column:cancel_requested;not null;default:false" json:"-"`
	StartedAt       *time.Time      `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*DeployJob) TableName() string { return TableNameDeployJob }

const TableNameDeployJobLog = "deploy_job_logs"

// DeployJobLog is an append-only line log per DeployJob, ordered by
// Seq, mirroring CopyJobLog.
type DeployJobLog struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeployJobID uuid.UUID `gorm:"column:deploy_job_id;type:uuid;not null;index" json:"deploy_job_id"`
	Seq         int64     `gorm:"column:seq;not null" json:"seq"`
	Line        string    `gorm:"column:line;not null" json:"line"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (*DeployJobLog) TableName() string { return TableNameDeployJobLog }

const TableNameDeployJobDiff = "deploy_job_diffs"

// DeployJobDiff is the single unified-diff record persisted after step
// 4 of the toolchain succeeds (4.7): the file list plus patch text
// between the deploy-repo working tree and the branch tip at clone
// time.
type DeployJobDiff struct {
	ID          uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeployJobID uuid.UUID   `gorm:"column:deploy_job_id;type:uuid;not null;uniqueIndex" json:"deploy_job_id"`
	Files       StringSlice `gorm:"column:files;type:jsonb" json:"files"`
	Patch       string      `gorm:"column:patch" json:"patch"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (*DeployJobDiff) TableName() string { return TableNameDeployJobDiff }

const TableNameDeployJobImage = "deploy_job_images"

// DeployJobImage is one resolved image-path -> digest substitution
// applied by the deploy toolchain's build step (4.7 step 1).
type DeployJobImage struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeployJobID uuid.UUID `gorm:"column:deploy_job_id;type:uuid;not null;index" json:"deploy_job_id"`
	ImagePath   string    `gorm:"column:image_path;not null" json:"image_path"`
	Tag         string    `gorm:"column:tag;not null" json:"tag"`
	Digest      string    `gorm:"column:digest;not null" json:"digest"`
}

func (*DeployJobImage) TableName() string { return TableNameDeployJobImage }
