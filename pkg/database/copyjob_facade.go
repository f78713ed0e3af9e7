/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// CopyJobFilter narrows ListCopyJobs. Zero-value fields are omitted
// from the WHERE clause.
type CopyJobFilter struct {
	TenantID      *uuid.UUID
	EnvironmentID *uuid.UUID
	Status        *model.CopyJobStatus
	Limit         int
	Offset        int
}

// CopyJobFacade persists CopyJob rows and enforces the terminal-state
// transition invariants from spec §3/§8 (completed_at set iff terminal,
// status becomes terminal at most once).
type CopyJobFacade struct {
	db *gorm.DB
}

func NewCopyJobFacade(db *gorm.DB) *CopyJobFacade {
	return &CopyJobFacade{db: db}
}

func (f *CopyJobFacade) Create(ctx context.Context, job *model.CopyJob) error {
	if job.ID == uuid.Nil {
		job.ID = model.NewID()
	}
	if job.Status == "" {
		job.Status = model.CopyJobStatusPending
	}
	return f.db.WithContext(ctx).Create(job).Error
}

func (f *CopyJobFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.CopyJob, error) {
	var job model.CopyJob
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("copy job %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List applies filter's non-nil fields as an AND-ed equality clause,
// built with squirrel the way the teacher's handlers build ad-hoc
// status filters before delegating to the database layer.
func (f *CopyJobFacade) List(ctx context.Context, filter CopyJobFilter) ([]*model.CopyJob, error) {
	eq := sqrl.Eq{}
	if filter.TenantID != nil {
		eq["tenant_id"] = *filter.TenantID
	}
	if filter.EnvironmentID != nil {
		eq["environment_id"] = *filter.EnvironmentID
	}
	if filter.Status != nil {
		eq["status"] = *filter.Status
	}

	sql, args, err := sqrl.Select("*").From(model.TableNameCopyJob).Where(eq).
		OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}

	query := f.db.WithContext(ctx).Raw(sql, args...)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var jobs []*model.CopyJob
	err = query.Scan(&jobs).Error
	return jobs, err
}

// StartTransition moves a pending job to in_progress, stamping
// started_at. Only a pending job admits this transition (4.5).
func (f *CopyJobFacade) StartTransition(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := f.db.WithContext(ctx).Model(&model.CopyJob{}).
		Where("id = ? AND status = ?", id, model.CopyJobStatusPending).
		Updates(map[string]interface{}{
			"status":     model.CopyJobStatusInProgress,
			"started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.Conflict("copy job %s is not pending", id)
	}
	return nil
}

// CompleteTransition moves an in_progress job to a terminal status,
// stamping completed_at. It is a no-op error (Conflict) if the job is
// already terminal, preserving "status becomes terminal at most once".
func (f *CopyJobFacade) CompleteTransition(ctx context.Context, id uuid.UUID, status model.CopyJobStatus) error {
	if !status.IsTerminal() {
		return apierrors.Internal(nil, "CompleteTransition requires a terminal status, got %s", status)
	}
	now := time.Now().UTC()
	res := f.db.WithContext(ctx).Model(&model.CopyJob{}).
		Where("id = ? AND status = ?", id, model.CopyJobStatusInProgress).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.Conflict("copy job %s is not in_progress", id)
	}
	return nil
}

// CancelPending moves a pending job straight to cancelled without ever
// admitting it (4.5/5: "a cancel on a pending job transitions it to
// cancelled without spawning any subprocess"). A no-op Conflict if the
// job is no longer pending; callers should treat that as "fall through
// to the in_progress cancellation path".
func (f *CopyJobFacade) CancelPending(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := f.db.WithContext(ctx).Model(&model.CopyJob{}).
		Where("id = ? AND status = ?", id, model.CopyJobStatusPending).
		Updates(map[string]interface{}{
			"status":       model.CopyJobStatusCancelled,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.Conflict("copy job %s is not pending", id)
	}
	return nil
}

// RequestCancel flips the cancel flag idempotently. Cancelling a
// terminal job is a no-op success (5: "cooperative, idempotent").
func (f *CopyJobFacade) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return f.db.WithContext(ctx).Model(&model.CopyJob{}).
		Where("id = ? AND status IN ?", id, []model.CopyJobStatus{model.CopyJobStatusPending, model.CopyJobStatusInProgress}).
		Update("cancel_requested", true).Error
}

// AttachRelease records the globally-unique release id on a successful
// release-job copy.
func (f *CopyJobFacade) AttachRelease(ctx context.Context, id uuid.UUID, releaseID string) error {
	return f.db.WithContext(ctx).Model(&model.CopyJob{}).
		Where("id = ?", id).
		Update("release_id", releaseID).Error
}
