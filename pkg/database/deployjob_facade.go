/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// DeployJobFacade persists DeployJob rows. The state machine mirrors
// CopyJobFacade's (4.7: "state machine identical to 4.5").
type DeployJobFacade struct {
	db *gorm.DB
}

func NewDeployJobFacade(db *gorm.DB) *DeployJobFacade {
	return &DeployJobFacade{db: db}
}

func (f *DeployJobFacade) Create(ctx context.Context, job *model.DeployJob) error {
	if job.ID == uuid.Nil {
		job.ID = model.NewID()
	}
	if job.Status == "" {
		job.Status = model.DeployJobStatusPending
	}
	return f.db.WithContext(ctx).Create(job).Error
}

func (f *DeployJobFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.DeployJob, error) {
	var job model.DeployJob
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("deploy job %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (f *DeployJobFacade) ListByEnvironment(ctx context.Context, environmentID uuid.UUID, limit int) ([]*model.DeployJob, error) {
	var jobs []*model.DeployJob
	query := f.db.WithContext(ctx).
		Where("environment_id = ?", environmentID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

func (f *DeployJobFacade) StartTransition(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := f.db.WithContext(ctx).Model(&model.DeployJob{}).
		Where("id = ? AND status = ?", id, model.DeployJobStatusPending).
		Updates(map[string]interface{}{
			"status":     model.DeployJobStatusInProgress,
			"started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.Conflict("deploy job %s is not pending", id)
	}
	return nil
}

func (f *DeployJobFacade) CompleteTransition(ctx context.Context, id uuid.UUID, status model.DeployJobStatus) error {
	if !status.IsTerminal() {
		return apierrors.Internal(nil, "CompleteTransition requires a terminal status, got %s", status)
	}
	now := time.Now().UTC()
	res := f.db.WithContext(ctx).Model(&model.DeployJob{}).
		Where("id = ? AND status = ?", id, model.DeployJobStatusInProgress).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.Conflict("deploy job %s is not in_progress", id)
	}
	return nil
}

func (f *DeployJobFacade) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return f.db.WithContext(ctx).Model(&model.DeployJob{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error
}
