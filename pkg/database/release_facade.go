/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// ReleaseFacade persists Release rows. Uniqueness of release_id is
// enforced at the schema level (uniqueIndex); this facade translates
// that constraint violation into the typed Conflict kind.
type ReleaseFacade struct {
	db *gorm.DB
}

func NewReleaseFacade(db *gorm.DB) *ReleaseFacade {
	return &ReleaseFacade{db: db}
}

func (f *ReleaseFacade) Create(ctx context.Context, r *model.Release) error {
	if r.ID == uuid.Nil {
		r.ID = model.NewID()
	}
	if r.Status == "" {
		r.Status = model.ReleaseStatusDraft
	}
	err := f.db.WithContext(ctx).Create(r).Error
	if isUniqueViolation(err) {
		return apierrors.Conflict("release_id %q already exists", r.ReleaseID)
	}
	return err
}

func (f *ReleaseFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.Release, error) {
	var r model.Release
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("release %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (f *ReleaseFacade) GetByCopyJobID(ctx context.Context, copyJobID uuid.UUID) (*model.Release, error) {
	var r model.Release
	err := f.db.WithContext(ctx).Where("copy_job_id = ?", copyJobID).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("release for copy job %s not found", copyJobID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (f *ReleaseFacade) MarkDeployed(ctx context.Context, id uuid.UUID) error {
	return f.db.WithContext(ctx).Model(&model.Release{}).
		Where("id = ?", id).
		Update("status", model.ReleaseStatusDeployed).Error
}

// isUniqueViolation recognizes Postgres's unique_violation SQLSTATE
// (23505) without importing the pgx error type directly, so callers
// stay decoupled from the driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
