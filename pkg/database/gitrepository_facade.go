/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// GitRepositoryFacade persists GitRepository rows.
type GitRepositoryFacade struct {
	db *gorm.DB
}

func NewGitRepositoryFacade(db *gorm.DB) *GitRepositoryFacade {
	return &GitRepositoryFacade{db: db}
}

func (f *GitRepositoryFacade) Create(ctx context.Context, r *model.GitRepository) error {
	if r.ID == uuid.Nil {
		r.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Create(r).Error
}

func (f *GitRepositoryFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.GitRepository, error) {
	var r model.GitRepository
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("git repository %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
