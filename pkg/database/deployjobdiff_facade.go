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

// DeployJobDiffFacade persists the single unified-diff record produced
// after toolchain step 4 succeeds (4.7).
type DeployJobDiffFacade struct {
	db *gorm.DB
}

func NewDeployJobDiffFacade(db *gorm.DB) *DeployJobDiffFacade {
	return &DeployJobDiffFacade{db: db}
}

func (f *DeployJobDiffFacade) Create(ctx context.Context, diff *model.DeployJobDiff) error {
	if diff.ID == uuid.Nil {
		diff.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Create(diff).Error
}

func (f *DeployJobDiffFacade) GetByDeployJob(ctx context.Context, deployJobID uuid.UUID) (*model.DeployJobDiff, error) {
	var diff model.DeployJobDiff
	err := f.db.WithContext(ctx).Where("deploy_job_id = ?", deployJobID).First(&diff).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("diff for deploy job %s not found", deployJobID)
	}
	if err != nil {
		return nil, err
	}
	return &diff, nil
}

// DeployJobImageFacade persists the resolved image substitutions for a
// deploy job (4.7 step 1).
type DeployJobImageFacade struct {
	db *gorm.DB
}

func NewDeployJobImageFacade(db *gorm.DB) *DeployJobImageFacade {
	return &DeployJobImageFacade{db: db}
}

func (f *DeployJobImageFacade) CreateBatch(ctx context.Context, images []*model.DeployJobImage) error {
	for _, img := range images {
		if img.ID == uuid.Nil {
			img.ID = model.NewID()
		}
	}
	if len(images) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).Create(&images).Error
}

func (f *DeployJobImageFacade) ListByDeployJob(ctx context.Context, deployJobID uuid.UUID) ([]*model.DeployJobImage, error) {
	var images []*model.DeployJobImage
	err := f.db.WithContext(ctx).
		Where("deploy_job_id = ?", deployJobID).
		Order("image_path").
		Find(&images).Error
	return images, err
}
