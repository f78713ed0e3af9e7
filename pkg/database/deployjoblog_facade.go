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
)

// DeployJobLogFacade is the durable side of the Log Bus for Deploy
// Jobs, mirroring CopyJobLogFacade.
type DeployJobLogFacade struct {
	db *gorm.DB
}

func NewDeployJobLogFacade(db *gorm.DB) *DeployJobLogFacade {
	return &DeployJobLogFacade{db: db}
}

func (f *DeployJobLogFacade) Append(ctx context.Context, deployJobID uuid.UUID, seq int64, line string) error {
	entry := &model.DeployJobLog{
		ID:          model.NewID(),
		DeployJobID: deployJobID,
		Seq:         seq,
		Line:        line,
	}
	return f.db.WithContext(ctx).Create(entry).Error
}

func (f *DeployJobLogFacade) ListFrom(ctx context.Context, deployJobID uuid.UUID, seq int64) ([]*model.DeployJobLog, error) {
	var lines []*model.DeployJobLog
	err := f.db.WithContext(ctx).
		Where("deploy_job_id = ? AND seq >= ?", deployJobID, seq).
		Order("seq ASC").
		Find(&lines).Error
	return lines, err
}
