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

// EnvironmentFacade persists Environment rows.
type EnvironmentFacade struct {
	db *gorm.DB
}

func NewEnvironmentFacade(db *gorm.DB) *EnvironmentFacade {
	return &EnvironmentFacade{db: db}
}

func (f *EnvironmentFacade) Create(ctx context.Context, e *model.Environment) error {
	if e.ID == uuid.Nil {
		e.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Create(e).Error
}

func (f *EnvironmentFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.Environment, error) {
	var e model.Environment
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("environment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (f *EnvironmentFacade) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*model.Environment, error) {
	var environments []*model.Environment
	err := f.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name").Find(&environments).Error
	return environments, err
}
