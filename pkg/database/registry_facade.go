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

// RegistryFacade persists Registry rows.
type RegistryFacade struct {
	db *gorm.DB
}

func NewRegistryFacade(db *gorm.DB) *RegistryFacade {
	return &RegistryFacade{db: db}
}

func (f *RegistryFacade) Create(ctx context.Context, r *model.Registry) error {
	if r.ID == uuid.Nil {
		r.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Create(r).Error
}

func (f *RegistryFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.Registry, error) {
	var r model.Registry
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("registry %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (f *RegistryFacade) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*model.Registry, error) {
	var registries []*model.Registry
	err := f.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name").Find(&registries).Error
	return registries, err
}
