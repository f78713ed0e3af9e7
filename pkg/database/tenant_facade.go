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

// TenantFacade persists Tenant rows.
type TenantFacade struct {
	db *gorm.DB
}

func NewTenantFacade(db *gorm.DB) *TenantFacade {
	return &TenantFacade{db: db}
}

func (f *TenantFacade) Create(ctx context.Context, t *model.Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Create(t).Error
}

func (f *TenantFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("tenant %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f *TenantFacade) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var t model.Tenant
	err := f.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("tenant %q not found", slug)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f *TenantFacade) List(ctx context.Context) ([]*model.Tenant, error) {
	var tenants []*model.Tenant
	err := f.db.WithContext(ctx).Order("name").Find(&tenants).Error
	return tenants, err
}
