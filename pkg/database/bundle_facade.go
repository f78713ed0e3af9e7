/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// BundleFacade persists Bundle rows.
type BundleFacade struct {
	db *gorm.DB
}

func NewBundleFacade(db *gorm.DB) *BundleFacade {
	return &BundleFacade{db: db}
}

func (f *BundleFacade) Create(ctx context.Context, b *model.Bundle) error {
	if b.ID == uuid.Nil {
		b.ID = model.NewID()
	}
	if b.CurrentVersion == 0 {
		b.CurrentVersion = 1
	}
	return f.db.WithContext(ctx).Create(b).Error
}

func (f *BundleFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.Bundle, error) {
	var b model.Bundle
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("bundle %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BumpVersion atomically advances current_version and returns the new
// value, used when a caller creates the next BundleVersion.
func (f *BundleFacade) BumpVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var next int
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b model.Bundle
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&b).Error; err != nil {
			return err
		}
		next = b.CurrentVersion + 1
		return tx.Model(&model.Bundle{}).Where("id = ?", id).
			Update("current_version", next).Error
	})
	return next, err
}
