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

// BundleVersionFacade persists BundleVersion rows and their child
// ImageMappings, and enforces invariant 1 (spec §8): once a version has
// been referenced by any CopyJob, its mappings may not be rewritten.
type BundleVersionFacade struct {
	db *gorm.DB
}

func NewBundleVersionFacade(db *gorm.DB) *BundleVersionFacade {
	return &BundleVersionFacade{db: db}
}

// CreateWithMappings inserts a version together with its image
// mappings in a single transaction. Creates are append-only.
func (f *BundleVersionFacade) CreateWithMappings(ctx context.Context, v *model.BundleVersion, mappings []*model.ImageMapping) error {
	if v.ID == uuid.Nil {
		v.ID = model.NewID()
	}
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		for _, m := range mappings {
			if m.ID == uuid.Nil {
				m.ID = model.NewID()
			}
			m.BundleVersionID = v.ID
		}
		if len(mappings) > 0 {
			if err := tx.Create(&mappings).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *BundleVersionFacade) GetByID(ctx context.Context, id uuid.UUID) (*model.BundleVersion, error) {
	var v model.BundleVersion
	err := f.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("bundle version %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f *BundleVersionFacade) GetByBundleAndVersion(ctx context.Context, bundleID uuid.UUID, version int) (*model.BundleVersion, error) {
	var v model.BundleVersion
	err := f.db.WithContext(ctx).
		Where("bundle_id = ? AND version = ?", bundleID, version).
		First(&v).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierrors.NotFound("bundle %s version %d not found", bundleID, version)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkReferenced flips the Referenced flag the first time a CopyJob
// references this version. Safe to call repeatedly; it is a no-op once
// already set.
func (f *BundleVersionFacade) MarkReferenced(ctx context.Context, id uuid.UUID) error {
	return f.db.WithContext(ctx).Model(&model.BundleVersion{}).
		Where("id = ? AND referenced = ?", id, false).
		Update("referenced", true).Error
}

// ListMappings returns the ImageMappings belonging to a version, ordered
// by source image path.
func (f *BundleVersionFacade) ListMappings(ctx context.Context, versionID uuid.UUID) ([]*model.ImageMapping, error) {
	var mappings []*model.ImageMapping
	err := f.db.WithContext(ctx).
		Where("bundle_version_id = ?", versionID).
		Order("source_image_path").
		Find(&mappings).Error
	return mappings, err
}

// ReplaceMappings overwrites a version's mapping set wholesale. Callers
// MUST check GetByID's Referenced flag first: per invariant 1, once
// referenced, this call must be rejected with PreconditionFailed.
func (f *BundleVersionFacade) ReplaceMappings(ctx context.Context, versionID uuid.UUID, mappings []*model.ImageMapping) error {
	v, err := f.GetByID(ctx, versionID)
	if err != nil {
		return err
	}
	if v.Referenced {
		return apierrors.PreconditionFailed("bundle version %s is referenced by a copy job and is immutable", versionID)
	}
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bundle_version_id = ?", versionID).Delete(&model.ImageMapping{}).Error; err != nil {
			return err
		}
		for _, m := range mappings {
			if m.ID == uuid.Nil {
				m.ID = model.NewID()
			}
			m.BundleVersionID = versionID
		}
		if len(mappings) == 0 {
			return nil
		}
		return tx.Create(&mappings).Error
	})
}
