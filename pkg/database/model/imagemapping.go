/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"github.com/google/uuid"
)

const TableNameImageMapping = "image_mappings"

// ImageMapping is one element of a BundleVersion's plan (spec §3):
// paths are registry-relative, no hostname.
type ImageMapping struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BundleVersionID uuid.UUID `gorm:"column:bundle_version_id;type:uuid;not null;index" json:"bundle_version_id"`
	SourceImagePath string    `gorm:"column:source_image_path;not null" json:"source_image_path"`
	SourceTag       string    `gorm:"column:source_tag;not null" json:"source_tag"`
	TargetImagePath string    `gorm:"column:target_image_path;not null" json:"target_image_path"`
}

func (*ImageMapping) TableName() string { return TableNameImageMapping }
