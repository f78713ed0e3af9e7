/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameBundle = "bundles"

// Bundle is a named, tenant-scoped collection of image mappings (spec
// §3). RenameRules is the ordered list of "find"/"replace" substring
// pairs a release copy applies to this bundle's target paths (4.4);
// it is looked up by the Image Plan Builder, never mutated mid-plan.
type Bundle struct {
	ID               uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID   `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	Name             string      `gorm:"column:name;not null" json:"name"`
	SourceRegistryID uuid.UUID   `gorm:"column:source_registry_id;type:uuid;not null" json:"source_registry_id"`
	CurrentVersion   int         `gorm:"column:current_version;not null;default:1" json:"current_version"`
	AutoTagEnabled   bool        `gorm:"column:auto_tag_enabled;not null;default:true" json:"auto_tag_enabled"`
	RenameRules      StringSlice `gorm:"column:rename_rules;type:jsonb" json:"rename_rules"`
	CreatedAt        time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*Bundle) TableName() string { return TableNameBundle }

const TableNameBundleVersion = "bundle_versions"

// BundleVersion is an immutable snapshot of a Bundle's image mappings,
// identified by (bundle_id, version) (spec §3). Archived is a display
// hint only, never an integrity constraint.
type BundleVersion struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BundleID  uuid.UUID `gorm:"column:bundle_id;type:uuid;not null;index:idx_bundle_version,unique" json:"bundle_id"`
	Version   int       `gorm:"column:version;not null;index:idx_bundle_version,unique" json:"version"`
	Archived  bool      `gorm:"column:archived;not null;default:false" json:"archived"`
	Referenced bool     `gorm:"column:referenced;not null;default:false" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (*BundleVersion) TableName() string { return TableNameBundleVersion }
