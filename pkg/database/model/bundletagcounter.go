/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameBundleTagCounter = "bundle_tag_counters"

// BundleTagCounter is the (bundle_id, environment_id, date) -> counter
// row driving the Tag Allocator (4.3). Counter is strictly monotonic
// per triple; allocation is an atomic upsert, never a read-then-write.
type BundleTagCounter struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BundleID      uuid.UUID `gorm:"column:bundle_id;type:uuid;not null;index:idx_tag_counter_triple,unique" json:"bundle_id"`
	EnvironmentID uuid.UUID `gorm:"column:environment_id;type:uuid;not null;index:idx_tag_counter_triple,unique" json:"environment_id"`
	Date          string    `gorm:"column:date;not null;index:idx_tag_counter_triple,unique" json:"date"`
	Counter       int       `gorm:"column:counter;not null;default:0" json:"counter"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*BundleTagCounter) TableName() string { return TableNameBundleTagCounter }
