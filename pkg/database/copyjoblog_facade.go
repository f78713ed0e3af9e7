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

// CopyJobLogFacade is the durable side of the Log Bus (4.2) for Copy
// Jobs: every append is committed here before a call to append() is
// considered successful.
type CopyJobLogFacade struct {
	db *gorm.DB
}

func NewCopyJobLogFacade(db *gorm.DB) *CopyJobLogFacade {
	return &CopyJobLogFacade{db: db}
}

func (f *CopyJobLogFacade) Append(ctx context.Context, copyJobID uuid.UUID, seq int64, line string) error {
	entry := &model.CopyJobLog{
		ID:        model.NewID(),
		CopyJobID: copyJobID,
		Seq:       seq,
		Line:      line,
	}
	return f.db.WithContext(ctx).Create(entry).Error
}

// ListFrom replays the durable log from seq (inclusive) onward, in
// order, the mechanism a catching-up subscriber uses per 4.2's fan-out
// invariant.
func (f *CopyJobLogFacade) ListFrom(ctx context.Context, copyJobID uuid.UUID, seq int64) ([]*model.CopyJobLog, error) {
	var lines []*model.CopyJobLog
	err := f.db.WithContext(ctx).
		Where("copy_job_id = ? AND seq >= ?", copyJobID, seq).
		Order("seq ASC").
		Find(&lines).Error
	return lines, err
}
