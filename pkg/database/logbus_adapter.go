/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/martinmares/release-orchestrator/pkg/logbus"
)

// CopyJobLogDurable adapts CopyJobLogFacade to logbus.Durable.
type CopyJobLogDurable struct {
	Facade *CopyJobLogFacade
}

func (d CopyJobLogDurable) Append(ctx context.Context, jobID uuid.UUID, seq int64, line string) error {
	return d.Facade.Append(ctx, jobID, seq, line)
}

func (d CopyJobLogDurable) ListFrom(ctx context.Context, jobID uuid.UUID, seq int64) ([]logbus.Record, error) {
	rows, err := d.Facade.ListFrom(ctx, jobID, seq)
	if err != nil {
		return nil, err
	}
	records := make([]logbus.Record, len(rows))
	for i, r := range rows {
		records[i] = logbus.Record{Seq: r.Seq, Line: r.Line}
	}
	return records, nil
}

// DeployJobLogDurable adapts DeployJobLogFacade to logbus.Durable.
type DeployJobLogDurable struct {
	Facade *DeployJobLogFacade
}

func (d DeployJobLogDurable) Append(ctx context.Context, jobID uuid.UUID, seq int64, line string) error {
	return d.Facade.Append(ctx, jobID, seq, line)
}

func (d DeployJobLogDurable) ListFrom(ctx context.Context, jobID uuid.UUID, seq int64) ([]logbus.Record, error) {
	rows, err := d.Facade.ListFrom(ctx, jobID, seq)
	if err != nil {
		return nil, err
	}
	records := make([]logbus.Record, len(rows))
	for i, r := range rows {
		records[i] = logbus.Record{Seq: r.Seq, Line: r.Line}
	}
	return records, nil
}
