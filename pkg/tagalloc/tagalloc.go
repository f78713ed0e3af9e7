/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package tagalloc implements the per-(bundle, environment, date)
// monotonic tag counter (spec §4.3) on top of sqlx, since the atomic
// "INSERT ... ON CONFLICT ... DO UPDATE RETURNING" this requires sits
// more naturally as a single hand-written statement than as a gorm
// model write.
package tagalloc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"

	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

const upsertCounterSQL = `
INSERT INTO bundle_tag_counters (id, bundle_id, environment_id, date, counter, updated_at)
VALUES ($1, $2, $3, $4, 1, now())
ON CONFLICT (bundle_id, environment_id, date)
DO UPDATE SET counter = bundle_tag_counters.counter + 1, updated_at = now()
RETURNING counter`

// Allocator computes the next "YYYY.MM.DD.N" tag for a triple,
// serializing concurrent callers through the database's own conflict
// resolution rather than an in-process lock (5: "tag allocation is
// serialized per (bundle, environment, date)").
type Allocator struct {
	db         *sqlx.DB
	maxRetries int
}

// NewAllocator wraps db. maxRetries bounds the retry loop used when the
// upsert itself fails transiently (connection blip, deadlock); it does
// not bound legitimate counter growth.
func NewAllocator(db *sqlx.DB, maxRetries int) *Allocator {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Allocator{db: db, maxRetries: maxRetries}
}

// Allocate returns the first unused positive integer for
// (bundleID, environmentID, date), formatted as "date.N" where date is
// already in "YYYY.MM.DD" form. On contention the loser retries
// transparently; after maxRetries attempts it fails with a Transient
// error whose message reports the exhaustion (4.3). There is no
// dedicated error kind for exhaustion.
func (a *Allocator) Allocate(ctx context.Context, bundleID, environmentID, date string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		var counter int
		row := a.db.QueryRowxContext(ctx, upsertCounterSQL, uuid.NewString(), bundleID, environmentID, date)
		if err := row.Scan(&counter); err != nil {
			lastErr = err
			klog.Warningf("tagalloc: attempt %d for (%s,%s,%s) failed: %v", attempt+1, bundleID, environmentID, date, err)
			continue
		}
		return fmt.Sprintf("%s.%d", date, counter), nil
	}
	return "", apierrors.Transient(lastErr, "tag allocation exhausted after %d attempts for (%s,%s,%s)", a.maxRetries, bundleID, environmentID, date)
}

// Today formats t in the "YYYY.MM.DD" form Allocate expects, letting
// callers pass the caller's own timezone (4.3: "date is caller-provided
// so tags reflect the caller's timezone").
func Today(t time.Time) string {
	return t.Format("2006.01.02")
}
