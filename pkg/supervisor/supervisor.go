/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package supervisor bounds process-wide Copy Job concurrency and holds
// the cancellation registry, per spec §4.9. It also runs a low-frequency
// janitor sweep (§5's resource model, supplemented in this module) that
// reclaims orphaned workspace directories left behind by a crash.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"

	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// DefaultMaxConcurrentCopyJobs is MAX_CONCURRENT_COPY_JOBS's default.
const DefaultMaxConcurrentCopyJobs = 3

// Supervisor admits Copy Jobs against a fixed concurrency ceiling and
// tracks a cancellation handle per in-flight job. Deploy jobs are not
// bounded by this semaphore (4.9: "deploy jobs are not bounded by the
// same semaphore").
type Supervisor struct {
	sem      *semaphore.Weighted
	inFlight int64

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	done   map[uuid.UUID]struct{}

	cronRunner *cron.Cron
}

// NewSupervisor constructs a Supervisor with room for maxConcurrent
// simultaneously in_progress copy jobs. maxConcurrent <= 0 defaults to
// DefaultMaxConcurrentCopyJobs.
func NewSupervisor(maxConcurrent int) *Supervisor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCopyJobs
	}
	return &Supervisor{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		active: make(map[uuid.UUID]context.CancelFunc),
		done:   make(map[uuid.UUID]struct{}),
	}
}

// Admit blocks until a concurrency slot is free or ctx is done,
// whichever comes first. On success it returns a job-scoped context
// (independent of ctx's own lifetime, cancelled only by Cancel or
// Release) and a release func the caller must invoke exactly once on
// terminal transition, which frees the slot and removes the
// cancellation registry entry (4.9: "removed on terminal transition").
func (s *Supervisor) Admit(ctx context.Context, jobID uuid.UUID) (context.Context, func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, apierrors.Timeout("supervisor: admission timed out waiting for a copy job slot for %s", jobID)
	}
	atomic.AddInt64(&s.inFlight, 1)

	jobCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.active[jobID] = cancel
	s.mu.Unlock()

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		s.mu.Lock()
		delete(s.active, jobID)
		s.done[jobID] = struct{}{}
		s.mu.Unlock()
		cancel()
		atomic.AddInt64(&s.inFlight, -1)
		s.sem.Release(1)
	}
	return jobCtx, release, nil
}

// Cancel signals the cancellation handle for jobID if it is currently
// in_progress. Per 4.9: a no-op if the job has already reached a
// terminal state, an error if jobID was never admitted.
func (s *Supervisor) Cancel(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.active[jobID]; ok {
		cancel()
		return nil
	}
	if _, ok := s.done[jobID]; ok {
		return nil
	}
	return apierrors.NotFound("supervisor: unknown copy job %s", jobID)
}

// InFlight reports how many copy job slots are currently occupied.
func (s *Supervisor) InFlight() int {
	return int(atomic.LoadInt64(&s.inFlight))
}

// SweepFunc performs one janitor pass and returns the workspace
// directories it removed, for logging.
type SweepFunc func(ctx context.Context) ([]string, error)

// StartJanitor schedules sweep to run on the given cron schedule (e.g.
// "@every 10m") until Stop is called. It supplements 4.6's per-handle
// cleanup guarantee with a periodic reconciliation pass that catches
// directories orphaned by a process crash mid-job.
func (s *Supervisor) StartJanitor(schedule string, sweep SweepFunc) error {
	s.cronRunner = cron.New()
	_, err := s.cronRunner.AddFunc(schedule, func() {
		removed, err := sweep(context.Background())
		if err != nil {
			klog.Warningf("supervisor: janitor sweep failed: %v", err)
			return
		}
		for _, dir := range removed {
			klog.Infof("supervisor: janitor reclaimed orphaned workspace %s", dir)
		}
	})
	if err != nil {
		return apierrors.Internal(err, "supervisor: failed to schedule janitor")
	}
	s.cronRunner.Start()
	return nil
}

// Stop halts the janitor, if running. Safe to call even if StartJanitor
// was never called.
func (s *Supervisor) Stop() {
	if s.cronRunner != nil {
		s.cronRunner.Stop()
	}
}
