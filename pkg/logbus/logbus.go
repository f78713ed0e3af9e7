/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package logbus fans out job output lines to live subscribers while
// durably persisting every line, per spec §4.2. A Bus holds, per job, a
// bounded in-memory ring of the most recent lines and a set of live
// subscriber channels; it never lets an append surface to a subscriber
// before the append has been committed to durable storage.
package logbus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// DefaultRingSize is the "target ~1000 lines" ring capacity from 4.2.
const DefaultRingSize = 1000

// Record is one durably-stored line, as replayed from backing storage.
type Record struct {
	Seq  int64
	Line string
}

// Durable is the backing store a Bus commits every line to before
// fan-out. CopyJobLogFacade and DeployJobLogFacade satisfy this via a
// thin adapter (see pkg/database).
type Durable interface {
	Append(ctx context.Context, jobID uuid.UUID, seq int64, line string) error
	ListFrom(ctx context.Context, jobID uuid.UUID, seq int64) ([]Record, error)
}

// EventKind distinguishes a regular line from the terminal marker.
type EventKind string

const (
	EventLine EventKind = "line"
	EventEnd  EventKind = "end"
)

// Event is what a subscriber channel carries.
type Event struct {
	Kind EventKind
	Seq  int64
	Text string
}

// subscriberBuffer bounds how much live tail a slow subscriber can fall
// behind by before lines are dropped (invariant 3: a slow subscriber
// may miss intermediate live-tail lines but never reorders them).
const subscriberBuffer = 256

type jobState struct {
	mu          sync.Mutex
	ring        []Event
	seq         int64
	terminal    bool
	nextSubID   int
	subscribers map[int]chan Event
}

// Bus is the process-wide Log Bus. One Bus instance is shared across
// every Copy Job and Deploy Job; job state is created lazily on first
// append or subscribe and is safe to Forget once a job's subscribers
// have all drained the terminal marker.
type Bus struct {
	durable  Durable
	ringSize int

	mu   sync.Mutex
	jobs map[uuid.UUID]*jobState
}

// NewBus constructs a Bus backed by durable. ringSize <= 0 defaults to
// DefaultRingSize.
func NewBus(durable Durable, ringSize int) *Bus {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Bus{durable: durable, ringSize: ringSize, jobs: make(map[uuid.UUID]*jobState)}
}

func (b *Bus) state(jobID uuid.UUID) *jobState {
	b.mu.Lock()
	defer b.mu.Unlock()
	js, ok := b.jobs[jobID]
	if !ok {
		js = &jobState{subscribers: make(map[int]chan Event)}
		b.jobs[jobID] = js
	}
	return js
}

// Append commits line to durable storage, then delivers it to every
// live subscriber. Appends for a given job are serialized by the job's
// own state lock, which is what gives invariant 1 (ordering) its
// guarantee: the sequence number and the durable write happen under
// the same critical section a publisher cannot race itself out of.
func (b *Bus) Append(ctx context.Context, jobID uuid.UUID, line string) error {
	js := b.state(jobID)
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.terminal {
		return apierrors.Internal(nil, "logbus: append after terminal marker for job %s", jobID)
	}

	seq := js.seq + 1
	if err := b.durable.Append(ctx, jobID, seq, line); err != nil {
		return apierrors.Transient(err, "logbus: durable append failed for job %s seq %d", jobID, seq)
	}
	js.seq = seq

	ev := Event{Kind: EventLine, Seq: seq, Text: line}
	js.ring = append(js.ring, ev)
	if len(js.ring) > b.ringSize {
		js.ring = js.ring[len(js.ring)-b.ringSize:]
	}

	for _, ch := range js.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the live-tail line. It can still
			// catch up via ReplayFrom against durable storage.
		}
	}
	return nil
}

// MarkTerminal emits the end-of-log marker to every live subscriber
// exactly once, then closes and forgets them. A second call is a
// no-op, satisfying 4.2's "emitted exactly once per job".
func (b *Bus) MarkTerminal(jobID uuid.UUID) {
	js := b.state(jobID)
	js.mu.Lock()
	if js.terminal {
		js.mu.Unlock()
		return
	}
	js.terminal = true
	subs := js.subscribers
	js.subscribers = make(map[int]chan Event)
	js.mu.Unlock()

	for _, ch := range subs {
		ch := ch
		go func() {
			ch <- Event{Kind: EventEnd}
			close(ch)
		}()
	}
}

// Subscribe returns a channel delivering the ring snapshot taken at
// subscription time, followed by every subsequent live append, ending
// with the terminal marker once the job reaches a terminal state. The
// returned cancel func must be called to release the subscription if
// the caller stops reading before the marker arrives.
func (b *Bus) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	js := b.state(jobID)
	js.mu.Lock()
	defer js.mu.Unlock()

	snapshot := make([]Event, len(js.ring))
	copy(snapshot, js.ring)

	ch := make(chan Event, len(snapshot)+subscriberBuffer)
	for _, ev := range snapshot {
		ch <- ev
	}

	if js.terminal {
		ch <- Event{Kind: EventEnd}
		close(ch)
		return ch, func() {}
	}

	id := js.nextSubID
	js.nextSubID++
	js.subscribers[id] = ch

	cancel := func() {
		js.mu.Lock()
		defer js.mu.Unlock()
		if existing, ok := js.subscribers[id]; ok {
			delete(js.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// ReplayFrom reads the durable log for jobID from seq (inclusive)
// onward. A subscriber that detects it dropped live-tail lines (a gap
// in Seq) uses this to catch up, per invariant 3.
func (b *Bus) ReplayFrom(ctx context.Context, jobID uuid.UUID, seq int64) ([]Record, error) {
	return b.durable.ListFrom(ctx, jobID, seq)
}

// Forget releases in-memory state for a job once its subscribers have
// all drained the terminal marker. Safe to call even if subscribers
// remain; it only drops the Bus's own reference, the durable log is
// unaffected.
func (b *Bus) Forget(jobID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, jobID)
}
