// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// DefaultQueueSize holds a little over ten full-size sequences
const DefaultQueueSize = 64

// Queue hands fragments from a transport callback to a single consumer.
//
// Push never blocks: when the queue is full the oldest fragment is discarded
// so a stalled consumer resumes on recent data. Next blocks until a fragment
// is available, the queue is closed, or the context is done.
type Queue struct {
	mu      sync.Mutex
	ch      chan ifit.Fragment
	closed  bool
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to size fragments
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan ifit.Fragment, size)}
}

// Push enqueues a copy of data. Notification buffers are reused by most BLE
// stacks, so the caller's slice is never retained.
func (q *Queue) Push(data []byte) {
	f := ifit.Fragment(bytes.Clone(data))

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	for {
		select {
		case q.ch <- f:
			return
		default:
		}

		// Full: discard the oldest and retry
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Next returns the next fragment, or io.EOF once the queue is closed and drained
func (q *Queue) Next(ctx context.Context) (ifit.Fragment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	}
}

// Close stops accepting fragments. Fragments already queued can still be read.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Dropped returns the number of fragments discarded because the queue was full
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of queued fragments
func (q *Queue) Len() int {
	return len(q.ch)
}
