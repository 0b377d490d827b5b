// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks fragment, sequence and fault counts for a session.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Fragments         uint64
	DroppedFragments  uint64
	Sequences         uint64
	TreadmillStates   uint64
	UnknownResponses  uint64
	DecodeErrors      uint64
	Faults            uint64
	SequenceMismatch  uint64
	OrderingFaults    uint64
	CountMismatches   uint64
	SizeMismatches    uint64
	MalformedFragment uint64
	Interrupted       uint64
	Stalls            uint64

	// Rates (calculated)
	FragmentRate float64 // fragments/sec
	SequenceRate float64 // sequences/sec
	FaultRate    float64 // faults/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: StatisticsSnapshot{StartTime: now, LastUpdateTime: now}}
}

// RecordFragment counts one inbound fragment
func (st *Statistics) RecordFragment(dropped bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Fragments++
	if dropped {
		st.s.DroppedFragments++
	}
	st.s.LastUpdateTime = time.Now()
}

// RecordResponse counts one completed sequence and its decoded variant
func (st *Statistics) RecordResponse(r Response) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Sequences++
	switch r.Kind() {
	case ResponseTreadmillState:
		st.s.TreadmillStates++
	default:
		st.s.UnknownResponses++
	}
}

// RecordDecodeError counts a completed sequence whose payload failed to decode
func (st *Statistics) RecordDecodeError() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Sequences++
	st.s.DecodeErrors++
}

// RecordFault counts every fault carried by err
func (st *Statistics) RecordFault(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, f := range Faults(err) {
		st.s.Faults++
		switch f.Kind {
		case FaultSequenceMismatch:
			st.s.SequenceMismatch++
		case FaultOrdering:
			st.s.OrderingFaults++
		case FaultCountMismatch:
			st.s.CountMismatches++
		case FaultSizeMismatch:
			st.s.SizeMismatches++
		case FaultMalformed:
			st.s.MalformedFragment++
		case FaultInterrupted:
			st.s.Interrupted++
		}
	}
}

// RecordStall counts a sequence abandoned by the liveness timeout
func (st *Statistics) RecordStall() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Stalls++
}

// Snapshot returns a copy of the counters with rates calculated
func (st *Statistics) Snapshot() StatisticsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.s
	if elapsed := time.Since(snap.StartTime).Seconds(); elapsed > 0 {
		snap.FragmentRate = float64(snap.Fragments) / elapsed
		snap.SequenceRate = float64(snap.Sequences) / elapsed
		snap.FaultRate = float64(snap.Faults+snap.Stalls) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	return st.Snapshot().String()
}

// String returns a formatted statistics summary
func (s StatisticsSnapshot) String() string {
	var okPercent float64
	if s.Sequences > 0 {
		okPercent = float64(s.Sequences-s.DecodeErrors) * 100.0 / float64(s.Sequences)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Fragments:       %8d\n", s.Fragments)
	if s.DroppedFragments > 0 {
		result += fmt.Sprintf("  Dropped:          %5d\n", s.DroppedFragments)
	}
	result += fmt.Sprintf("Sequences:       %8d (%.1f%% decoded)\n", s.Sequences, okPercent)
	result += fmt.Sprintf("  Treadmill State:  %5d\n", s.TreadmillStates)
	if s.UnknownResponses > 0 {
		result += fmt.Sprintf("  Unknown:          %5d\n", s.UnknownResponses)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("  Decode Errors:    %5d\n", s.DecodeErrors)
	}
	if s.Faults > 0 {
		result += fmt.Sprintf("Faults:          %8d\n", s.Faults)
		if s.SequenceMismatch > 0 {
			result += fmt.Sprintf("  Token Mismatch:   %5d\n", s.SequenceMismatch)
		}
		if s.OrderingFaults > 0 {
			result += fmt.Sprintf("  Out of Order:     %5d\n", s.OrderingFaults)
		}
		if s.CountMismatches > 0 {
			result += fmt.Sprintf("  Count Mismatch:   %5d\n", s.CountMismatches)
		}
		if s.SizeMismatches > 0 {
			result += fmt.Sprintf("  Size Mismatch:    %5d\n", s.SizeMismatches)
		}
		if s.MalformedFragment > 0 {
			result += fmt.Sprintf("  Malformed:        %5d\n", s.MalformedFragment)
		}
		if s.Interrupted > 0 {
			result += fmt.Sprintf("  Interrupted:      %5d\n", s.Interrupted)
		}
	}
	if s.Stalls > 0 {
		result += fmt.Sprintf("Stalled Seqs:    %8d\n", s.Stalls)
	}

	result += fmt.Sprintf("Fragment Rate:   %8.1f frags/sec\n", s.FragmentRate)
	result += fmt.Sprintf("Sequence Rate:   %8.1f seqs/sec\n", s.SequenceRate)
	result += fmt.Sprintf("Fault Rate:      %8.1f faults/sec\n", s.FaultRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now()
	st.s = StatisticsSnapshot{StartTime: now, LastUpdateTime: now}
}
