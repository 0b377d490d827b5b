// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"io"
	"time"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// Source delivers inbound fragments in arrival order.
// Next returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (ifit.Fragment, error)
}

// Sink transmits one outbound fragment.
type Sink interface {
	WriteFragment(f ifit.Fragment) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(f ifit.Fragment) error

// WriteFragment implements Sink
func (fn SinkFunc) WriteFragment(f ifit.Fragment) error {
	return fn(f)
}

// SliceSource replays a fixed list of fragments
type SliceSource struct {
	fragments []ifit.Fragment
	pos       int
}

// NewSliceSource creates a source over fragments
func NewSliceSource(fragments ...ifit.Fragment) *SliceSource {
	return &SliceSource{fragments: fragments}
}

// Next implements Source
func (s *SliceSource) Next(ctx context.Context) (ifit.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.fragments) {
		return nil, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

// HexSource reads fragments from a hex capture, one fragment per line
type HexSource struct {
	r *ifit.HexReader
}

// NewHexSource creates a source reading hex lines from r
func NewHexSource(r io.Reader) *HexSource {
	return &HexSource{r: ifit.NewHexReader(r)}
}

// Next implements Source
func (s *HexSource) Next(ctx context.Context) (ifit.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.r.Next()
}

// CaptureSource replays the inbound records of a CBOR capture. Outbound
// records are skipped. With Realtime set, records are paced by their
// recorded timestamps.
type CaptureSource struct {
	r        *ifit.CaptureReader
	Realtime bool

	last    time.Time
	pending *ifit.CaptureRecord // read, but its pacing wait was cut short
}

// NewCaptureSource creates a source reading a CBOR capture from r
func NewCaptureSource(r io.Reader) *CaptureSource {
	return &CaptureSource{r: ifit.NewCaptureReader(r)}
}

// Next implements Source. A record whose pacing wait is interrupted by ctx
// is kept and returned by the next call.
func (s *CaptureSource) Next(ctx context.Context) (ifit.Fragment, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := s.pending
		if rec == nil {
			next, err := s.r.Next()
			if err != nil {
				return nil, err
			}
			if next.Direction != ifit.Inbound {
				continue
			}
			rec = &next
		}

		if s.Realtime && !s.last.IsZero() {
			if gap := rec.Time().Sub(s.last); gap > 0 {
				timer := time.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					s.pending = rec
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
		}
		s.pending = nil
		s.last = rec.Time()

		return rec.Fragment(), nil
	}
}
