// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives reassembly and decoding over a live fragment stream
// and keeps the treadmill polled for state.
package session

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// DefaultStallTimeout abandons a sequence whose next fragment is this late
const DefaultStallTimeout = 3 * time.Second

// Session owns the reassembler for one fragment stream. Faults and decode
// errors are logged and counted; they never end the session.
type Session struct {
	src          Source
	reassembler  *ifit.Reassembler
	stats        *ifit.Statistics
	logger       zerolog.Logger
	stallTimeout time.Duration
	onFragment   func(ts time.Time, f ifit.Fragment)
	onError      func(err error)
}

// Option configures a Session
type Option func(s *Session)

// WithLogger sets the session logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStallTimeout sets the liveness timeout for an in-progress sequence.
// Zero disables it.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.stallTimeout = d
	}
}

// WithStatistics shares an existing statistics tracker
func WithStatistics(stats *ifit.Statistics) Option {
	return func(s *Session) {
		s.stats = stats
	}
}

// WithFragmentHook is called with every inbound fragment before it is reassembled
func WithFragmentHook(fn func(ts time.Time, f ifit.Fragment)) Option {
	return func(s *Session) {
		s.onFragment = fn
	}
}

// WithErrorHook is called with every fault, decode error and stall
func WithErrorHook(fn func(err error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// ErrStalled reports a sequence abandoned because its fragments stopped arriving
var ErrStalled = errors.New("session: sequence stalled")

// New creates a session reading from src
func New(src Source, opts ...Option) *Session {
	s := &Session{
		src:          src,
		reassembler:  ifit.NewReassembler(),
		logger:       log.Logger,
		stallTimeout: DefaultStallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		s.stats = ifit.NewStatistics()
	}
	return s
}

// Statistics returns the session statistics
func (s *Session) Statistics() *ifit.Statistics {
	return s.stats
}

// Responses yields one decoded response per completed sequence. Iteration
// ends when the source is exhausted or ctx is done. A source failure is
// yielded once as an error and ends iteration.
func (s *Session) Responses(ctx context.Context) iter.Seq2[ifit.Response, error] {
	return func(yield func(ifit.Response, error) bool) {
		for {
			f, err := s.next(ctx)
			if err != nil {
				if errors.Is(err, ErrStalled) {
					continue
				}
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return
				}
				yield(nil, err)
				return
			}

			resp, ok := s.process(f)
			if !ok {
				continue
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

// Run calls fn with every decoded response until the source ends, ctx is
// done, or fn or the source fails.
func (s *Session) Run(ctx context.Context, fn func(ifit.Response) error) error {
	for resp, err := range s.Responses(ctx) {
		if err != nil {
			return err
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
	return nil
}

// next reads one fragment, applying the stall timeout while a sequence is open
func (s *Session) next(ctx context.Context) (ifit.Fragment, error) {
	if s.stallTimeout <= 0 || !s.reassembler.InProgress() {
		return s.src.Next(ctx)
	}

	fctx, cancel := context.WithTimeout(ctx, s.stallTimeout)
	defer cancel()

	f, err := s.src.Next(fctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		remaining := s.reassembler.Remaining()
		s.reassembler.Reset()
		s.stats.RecordStall()
		s.logger.Warn().
			Int("remaining", remaining).
			Dur("timeout", s.stallTimeout).
			Msg("sequence stalled, waiting for next header")
		s.report(ErrStalled)
		return nil, ErrStalled
	}
	return f, err
}

// process feeds one fragment and decodes the payload it completes, if any
func (s *Session) process(f ifit.Fragment) (ifit.Response, bool) {
	if s.onFragment != nil {
		s.onFragment(time.Now(), f)
	}

	dropped := s.reassembler.Dropped()
	payload, err := s.reassembler.Feed(f)
	s.stats.RecordFragment(s.reassembler.Dropped() > dropped)

	if err != nil {
		s.stats.RecordFault(err)
		for _, fault := range ifit.Faults(err) {
			s.logger.Warn().
				Str("kind", fault.Kind.String()).
				Fields(fault.Details).
				Str("fragment", f.Hex()).
				Msg(fault.Message)
		}
		s.report(err)
	}
	if payload == nil {
		return nil, false
	}

	resp, err := ifit.Decode(payload)
	if err != nil {
		s.stats.RecordDecodeError()
		s.logger.Warn().Err(err).Int("size", len(payload)).Msg("failed to decode payload")
		s.report(err)
		return nil, false
	}

	s.stats.RecordResponse(resp)
	s.logger.Debug().
		Str("kind", resp.Kind().String()).
		Int("size", len(payload)).
		Msg("sequence complete")
	return resp, true
}

func (s *Session) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
