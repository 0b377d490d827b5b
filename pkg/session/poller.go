// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// DefaultPollInterval matches the rate the vendor app asks for state
const DefaultPollInterval = time.Second

// Poller sends a request on a fixed interval. Sends are fire-and-forget:
// the answer arrives on the session's source, and a failed send is logged
// and retried on the next tick.
type Poller struct {
	sink     Sink
	request  ifit.Request
	interval time.Duration
	logger   zerolog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewPoller creates a poller sending req to sink every interval.
// A non-positive interval uses DefaultPollInterval.
func NewPoller(sink Sink, req ifit.Request, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		sink:     sink,
		request:  req,
		interval: interval,
		logger:   log.Logger,
	}
}

// SetLogger replaces the poller logger
func (p *Poller) SetLogger(logger zerolog.Logger) {
	p.logger = logger
}

// Run polls immediately and then every interval until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll sends the request once, one fragment at a time. Fragments are
// regenerated on every call.
func (p *Poller) Poll() {
	fragments, err := p.request.Fragments()
	if err != nil {
		p.failed.Add(1)
		p.logger.Error().Err(err).Str("request", p.request.Name()).Msg("failed to encode request")
		return
	}

	for i, f := range fragments {
		if err := p.sink.WriteFragment(f); err != nil {
			p.failed.Add(1)
			p.logger.Warn().
				Err(err).
				Str("request", p.request.Name()).
				Int("fragment", i).
				Msg("failed to send request")
			return
		}
	}
	p.sent.Add(1)
}

// Sent returns the number of requests fully written
func (p *Poller) Sent() uint64 {
	return p.sent.Load()
}

// Failed returns the number of requests that could not be written
func (p *Poller) Failed() uint64 {
	return p.failed.Load()
}
