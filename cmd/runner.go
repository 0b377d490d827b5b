// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

// runner ties a connection to a session and the current state poller
type runner struct {
	conn    Connection
	info    string
	session *session.Session
	poller  *session.Poller
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// openRunner opens the configured connection, tees it into --capture and
// builds a session over it. opts are applied after the configured ones.
func openRunner(ctx context.Context, opts ...session.Option) (*runner, error) {
	conn, info, err := OpenConnection(ctx)
	if err != nil {
		return nil, err
	}

	captured, err := withCapture(conn, config.GetString("capture"))
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn = captured

	all := []session.Option{
		session.WithLogger(log.Logger),
		session.WithStallTimeout(config.GetDuration("stall-timeout")),
	}
	all = append(all, opts...)

	r := &runner{
		conn:    conn,
		info:    info,
		session: session.New(conn, all...),
	}

	if !config.GetBool("no-poll") {
		r.poller = session.NewPoller(conn, ifit.CurrentStateRequest(), config.GetDuration("request-interval"))
		r.poller.SetLogger(log.Logger)
	}

	return r, nil
}

// Run polls and decodes until ctx is done, the connection ends or fn fails.
// The poller stops as soon as the session does.
func (r *runner) Run(ctx context.Context, fn func(ifit.Response) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return r.session.Run(gctx, fn)
	})

	if r.poller != nil {
		g.Go(func() error {
			return r.poller.Run(gctx)
		})
	}

	return g.Wait()
}

// Close closes the connection and any capture file
func (r *runner) Close() error {
	return r.conn.Close()
}

// Statistics returns the session statistics
func (r *runner) Statistics() *ifit.Statistics {
	return r.session.Statistics()
}

// printBanner prints the command title and the connection in use
func (r *runner) printBanner(title string) {
	fmt.Printf("nongofit - %s\n", title)
	fmt.Printf("Connection: %s\n", r.info)
	if r.poller != nil {
		fmt.Printf("Polling: %s every %v\n", ifit.RequestCurrentState, config.GetDuration("request-interval"))
	}
}
