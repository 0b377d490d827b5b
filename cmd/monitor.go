// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

var monitorHistory int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive dashboard for a running treadmill",
	Long: `Monitor a treadmill through an interactive terminal UI.

Features:
  - Live pace, incline, distance, timer and pulse
  - Table of recent samples
  - Reassembly statistics and fault rates
  - Event log of faults, stalls and connection changes
  - Automatic reconnection on connection loss

Press 'r' to reset the statistics and 'q' to quit.

Supports Bluetooth, serial, WebSocket and replayed connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorHistory, "history", 10, "Number of recent samples to show")
}

// monitorManager handles the session lifecycle and reconnection behind the TUI
type monitorManager struct {
	p     *tea.Program
	stats *ifit.Statistics
}

// options keeps statistics across reconnections and forwards faults to the TUI
func (mm *monitorManager) options() []session.Option {
	return []session.Option{
		session.WithStatistics(mm.stats),
		session.WithErrorHook(func(err error) {
			mm.p.Send(faultMsg{timestamp: time.Now(), err: err})
		}),
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	// The TUI owns the terminal
	log.Logger = zerolog.Nop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mm := &monitorManager{stats: ifit.NewStatistics()}

	// Open initial connection
	r, err := openRunner(ctx, mm.options()...)
	if err != nil {
		return err
	}

	// Create TUI program with alt screen
	m := initialMonitorModel(r.info, mm.stats, monitorHistory)
	p := tea.NewProgram(m, tea.WithAltScreen())
	mm.p = p

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		mm.sessionLoop(ctx, r)
	}()

	_, err = p.Run()
	cancel()
	<-done

	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// sessionLoop runs sessions until ctx is done, reconnecting whenever the
// connection drops. Replays are not reopened.
func (mm *monitorManager) sessionLoop(ctx context.Context, r *runner) {
	for {
		err := r.Run(ctx, func(resp ifit.Response) error {
			mm.p.Send(responseMsg{timestamp: time.Now(), response: resp})
			return nil
		})
		r.Close()

		if ctx.Err() != nil {
			return
		}

		// Notify TUI about connection loss
		mm.p.Send(connectionLostMsg{err: err})

		if config.GetString("input-file") != "" {
			return
		}

		r = mm.reconnect(ctx)
		if r == nil {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns nil if shutdown was requested during reconnection.
func (mm *monitorManager) reconnect(ctx context.Context) *runner {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		r, err := openRunner(ctx, mm.options()...)
		if err == nil {
			mm.p.Send(reconnectedMsg{connInfo: r.info})
			return r
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
