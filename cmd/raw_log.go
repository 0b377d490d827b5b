// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

var rawLogStatsInterval time.Duration

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw fragment log in human-readable format",
	Long: `Continuously display iFit fragments and decoded responses as they arrive.

Every fragment is printed with its kind and fields, followed by each response
once its sequence completes. Reassembly faults are printed inline.

Supports Bluetooth, serial, WebSocket and replayed connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().DurationVar(&rawLogStatsInterval, "stats-interval", 0, "Print statistics at this interval (0 disables)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	r, err := openRunner(ctx,
		session.WithFragmentHook(func(ts time.Time, f ifit.Fragment) {
			fmt.Print(ifit.FormatFragment(ts, f))
		}),
		session.WithErrorHook(func(err error) {
			fmt.Printf("[ERROR] %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	r.printBanner("Raw Fragment Log")
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogStatsInterval > 0 {
		go printStatistics(ctx, r.Statistics(), rawLogStatsInterval)
	}

	err = r.Run(ctx, func(resp ifit.Response) error {
		fmt.Print(ifit.FormatResponse(time.Now(), resp))
		return nil
	})

	fmt.Printf("\n%s", r.Statistics())
	return err
}

// printStatistics prints stats every interval until ctx is done
func printStatistics(ctx context.Context, stats *ifit.Statistics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("\n%s\n", stats)
		}
	}
}
