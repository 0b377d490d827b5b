// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

var (
	sequenceTestTimeout int
)

// errGotSequence stops the session after the first decoded response
var errGotSequence = errors.New("sequence received")

var sequenceTestCmd = &cobra.Command{
	Use:   "sequence_test",
	Short: "Test connection by waiting for a complete iFit sequence",
	Long: `Poll the treadmill and wait for one complete, decodable response.

Fragments that do not form a valid sequence (bad token, wrong order, wrong
size) are skipped, and the command keeps waiting until a full sequence
reassembles and decodes or the timeout expires.

Exit codes:
  0 - Sequence received before timeout
  1 - Timeout reached without receiving a valid sequence
  2 - Connection error

Useful for checking a treadmill or bridge before starting a workout.`,
	RunE: runSequenceTest,
}

func init() {
	rootCmd.AddCommand(sequenceTestCmd)
	sequenceTestCmd.Flags().IntVar(&sequenceTestTimeout, "timeout", 10, "Timeout in seconds to wait for a sequence")
}

func runSequenceTest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(sequenceTestTimeout)*time.Second)
	defer cancel()

	r, err := openRunner(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer r.Close()

	r.printBanner("Sequence Test")
	fmt.Printf("Timeout: %d seconds\n", sequenceTestTimeout)
	fmt.Printf("Waiting for valid iFit sequence...\n\n")

	var got ifit.Response
	err = r.Run(ctx, func(resp ifit.Response) error {
		got = resp
		return errGotSequence
	})

	stats := r.Statistics().Snapshot()

	switch {
	case got != nil:
		if stats.DroppedFragments > 0 || stats.Faults > 0 {
			fmt.Printf("(skipped %d fragments and %d faults before sync)\n", stats.DroppedFragments, stats.Faults)
		}
		fmt.Printf("SUCCESS: Received valid sequence\n")
		fmt.Printf("  Kind: %s\n", ifit.FormatResponseKind(got))
		info := got.Device()
		fmt.Printf("  Device: %x\n", info[:])
		fmt.Printf("  Fragments: %d\n", stats.Fragments)
		if state, ok := got.(ifit.TreadmillState); ok {
			fmt.Printf("  %s\n", state.DebugString())
		}
		r.Close()
		os.Exit(0)

	case err != nil:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		r.Close()
		os.Exit(2)

	default:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid sequence received within %d seconds\n", sequenceTestTimeout)
		r.Close()
		os.Exit(1)
	}

	return nil
}
