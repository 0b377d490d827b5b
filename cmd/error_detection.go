// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze reassembly faults",
	Long: `Track broken sequences and undecodable payloads with statistics.

This command reassembles every sequence and reports:
  - Token mismatches (lost trailer or crossed sequences)
  - Out-of-order and duplicate middle fragments
  - Count and size mismatches against the header
  - Malformed fragments and headers interrupting a sequence
  - Stalled sequences and payloads that fail to decode

By default, only faults are displayed. Use --show-all to display every
fragment and response too.

Faults are highlighted as they happen, with periodic statistics summaries
displayed at configurable intervals. Use 'monitor' for a dashboard view.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all fragments and responses (not just faults)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	opts := []session.Option{
		session.WithErrorHook(printFault),
	}
	if showAll {
		opts = append(opts, session.WithFragmentHook(func(ts time.Time, f ifit.Fragment) {
			fmt.Print(ifit.FormatFragment(ts, f))
		}))
	}

	r, err := openRunner(ctx, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	r.printBanner("Error Detection Mode")
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All fragments\n")
	} else {
		fmt.Printf("Mode: Faults only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if statsInterval > 0 {
		go printStatistics(ctx, r.Statistics(), time.Duration(statsInterval)*time.Second)
	}

	synchronized := false
	err = r.Run(ctx, func(resp ifit.Response) error {
		if !synchronized {
			// First complete sequence
			synchronized = true
			if dropped := r.Statistics().Snapshot().DroppedFragments; dropped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d fragments\n\n", dropped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		}
		if showAll {
			fmt.Print(ifit.FormatResponse(time.Now(), resp))
		}
		return nil
	})

	fmt.Println()
	fmt.Print(r.Statistics().String())
	return err
}

// printFault prints a fault, stall or decode error in highlighted format
func printFault(err error) {
	timestamp := time.Now().Format("15:04:05.000")

	if errors.Is(err, session.ErrStalled) {
		fmt.Printf("[%s] \033[1;33mSTALLED:\033[0m %v\n", timestamp, err)
		fmt.Printf("  >>> SEQUENCE ABANDONED <<<\n\n")
		return
	}

	faults := ifit.Faults(err)
	if len(faults) == 0 {
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
		fmt.Printf("  >>> PAYLOAD REJECTED <<<\n\n")
		return
	}

	fmt.Printf("[%s] \033[1;31mREASSEMBLY FAULT\033[0m\n", timestamp)
	for i, f := range faults {
		fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, f.Message)
		if len(f.Details) > 0 {
			fmt.Printf("    %s\n", formatFaultDetails(f.Details))
		}
	}
	fmt.Printf("  >>> SEQUENCE DISCARDED <<<\n\n")
}

// formatFaultDetails renders details as key=value pairs in key order
func formatFaultDetails(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := ""
	for i, k := range keys {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s=%v", k, details[k])
	}
	return result
}
