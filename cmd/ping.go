// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure request round trips to the treadmill",
	Long: `Send current state requests one at a time and wait for each response.

This command tests bidirectional communication with the treadmill or bridge
and reports the round-trip time of every request.

This is useful for verifying:
  - The link is established (Bluetooth pairing, bridge auth)
  - Requests reach the treadmill
  - Response sequences reassemble and decode

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	r, err := openRunner(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer r.Close()

	fmt.Printf("nongofit - Ping Test\n")
	fmt.Printf("Connection: %s\n", r.info)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	// Responses are read by the session for the whole run
	responseChan := make(chan ifit.Response, 1)
	errChan := make(chan error, 1)
	go func() {
		errChan <- r.session.Run(ctx, func(resp ifit.Response) error {
			select {
			case responseChan <- resp:
			default:
			}
			return nil
		})
	}()

	// Requests are sent by hand, one per ping
	poller := session.NewPoller(r.conn, ifit.CurrentStateRequest(), 0)
	successCount := 0
	failCount := 0

pings:
	for i := 1; i <= pingCount && ctx.Err() == nil; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Discard a late answer to the previous ping
		select {
		case <-responseChan:
		default:
		}

		startTime := time.Now()
		failedBefore := poller.Failed()
		poller.Poll()
		if poller.Failed() != failedBefore {
			fmt.Printf("SEND FAILED\n")
			failCount++
			continue
		}

		// Wait for response or timeout
		select {
		case resp := <-responseChan:
			rtt := time.Since(startTime)
			info := resp.Device()
			fmt.Printf("%s from %x, rtt=%v\n", ifit.FormatResponseKind(resp), info[:], rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			if err == nil {
				err = ErrConnectionClosed
			}
			fmt.Printf("READ FAILED: %v\n", err)
			failCount++
			break pings

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++

		case <-ctx.Done():
			fmt.Printf("INTERRUPTED\n")
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	sent := successCount + failCount
	var loss float64
	if sent > 0 {
		loss = float64(failCount) / float64(sent) * 100
	}
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n", sent, successCount, loss)

	if failCount > 0 {
		r.Close()
		os.Exit(1)
	}
	return nil
}
