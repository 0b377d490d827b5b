// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	discoveryTimeout int
	discoveryAll     bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover treadmills via Bluetooth LE",
	Long: `Scan for Bluetooth LE devices advertising the iFit treadmill service.

Each treadmill found is printed with its address, name and signal strength.
Pass the address to --address to connect to it.

Examples:
  # Scan for 10 seconds
  nongofit discovery --timeout 10

  # Show every advertising device, not just treadmills
  nongofit discovery --all

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices before timeout)
  2 - Adapter error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds for discovery")
	discoveryCmd.Flags().BoolVar(&discoveryAll, "all", false, "Show all advertising devices")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	fmt.Printf("nongofit - Treadmill Discovery\n")
	fmt.Printf("Service: %s\n", ServiceUUID)
	fmt.Printf("Timeout: %d seconds\n", discoveryTimeout)

	devices := make([]Advertisement, 0)
	err := ScanAdvertisements(ctx, discoveryAll, func(adv Advertisement) {
		devices = append(devices, adv)
		fmt.Printf("\nDevice found:\n")
		fmt.Printf("  Address: %s\n", adv.Address)
		if adv.Name != "" {
			fmt.Printf("  Name: %s\n", adv.Name)
		}
		fmt.Printf("  RSSI: %d dBm\n", adv.RSSI)
		if discoveryAll {
			fmt.Printf("  Treadmill: %t\n", adv.Treadmill)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Adapter error: %v\n", err)
		os.Exit(2)
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(devices))

	if len(devices) == 0 {
		fmt.Printf("No treadmills discovered. Check that the treadmill is powered and not paired elsewhere.\n")
		os.Exit(1)
	}

	return nil
}
