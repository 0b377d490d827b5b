// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package cmd

import (
	"context"
	"fmt"
	"runtime"
)

// OpenBluetoothConnection is only available on Linux (BlueZ). Use a serial
// or WebSocket bridge elsewhere.
func OpenBluetoothConnection(ctx context.Context, address string) (Connection, error) {
	return nil, fmt.Errorf("direct bluetooth is not supported on %s; use --port or --url with a BLE bridge", runtime.GOOS)
}

// ScanAdvertisements is only available on Linux (BlueZ)
func ScanAdvertisements(ctx context.Context, all bool, found func(Advertisement)) error {
	return fmt.Errorf("bluetooth scanning is not supported on %s", runtime.GOOS)
}
