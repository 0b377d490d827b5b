// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// nongofit - iFit Treadmill Protocol Logger
//
// Logs workouts from iFit treadmills over Bluetooth LE by polling the
// treadmill state and decoding its fragmented responses.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/nongofit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
