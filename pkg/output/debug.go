// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"fmt"
	"io"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// DebugWriter prints each sample's debug string, one per line
type DebugWriter struct {
	w io.Writer
}

// NewDebugWriter creates a debug writer on w
func NewDebugWriter(w io.Writer) *DebugWriter {
	return &DebugWriter{w: w}
}

// Write implements Writer
func (d *DebugWriter) Write(state ifit.TreadmillState) error {
	_, err := fmt.Fprintln(d.w, state.DebugString())
	return err
}

// Close implements Writer
func (d *DebugWriter) Close() error {
	return nil
}
