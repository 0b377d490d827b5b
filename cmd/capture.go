// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// captureConnection tees every fragment crossing a connection into a file.
// CBOR captures keep both directions with timestamps. Hex captures keep
// inbound fragments only so they replay with --input-file.
type captureConnection struct {
	Connection

	mu   sync.Mutex
	file *os.File
	cbor *ifit.CaptureWriter
}

// withCapture wraps conn so its traffic is appended to path. An empty path
// returns conn unchanged.
func withCapture(conn Connection, path string) (Connection, error) {
	if path == "" {
		return conn, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	c := &captureConnection{Connection: conn, file: file}
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		c.cbor = ifit.NewCaptureWriter(file)
	}
	return c, nil
}

func (c *captureConnection) record(dir ifit.Direction, f ifit.Fragment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cbor != nil {
		return c.cbor.WriteFragment(time.Now(), dir, f)
	}
	if dir == ifit.Inbound {
		return ifit.WriteHex(c.file, f)
	}
	return nil
}

func (c *captureConnection) Next(ctx context.Context) (ifit.Fragment, error) {
	f, err := c.Connection.Next(ctx)
	if err != nil {
		return f, err
	}
	if werr := c.record(ifit.Inbound, f); werr != nil {
		return nil, fmt.Errorf("capture: %w", werr)
	}
	return f, nil
}

func (c *captureConnection) WriteFragment(f ifit.Fragment) error {
	if err := c.Connection.WriteFragment(f); err != nil {
		return err
	}
	return c.record(ifit.Outbound, f)
}

func (c *captureConnection) Close() error {
	c.mu.Lock()
	ferr := c.file.Close()
	c.mu.Unlock()
	return errors.Join(c.Connection.Close(), ferr)
}
