// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// CSVHeader is the column order of a workout record
var CSVHeader = []string{"incline", "pace", "distance", "timer"}

// CSVFileName returns the record file name for a session started at t
func CSVFileName(t time.Time) string {
	return t.Format("20060102_150405") + ".csv"
}

// CSVWriter writes one row per treadmill state sample. Rows are flushed as
// they are written so a killed session keeps everything up to the last sample.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
	path   string
}

// NewCSVWriter writes the header to w and returns the writer
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	c := &CSVWriter{w: csv.NewWriter(w)}
	if err := c.w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return c, nil
}

// CreateCSV creates a new record file in dir, named after start
func CreateCSV(dir string, start time.Time) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, CSVFileName(start))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	c, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	c.path = path
	return c, nil
}

// Path returns the file path, or "" when not writing to a file
func (c *CSVWriter) Path() string {
	return c.path
}

// Write implements Writer
func (c *CSVWriter) Write(state ifit.TreadmillState) error {
	row := []string{
		ifit.FormatDecimal(state.Incline),
		ifit.FormatDecimal(state.Pace),
		ifit.FormatDecimal(state.Distance),
		strconv.Itoa(state.Timer),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file, if any
func (c *CSVWriter) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
