// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction tells whether a captured fragment was received or sent
type Direction uint8

const (
	Inbound  Direction = 0
	Outbound Direction = 1
)

// String returns the direction name
func (d Direction) String() string {
	if d == Outbound {
		return "TX"
	}
	return "RX"
}

// CaptureRecord is one timestamped fragment in a CBOR capture file.
// Records are written back to back as a CBOR sequence: {0: ms, 1: dir, 2: bytes}
type CaptureRecord struct {
	TimestampMs int64     `cbor:"0,keyasint"`
	Direction   Direction `cbor:"1,keyasint"`
	Data        []byte    `cbor:"2,keyasint"`
}

// Time returns the record timestamp
func (c CaptureRecord) Time() time.Time {
	return time.UnixMilli(c.TimestampMs)
}

// Fragment returns the captured fragment
func (c CaptureRecord) Fragment() Fragment {
	return Fragment(c.Data)
}

// CaptureWriter appends fragments to a CBOR capture stream
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// WriteFragment records one fragment with the given direction and time
func (c *CaptureWriter) WriteFragment(ts time.Time, dir Direction, f Fragment) error {
	rec := CaptureRecord{TimestampMs: ts.UnixMilli(), Direction: dir, Data: []byte(f)}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads records from a CBOR capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// HexReader reads fragments from text with one hex fragment per line, e.g.
//
//	fe023204002c4600000000000000000000010000
//	00120104022e042e020200000000000000000000
//
// Blank lines and lines starting with '#' are skipped.
type HexReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewHexReader creates a hex line reader on r
func NewHexReader(r io.Reader) *HexReader {
	return &HexReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next fragment, or io.EOF at the end of the input
func (h *HexReader) Next() (Fragment, error) {
	for h.scanner.Scan() {
		h.line++
		line := strings.TrimSpace(h.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f, err := ParseFragment(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid hex fragment: %w", h.line, err)
		}
		return f, nil
	}
	if err := h.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// WriteHex writes a fragment as one hex line
func WriteHex(w io.Writer, f Fragment) error {
	_, err := fmt.Fprintln(w, f.Hex())
	return err
}
