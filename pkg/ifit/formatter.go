// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"fmt"
	"strings"
	"time"
)

// FormatFragment formats a fragment into a human-readable line
func FormatFragment(ts time.Time, f Fragment) string {
	timestamp := ts.Format("15:04:05.000")

	switch f.Kind() {
	case FragmentHeader:
		size, ok := f.DeclaredSize()
		if !ok {
			return fmt.Sprintf("[%s] HEADER (malformed) %s\n", timestamp, f.Hex())
		}
		count, _ := f.DeclaredCount()
		return fmt.Sprintf("[%s] HEADER  size=%d count=%d token=%s\n", timestamp, size, count, formatToken(f.Token()))

	case FragmentTrailer:
		length, ok := f.SegmentLength()
		if !ok {
			return fmt.Sprintf("[%s] TRAILER (malformed) %s\n", timestamp, f.Hex())
		}
		return fmt.Sprintf("[%s] TRAILER len=%d data=%s token=%s\n", timestamp, length,
			formatSegment(f[segmentPrefixSize:], length), formatToken(f.Token()))

	default:
		length, ok := f.SegmentLength()
		if !ok {
			return fmt.Sprintf("[%s] MIDDLE (malformed) %s\n", timestamp, f.Hex())
		}
		return fmt.Sprintf("[%s] MIDDLE  idx=%d len=%d data=%s\n", timestamp, f[0], length,
			formatSegment(f[segmentPrefixSize:], length))
	}
}

// FormatResponse formats a decoded response into a human-readable block
func FormatResponse(ts time.Time, r Response) string {
	timestamp := ts.Format("15:04:05.000")
	info := r.Device()
	result := fmt.Sprintf("[%s] %s device=%x\n", timestamp, FormatResponseKind(r), info[:])

	switch v := r.(type) {
	case TreadmillState:
		pulse := "off"
		if v.PulseEnabled {
			pulse = fmt.Sprintf("%d bpm", v.Pulse)
		}
		result += fmt.Sprintf("  Pace: %s mph, Incline: %s%%, Distance: %.3f mi\n",
			FormatDecimal(v.Pace), FormatDecimal(v.Incline), v.Distance)
		result += fmt.Sprintf("  Timer: %s, Pulse: %s\n", FormatTimer(v.Timer), pulse)
	case Unknown:
		result += fmt.Sprintf("  Discriminator: 0x%08X\n", uint32(v.Discriminator))
		result += formatHexDump(v.Raw)
	}

	return result
}

// FormatResponseKind returns the human-readable name for a response
func FormatResponseKind(r Response) string {
	switch r.Kind() {
	case ResponseTreadmillState:
		return "TREADMILL_STATE"
	default:
		return "UNKNOWN"
	}
}

// FormatTimer renders seconds as MM:SS, or HH:MM:SS past the hour
func FormatTimer(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds / 60) % 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatSegment(data []byte, length int) string {
	if length > len(data) {
		length = len(data)
	}
	return fmt.Sprintf("%x", data[:length])
}

func formatToken(token []byte) string {
	if len(token) == 0 {
		return "-"
	}
	return fmt.Sprintf("%x", token)
}

func formatHexDump(data []byte) string {
	var sb strings.Builder
	sb.WriteString("  Payload: ")
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n           ")
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	sb.WriteString("\n")
	return sb.String()
}
