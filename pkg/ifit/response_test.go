// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// treadmillPayload builds a treadmill state payload with the given raw field values
func treadmillPayload(pace, incline, distance, pulse, pulseEnabled, timer uint16) []byte {
	payload := []byte{0x01, 0x04, 0x02, 0x2e, 0x04, 0x2e, 0x02}
	body := make([]byte, TreadmillStateLayout.MinLength())
	put := func(f Field, v uint16) {
		for i := 0; i < f.Length; i++ {
			body[f.Offset+i] = byte(v >> (8 * i))
		}
	}
	put(FieldPace, pace)
	put(FieldIncline, incline)
	put(FieldDistance, distance)
	put(FieldPulse, pulse)
	put(FieldPulseEnabled, pulseEnabled)
	put(FieldTimer, timer)
	return append(payload, body...)
}

func TestDecode_DeviceVector(t *testing.T) {
	payload, _ := hex.DecodeString(devicePayloadHex)

	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if r.Kind() != ResponseTreadmillState {
		t.Fatalf("Kind() = %s, want TreadmillState", r.Kind())
	}

	state := r.(TreadmillState)
	if state.Info != (DeviceInfo{0x01, 0x04, 0x02}) {
		t.Errorf("Info = %x", state.Info)
	}
	if state.Pace != 1.0 {
		t.Errorf("Pace = %v, want 1.0", state.Pace)
	}
	if state.Incline != 3.0 {
		t.Errorf("Incline = %v, want 3.0", state.Incline)
	}
	if state.Distance != 1.964 {
		t.Errorf("Distance = %v, want 1.964", state.Distance)
	}
	if state.Timer != 5954 {
		t.Errorf("Timer = %d, want 5954", state.Timer)
	}
	if state.Pulse != 0 || !state.PulseEnabled {
		t.Errorf("Pulse = %d enabled=%v, want 0 enabled=true", state.Pulse, state.PulseEnabled)
	}
	if len(state.Raw) != len(payload)-7 {
		t.Errorf("Raw is %d bytes, want %d", len(state.Raw), len(payload)-7)
	}
}

func TestDecode_Conversions(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		field string
		want  float64
	}{
		{"pace 1.6 km/h", 160, "pace", 1.0},
		{"pace 8.0 km/h", 800, "pace", 5.0},
		{"pace zero", 0, "pace", 0.0},
		{"incline 3%", 300, "incline", 3.0},
		{"incline exact tie rounds to even", 25, "incline", 0.2},
		{"incline binary above tie", 45, "incline", 0.5},
		{"incline binary below tie", 35, "incline", 0.3},
		{"distance 369 m", 369, "distance", 0.229},
		{"distance 3163 m", 3163, "distance", 1.964},
		{"distance 1000 m", 1000, "distance", 0.621},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload []byte
			switch tt.field {
			case "pace":
				payload = treadmillPayload(tt.raw, 0, 0, 0, 0, 0)
			case "incline":
				payload = treadmillPayload(0, tt.raw, 0, 0, 0, 0)
			case "distance":
				payload = treadmillPayload(0, 0, tt.raw, 0, 0, 0)
			}

			r, err := Decode(payload)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			state := r.(TreadmillState)

			var got float64
			switch tt.field {
			case "pace":
				got = state.Pace
			case "incline":
				got = state.Incline
			case "distance":
				got = state.Distance
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestDecode_IntegerFields(t *testing.T) {
	r, err := Decode(treadmillPayload(0, 0, 0, 142, 0, 3725))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	state := r.(TreadmillState)
	if state.Pulse != 142 {
		t.Errorf("Pulse = %d, want 142", state.Pulse)
	}
	if state.PulseEnabled {
		t.Error("PulseEnabled should be false when the flag byte is zero")
	}
	if state.Timer != 3725 {
		t.Errorf("Timer = %d, want 3725", state.Timer)
	}
}

func TestDecode_Unknown(t *testing.T) {
	payload := []byte{0x01, 0x04, 0x02, 0x11, 0x22, 0x33, 0x44, 0xaa, 0xbb}

	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("unknown discriminator should not be an error: %v", err)
	}
	u, ok := r.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", r)
	}
	if u.Discriminator != 0x44332211 {
		t.Errorf("Discriminator = 0x%08X, want 0x44332211", uint32(u.Discriminator))
	}
	if hex.EncodeToString(u.Raw) != "aabb" {
		t.Errorf("Raw = %x, want aabb", u.Raw)
	}
	if u.DebugString() != "aabb" {
		t.Errorf("DebugString() = %q", u.DebugString())
	}
}

func TestDecode_ShortPayload(t *testing.T) {
	// Anything too short for a discriminator is an Unknown that keeps every byte
	payload := []byte{0x01, 0x04, 0x02, 0x99, 0x00}
	for n := 0; n < bodyOffset; n++ {
		r, err := Decode(payload[:min(n, len(payload))])
		if err != nil {
			t.Fatalf("%d bytes: expected Unknown, got error %v", n, err)
		}
		u, ok := r.(Unknown)
		if !ok {
			t.Fatalf("%d bytes: expected Unknown, got %T", n, r)
		}
		if u.Discriminator != 0 {
			t.Errorf("%d bytes: Discriminator = 0x%08X, want 0", n, uint32(u.Discriminator))
		}
	}

	r, _ := Decode(payload)
	u := r.(Unknown)
	if hex.EncodeToString(u.Raw) != "0104029900" {
		t.Errorf("Raw = %x, want 0104029900", u.Raw)
	}
	if u.Info != (DeviceInfo{0x01, 0x04, 0x02}) {
		t.Errorf("Info = %x, want 010402", u.Info[:])
	}

	r, _ = Decode([]byte{0x01, 0x04})
	if r.Device() != (DeviceInfo{0x01, 0x04, 0x00}) {
		t.Errorf("partial Info = %x, want 010400", r.Device())
	}

	// Device info and discriminator alone are enough for an unknown shape
	if _, err := Decode(make([]byte, bodyOffset)); err != nil {
		t.Errorf("7 bytes should decode, got %v", err)
	}
}

func TestDecode_ReassembledShortPayload(t *testing.T) {
	fragments, err := Encode([]byte{0x01, 0x04, 0x02, 0x99, 0x00})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	r := NewReassembler()
	var payload Payload
	for _, f := range fragments {
		if payload, err = r.Feed(f); err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
	}
	if payload == nil {
		t.Fatal("expected a payload")
	}

	resp, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Kind() != ResponseUnknown {
		t.Errorf("Kind = %v, want Unknown", resp.Kind())
	}
}

func TestDecode_TruncatedTreadmillState(t *testing.T) {
	full := treadmillPayload(160, 300, 369, 0, 1, 60)
	_, err := Decode(full[:len(full)-1])
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
}

func TestDecode_RawIsCopied(t *testing.T) {
	payload := treadmillPayload(160, 0, 0, 0, 0, 0)
	r, _ := Decode(payload)
	payload[bodyOffset] = 0xEE
	if r.(TreadmillState).Raw[0] == 0xEE {
		t.Error("Raw should not alias the payload")
	}
}

func TestTreadmillState_DebugString(t *testing.T) {
	payload, _ := hex.DecodeString(devicePayloadHex)
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	spacer := "    "
	masked := "02" + strings.Repeat(" ", 8) + "7100" + strings.Repeat(" ", 4) +
		"0000" + "  " + "0000" + "  " + "023203" + strings.Repeat(" ", 4)
	want := "(TreadmillState)" +
		spacer + "1.0 mph" +
		spacer + "3.0% incline" +
		spacer + "1.964 miles" +
		spacer + "5954 seconds" +
		spacer + "Pulse:  0 bpm" +
		spacer + masked

	// Only the first 20 body bytes are masked; the rest print verbatim
	got := r.DebugString()
	if !strings.HasPrefix(got, want) {
		t.Errorf("DebugString mismatch:\n got  %q\n want %q...", got, want)
	}
}

func TestTreadmillState_DebugStringPadsTimer(t *testing.T) {
	r, err := Decode(treadmillPayload(0, 0, 0, 0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.DebugString(), "   7 seconds") {
		t.Errorf("timer should be right aligned to four columns: %q", r.DebugString())
	}
}

func TestLayout_Mask(t *testing.T) {
	mask := TreadmillStateLayout.Mask(22)
	claimed := map[int]bool{1: true, 2: true, 3: true, 4: true, 7: true, 8: true, 11: true, 14: true, 18: true, 19: true}
	for i, m := range mask {
		if m != claimed[i] {
			t.Errorf("byte %d: masked=%v, want %v", i, m, claimed[i])
		}
	}
	if TreadmillStateLayout.MinLength() != 20 {
		t.Errorf("MinLength() = %d, want 20", TreadmillStateLayout.MinLength())
	}
}
