// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

// Field locates one little-endian unsigned value inside a response body.
// Offsets are measured from the first byte after the discriminator.
type Field struct {
	Name   string
	Offset int
	Length int
}

// End returns the offset one past the field's last byte
func (f Field) End() int {
	return f.Offset + f.Length
}

// Uint reads the field as a little-endian unsigned integer
func (f Field) Uint(body []byte) uint64 {
	var v uint64
	for i := f.Length - 1; i >= 0; i-- {
		v = v<<8 | uint64(body[f.Offset+i])
	}
	return v
}

// Layout is a fixed table of fields making up one response shape
type Layout []Field

// MinLength returns the shortest body that holds every field
func (l Layout) MinLength() int {
	n := 0
	for _, f := range l {
		n = max(n, f.End())
	}
	return n
}

// Mask reports, per body byte, whether a named field consumes it
func (l Layout) Mask(n int) []bool {
	mask := make([]bool, n)
	for _, f := range l {
		for i := f.Offset; i < f.End() && i < n; i++ {
			mask[i] = true
		}
	}
	return mask
}

// Treadmill state fields.
//
//	02 a000 2c01 7100 1400 0000 00 0000 00 02 3100 310000009a630300b4003f
//	   PPPP IIII      DDDD      UU      EE    TTTT
//
// Byte 15 reads 0x01 in the normal display and 0x07 in the settings menu; it
// stays unmasked until its meaning is pinned down.
var (
	FieldPace         = Field{Name: "pace", Offset: 1, Length: 2}
	FieldIncline      = Field{Name: "incline", Offset: 3, Length: 2}
	FieldDistance     = Field{Name: "distance", Offset: 7, Length: 2}
	FieldPulse        = Field{Name: "pulse", Offset: 11, Length: 1}
	FieldPulseEnabled = Field{Name: "pulse_enabled", Offset: 14, Length: 1}
	FieldTimer        = Field{Name: "timer", Offset: 18, Length: 2}
)

// TreadmillStateLayout lists every known treadmill state field
var TreadmillStateLayout = Layout{
	FieldPace,
	FieldIncline,
	FieldDistance,
	FieldPulse,
	FieldPulseEnabled,
	FieldTimer,
}
