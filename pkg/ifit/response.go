// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Discriminator identifies the shape of a reassembled payload
type Discriminator uint32

// Known discriminators. Read little-endian from the payload, so the treadmill
// state arrives on the wire as 2e 04 2e 02.
const (
	DiscriminatorTreadmillState Discriminator = 0x022E042E
)

// ResponseKind is the decoded response variant
type ResponseKind int

const (
	ResponseUnknown ResponseKind = iota
	ResponseTreadmillState
)

// String returns the response kind name
func (k ResponseKind) String() string {
	switch k {
	case ResponseTreadmillState:
		return "TreadmillState"
	default:
		return "Unknown"
	}
}

// DeviceInfo is the 3-byte prefix of every payload. It most likely identifies
// the device type; decoding does not depend on it yet.
type DeviceInfo [DeviceInfoSize]byte

// Response is a decoded payload
type Response interface {
	Kind() ResponseKind
	Device() DeviceInfo
	DebugString() string
}

// TreadmillState is the current treadmill state, converted to imperial units
type TreadmillState struct {
	Info         DeviceInfo
	Pace         float64 // mph
	Incline      float64 // percent
	Distance     float64 // miles
	Timer        int     // seconds
	Pulse        int     // bpm
	PulseEnabled bool
	Raw          []byte // body after the discriminator
}

// Kind implements Response
func (s TreadmillState) Kind() ResponseKind { return ResponseTreadmillState }

// Device implements Response
func (s TreadmillState) Device() DeviceInfo { return s.Info }

// DebugString renders the decoded values followed by the raw body with every
// byte already claimed by a known field blanked out. What remains visible is
// what has not been reverse engineered yet.
func (s TreadmillState) DebugString() string {
	mask := TreadmillStateLayout.Mask(len(s.Raw))

	var masked strings.Builder
	for i, b := range s.Raw {
		if mask[i] {
			masked.WriteString("  ")
			continue
		}
		fmt.Fprintf(&masked, "%02x", b)
	}

	spacer := strings.Repeat(" ", 4)
	return fmt.Sprintf("(TreadmillState)%s%s mph%s%s%% incline%s%.3f miles%s%4d seconds%sPulse:%3d bpm%s%s",
		spacer, FormatDecimal(s.Pace),
		spacer, FormatDecimal(s.Incline),
		spacer, s.Distance,
		spacer, s.Timer,
		spacer, s.Pulse,
		spacer, masked.String())
}

// Unknown wraps a payload whose discriminator is not recognized
type Unknown struct {
	Info          DeviceInfo
	Discriminator Discriminator
	Raw           []byte
}

// Kind implements Response
func (u Unknown) Kind() ResponseKind { return ResponseUnknown }

// Device implements Response
func (u Unknown) Device() DeviceInfo { return u.Info }

// DebugString returns the raw body as hex
func (u Unknown) DebugString() string {
	return fmt.Sprintf("%x", u.Raw)
}

// Decode classifies a reassembled payload by its discriminator and extracts
// the fields of known shapes. Unrecognized discriminators are not an error:
// they decode to Unknown with the body preserved. A payload too short to
// carry a discriminator is Unknown too, with the whole payload as Raw.
// Only a known shape with a short body is an error.
func Decode(payload []byte) (Response, error) {
	var info DeviceInfo
	if len(payload) < bodyOffset {
		copy(info[:], payload)
		return Unknown{Info: info, Raw: bytes.Clone(payload)}, nil
	}

	copy(info[:], payload[:DeviceInfoSize])
	discriminator := Discriminator(binary.LittleEndian.Uint32(payload[DeviceInfoSize:bodyOffset]))
	body := bytes.Clone(payload[bodyOffset:])

	switch discriminator {
	case DiscriminatorTreadmillState:
		return decodeTreadmillState(info, body)
	default:
		return Unknown{Info: info, Discriminator: discriminator, Raw: body}, nil
	}
}

// decodeTreadmillState extracts the treadmill fields.
//
// Conversions:
//   - pace: km/h x 100, to mph, one decimal
//   - incline: percent x 100, one decimal
//   - distance: meters, to miles, three decimals
//   - timer, pulse: as is
func decodeTreadmillState(info DeviceInfo, body []byte) (Response, error) {
	if need := TreadmillStateLayout.MinLength(); len(body) < need {
		return nil, fmt.Errorf("%w: treadmill state body is %d bytes (min %d)", ErrTruncatedPayload, len(body), need)
	}

	return TreadmillState{
		Info:         info,
		Pace:         roundTo(float64(FieldPace.Uint(body))/100.0*kmToMiles, 1),
		Incline:      roundTo(float64(FieldIncline.Uint(body))/100.0, 1),
		Distance:     roundTo(float64(FieldDistance.Uint(body))/1000.0*kmToMiles, 3),
		Timer:        int(FieldTimer.Uint(body)),
		Pulse:        int(FieldPulse.Uint(body)),
		PulseEnabled: FieldPulseEnabled.Uint(body) != 0,
		Raw:          body,
	}, nil
}

// roundTo rounds x to the given number of decimal places using the exact
// binary value of x, ties to even.
func roundTo(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}

// FormatDecimal prints a float the short way but always with a decimal point
// (1 -> "1.0", 3.5 -> "3.5")
func FormatDecimal(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if math.IsInf(x, 0) || math.IsNaN(x) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
