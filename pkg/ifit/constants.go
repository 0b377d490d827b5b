// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ifit implements the fragmented BLE protocol spoken by iFit treadmills.
//
// Every logical payload travels as a short sequence of notification-sized
// fragments: a Header, zero or more Middle fragments and a Trailer. This package
// provides the fragment encoder, the stateful reassembler, the payload decoder
// and the catalog of known request payloads.
package ifit

// Fragment markers
const (
	HeaderMarker0 = 0xFE
	HeaderMarker1 = 0x02
	TrailerMarker = 0xFF
)

// Fragment geometry
const (
	// MaxSegmentSize is the largest data segment carried by one fragment.
	MaxSegmentSize = 0x12

	// SequenceTokenSize is the width of the token that closes a Trailer.
	SequenceTokenSize = 16

	// MaxPayloadSize is bounded by the one-byte size field of the Header.
	MaxPayloadSize = 0xFF

	headerPrefixSize  = 4 // marker(2) + size + count
	segmentPrefixSize = 2 // index/marker + length
	tokenOffset       = 4
)

// Payload layout
const (
	DeviceInfoSize    = 3
	DiscriminatorSize = 4
	bodyOffset        = DeviceInfoSize + DiscriminatorSize
)

// Unit conversions
const (
	kmToMiles = 0.621
)

// noIndex marks that no Middle fragment has been seen in the current sequence.
const noIndex = -1
