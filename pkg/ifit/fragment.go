// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import "encoding/hex"

// FragmentKind identifies the role of a fragment inside a sequence
type FragmentKind int

// Fragment kinds
const (
	FragmentMiddle FragmentKind = iota
	FragmentHeader
	FragmentTrailer
)

// String returns the fragment kind name
func (k FragmentKind) String() string {
	switch k {
	case FragmentHeader:
		return "HEADER"
	case FragmentTrailer:
		return "TRAILER"
	default:
		return "MIDDLE"
	}
}

// Fragment is one transport unit as received from or sent to the device.
// Fragments are never modified once produced.
type Fragment []byte

// ParseFragment decodes a hex encoded fragment such as "fe020102"
func ParseFragment(s string) (Fragment, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Fragment(b), nil
}

// Kind classifies the fragment by its leading marker. Anything that is not a
// Header or a Trailer is a Middle fragment.
func (f Fragment) Kind() FragmentKind {
	if len(f) >= 2 && f[0] == HeaderMarker0 && f[1] == HeaderMarker1 {
		return FragmentHeader
	}
	if len(f) >= 1 && f[0] == TrailerMarker {
		return FragmentTrailer
	}
	return FragmentMiddle
}

// Hex returns the lowercase hex rendering used by capture files and fixtures
func (f Fragment) Hex() string {
	return hex.EncodeToString(f)
}

// DeclaredSize returns the total payload size announced by a Header
func (f Fragment) DeclaredSize() (int, bool) {
	if f.Kind() != FragmentHeader || len(f) < headerPrefixSize {
		return 0, false
	}
	return int(f[2]), true
}

// DeclaredCount returns the fragment count announced by a Header. The count
// includes the Header itself.
func (f Fragment) DeclaredCount() (int, bool) {
	if f.Kind() != FragmentHeader || len(f) < headerPrefixSize {
		return 0, false
	}
	return int(f[3]), true
}

// SegmentLength returns the declared data length of a Middle or Trailer
func (f Fragment) SegmentLength() (int, bool) {
	if f.Kind() == FragmentHeader || len(f) < segmentPrefixSize {
		return 0, false
	}
	return int(f[1]), true
}

// Token returns the sequence token carried by a Header or Trailer: every byte
// from offset 4 onward. Returns nil when the fragment carries none.
func (f Fragment) Token() []byte {
	if f.Kind() == FragmentMiddle || len(f) <= tokenOffset {
		return nil
	}
	token := make([]byte, len(f)-tokenOffset)
	copy(token, f[tokenOffset:])
	return token
}
