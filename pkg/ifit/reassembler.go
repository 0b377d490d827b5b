// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"bytes"
	"encoding/hex"
	"errors"
)

// Payload is a fully reassembled sequence: the concatenated Middle and
// Trailer data. The Header contributes no payload bytes.
type Payload []byte

// sequence holds the per-sequence reassembly state. The carried token is the
// only field that survives reset.
type sequence struct {
	active    bool
	size      int // payload size declared by the Header
	remaining int // fragments still expected, Header excluded
	lastIndex int
	data      []byte
	token     []byte
}

func (s *sequence) reset(token []byte) {
	*s = sequence{lastIndex: noIndex, token: token}
}

// Reassembler turns an ordered stream of fragments into payloads.
//
// The Header announces the fragment count including itself; the reassembler
// tracks the fragments remaining after the Header (count - 1), so exactly one
// fragment, the Trailer, must remain when the Trailer arrives.
//
// Segment lengths are trusted: a Middle or Trailer contributes exactly the
// number of bytes it declares. Bytes past the declared length (Trailer
// padding) are ignored, and a declared length longer than the fragment is a
// MalformedFragment fault.
//
// A Reassembler is not safe for concurrent use; feed it from one goroutine.
type Reassembler struct {
	seq     sequence
	dropped uint64
}

// NewReassembler creates a new reassembler with no carried sequence token
func NewReassembler() *Reassembler {
	r := &Reassembler{}
	r.seq.reset(nil)
	return r
}

// Reset abandons the in-flight sequence. The carried sequence token is kept.
func (r *Reassembler) Reset() {
	r.seq.reset(r.seq.token)
}

// InProgress returns true while a sequence has started and not yet completed
func (r *Reassembler) InProgress() bool {
	return r.seq.active
}

// Remaining returns the number of fragments still expected in the current sequence
func (r *Reassembler) Remaining() int {
	return r.seq.remaining
}

// SequenceToken returns a copy of the token carried into the next sequence
func (r *Reassembler) SequenceToken() []byte {
	if r.seq.token == nil {
		return nil
	}
	return bytes.Clone(r.seq.token)
}

// Dropped returns the number of fragments discarded because no sequence was
// in progress (before the first Header, or after a fault)
func (r *Reassembler) Dropped() uint64 {
	return r.dropped
}

// Feed processes a single fragment.
// Returns the reassembled payload when fragment completes a sequence, or nil
// if the sequence is incomplete.
// Returns a *Fault (or several, joined) if the fragment broke the sequence.
func (r *Reassembler) Feed(f Fragment) (Payload, error) {
	switch f.Kind() {
	case FragmentHeader:
		return nil, r.handleHeader(f)
	case FragmentTrailer:
		return r.handleTrailer(f)
	default:
		return nil, r.handleMiddle(f)
	}
}

// handleHeader starts a new sequence.
//
// Example:
//
//	fe02 32 04 02060406900208a46e0e005702b4002b
//	MMMM SS CC TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT
func (r *Reassembler) handleHeader(f Fragment) error {
	var faults []error

	if r.seq.active {
		faults = append(faults, newFault(FaultInterrupted,
			map[string]interface{}{"remaining": r.seq.remaining, "buffered": len(r.seq.data)},
			"header arrived with %d fragment(s) outstanding", r.seq.remaining))
	}

	carried := r.seq.token
	r.seq.reset(carried)

	if len(f) < headerPrefixSize {
		faults = append(faults, newFault(FaultMalformed,
			map[string]interface{}{"length": len(f), "minimum": headerPrefixSize},
			"header is %d bytes (min %d)", len(f), headerPrefixSize))
		return joinFaults(faults)
	}

	// A header without token bytes (e.g. an outbound request) declares nothing
	// to compare against.
	if token := f.Token(); carried != nil && token != nil && !bytes.Equal(carried, token) {
		faults = append(faults, newFault(FaultSequenceMismatch,
			map[string]interface{}{"expected": hex.EncodeToString(carried), "received": hex.EncodeToString(token)},
			"expected %x, got %x", carried, token))
		return joinFaults(faults)
	}

	r.seq.active = true
	r.seq.size = int(f[2])
	r.seq.remaining = int(f[3]) - 1
	return joinFaults(faults)
}

// handleMiddle appends one intermediate segment.
//
// Example:
//
//	00 12 0104022e042e0202a0002c0171005b0c0000
//	NN SS DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD
func (r *Reassembler) handleMiddle(f Fragment) error {
	if !r.seq.active {
		r.dropped++
		return nil
	}

	if len(f) < segmentPrefixSize {
		r.Reset()
		return newFault(FaultMalformed,
			map[string]interface{}{"length": len(f), "minimum": segmentPrefixSize},
			"middle fragment is %d bytes (min %d)", len(f), segmentPrefixSize)
	}

	index := int(f[0])
	length := int(f[1])
	data := f[segmentPrefixSize:]

	if expected := r.seq.lastIndex + 1; index != expected {
		r.Reset()
		return newFault(FaultOrdering,
			map[string]interface{}{"index": index, "expected": expected},
			"middle fragment index %d, expected %d", index, expected)
	}

	if length > len(data) {
		r.Reset()
		return newFault(FaultMalformed,
			map[string]interface{}{"declared": length, "available": len(data)},
			"middle fragment %d declares %d bytes, carries %d", index, length, len(data))
	}

	r.seq.lastIndex = index
	r.seq.data = append(r.seq.data, data[:length]...)
	r.seq.remaining--
	return nil
}

// handleTrailer closes the sequence. The final 16 bytes of the Trailer
// double as the token for the next sequence.
//
// Example:
//
//	ff 0e 01790058028a760e008a760e003a02b4002b
//	HH SS DDDDDDDDDDDDDDDDDDDDDDDDDDDD
//	          TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT
func (r *Reassembler) handleTrailer(f Fragment) (Payload, error) {
	// Every Trailer donates its token, even one that is dropped or faulted,
	// so continuity checks resume with the next sequence. A Trailer too short
	// to carry one leaves the current token in place.
	next := f.Token()
	if next == nil {
		next = r.seq.token
	}

	if !r.seq.active {
		r.dropped++
		r.seq.reset(next)
		return nil, nil
	}

	if r.seq.remaining != 1 {
		remaining := r.seq.remaining
		r.seq.reset(next)
		return nil, newFault(FaultCountMismatch,
			map[string]interface{}{"remaining": remaining, "expected": 1},
			"trailer arrived with %d fragment(s) remaining, expected 1", remaining)
	}

	if len(f) < segmentPrefixSize {
		r.seq.reset(next)
		return nil, newFault(FaultMalformed,
			map[string]interface{}{"length": len(f), "minimum": segmentPrefixSize},
			"trailer is %d bytes (min %d)", len(f), segmentPrefixSize)
	}

	length := int(f[1])
	data := f[segmentPrefixSize:]
	if length > len(data) {
		r.seq.reset(next)
		return nil, newFault(FaultMalformed,
			map[string]interface{}{"declared": length, "available": len(data)},
			"trailer declares %d bytes, carries %d", length, len(data))
	}

	payload := append(r.seq.data, data[:length]...)
	size := r.seq.size
	r.seq.reset(next)

	if len(payload) != size {
		return nil, newFault(FaultSizeMismatch,
			map[string]interface{}{"size": len(payload), "declared": size},
			"reassembled %d bytes, header declared %d", len(payload), size)
	}

	return Payload(payload), nil
}

func joinFaults(faults []error) error {
	switch len(faults) {
	case 0:
		return nil
	case 1:
		return faults[0]
	default:
		return errors.Join(faults...)
	}
}
