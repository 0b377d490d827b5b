// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"errors"
	"fmt"
)

// Encoder errors. These are caller errors and are returned before any
// fragment is produced.
var (
	ErrEmptyPayload    = errors.New("ifit: empty payload")
	ErrPayloadTooLarge = errors.New("ifit: payload too large")
)

// Decoder errors
var (
	ErrTruncatedPayload = errors.New("ifit: payload too short for its layout")
)

// Reassembly fault sentinels, matched with errors.Is against a *Fault
var (
	ErrSequenceMismatch    = errors.New("ifit: sequence token mismatch")
	ErrOrderingFault       = errors.New("ifit: middle fragment out of order")
	ErrCountMismatch       = errors.New("ifit: fragment count mismatch")
	ErrSizeMismatch        = errors.New("ifit: payload size mismatch")
	ErrMalformedFragment   = errors.New("ifit: malformed fragment")
	ErrSequenceInterrupted = errors.New("ifit: sequence interrupted by new header")
)

// FaultKind represents the different ways a sequence can fail reassembly
type FaultKind int

const (
	FaultSequenceMismatch FaultKind = iota
	FaultOrdering
	FaultCountMismatch
	FaultSizeMismatch
	FaultMalformed
	FaultInterrupted
)

// String returns the fault kind name
func (k FaultKind) String() string {
	switch k {
	case FaultSequenceMismatch:
		return "SequenceMismatch"
	case FaultOrdering:
		return "OrderingFault"
	case FaultCountMismatch:
		return "CountMismatch"
	case FaultSizeMismatch:
		return "SizeMismatch"
	case FaultMalformed:
		return "MalformedFragment"
	case FaultInterrupted:
		return "SequenceInterrupted"
	default:
		return "Unknown"
	}
}

func (k FaultKind) sentinel() error {
	switch k {
	case FaultSequenceMismatch:
		return ErrSequenceMismatch
	case FaultOrdering:
		return ErrOrderingFault
	case FaultCountMismatch:
		return ErrCountMismatch
	case FaultSizeMismatch:
		return ErrSizeMismatch
	case FaultMalformed:
		return ErrMalformedFragment
	case FaultInterrupted:
		return ErrSequenceInterrupted
	default:
		return nil
	}
}

// Fault reports a reassembly failure. A fault aborts the in-flight sequence
// only; the reassembler stays usable and the next Header starts fresh.
type Fault struct {
	Kind    FaultKind
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (f *Fault) Error() string {
	return f.Message
}

// Unwrap exposes the sentinel for the fault kind
func (f *Fault) Unwrap() error {
	return f.Kind.sentinel()
}

func newFault(kind FaultKind, details map[string]interface{}, format string, args ...interface{}) *Fault {
	return &Fault{
		Kind:    kind,
		Message: fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...)),
		Details: details,
	}
}

// Faults extracts every *Fault from err, including joined errors
func Faults(err error) []*Fault {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var faults []*Fault
		for _, e := range joined.Unwrap() {
			faults = append(faults, Faults(e)...)
		}
		return faults
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return []*Fault{fault}
	}
	return nil
}
