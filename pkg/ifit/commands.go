// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"bytes"
	"sort"
)

// Request is a named, fixed request payload. Its fragments are regenerated on
// every call so no two senders ever share fragment buffers.
type Request struct {
	name    string
	payload []byte
}

// Request names
const (
	RequestCurrentState = "current_state"
)

// The meaning of these bytes is unknown; they are replayed exactly as the
// vendor app sends them.
var currentStatePayload = []byte{
	0x02, 0x04, 0x02, 0x10, 0x04, 0x10, 0x02, 0x00, 0x0a, 0x1b,
	0x94, 0x30, 0x00, 0x00, 0x40, 0x50, 0x00, 0x80, 0x18, 0x27,
}

var requestCatalog = map[string][]byte{
	RequestCurrentState: currentStatePayload,
}

// CurrentStateRequest asks the treadmill for its current state.
// The device answers with a TreadmillState sequence.
func CurrentStateRequest() Request {
	return Request{name: RequestCurrentState, payload: currentStatePayload}
}

// LookupRequest returns the catalog request with the given name
func LookupRequest(name string) (Request, bool) {
	payload, ok := requestCatalog[name]
	if !ok {
		return Request{}, false
	}
	return Request{name: name, payload: payload}, true
}

// RequestNames lists the catalog in name order
func RequestNames() []string {
	names := make([]string, 0, len(requestCatalog))
	for name := range requestCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the request name
func (r Request) Name() string {
	return r.name
}

// Payload returns a copy of the request payload
func (r Request) Payload() []byte {
	return bytes.Clone(r.payload)
}

// Fragments encodes the request for transmission
func (r Request) Fragments() ([]Fragment, error) {
	return Encode(r.payload)
}
