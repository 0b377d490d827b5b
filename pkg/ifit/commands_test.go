// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ifit

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestCurrentStateRequest_Fragments(t *testing.T) {
	fragments, err := CurrentStateRequest().Fragments()
	if err != nil {
		t.Fatalf("Fragments failed: %v", err)
	}

	want := []string{
		"fe021403",
		"001202040210041002000a1b9430000040500080",
		"ff02182700000000000000000000000000000000",
	}
	got := hexFragments(fragments)
	if len(got) != len(want) {
		t.Fatalf("got %d fragments, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCurrentStateRequest_FreshFragments(t *testing.T) {
	req := CurrentStateRequest()
	first, _ := req.Fragments()
	second, _ := req.Fragments()

	first[1][2] = 0xEE
	if second[1][2] == 0xEE {
		t.Error("each call should produce independent fragments")
	}

	again, _ := CurrentStateRequest().Fragments()
	if again[1][2] != 0x02 {
		t.Error("mutating fragments must not alter the catalog")
	}
}

func TestCurrentStateRequest_RoundTrip(t *testing.T) {
	req := CurrentStateRequest()
	fragments, _ := req.Fragments()

	payloads := feedAll(t, NewReassembler(), fragments)
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	if hex.EncodeToString(payloads[0]) != "02040210041002000a1b94300000405000801827" {
		t.Errorf("payload = %x", payloads[0])
	}
}

func TestRequest_PayloadIsCopy(t *testing.T) {
	req := CurrentStateRequest()
	p := req.Payload()
	p[0] = 0xFF
	if bytes.Equal(p, req.Payload()) {
		t.Error("Payload() should return a copy")
	}
}

func TestLookupRequest(t *testing.T) {
	tests := []struct {
		name   string
		wantOK bool
	}{
		{RequestCurrentState, true},
		{"start_workout", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := LookupRequest(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("LookupRequest(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			}
			if ok && req.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", req.Name(), tt.name)
			}
		})
	}
}

func TestRequestNames(t *testing.T) {
	names := RequestNames()
	if len(names) != 1 || names[0] != RequestCurrentState {
		t.Errorf("RequestNames() = %v", names)
	}
}
