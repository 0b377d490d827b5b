package ifit

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// hexFragments converts fragments to hex for easier comparison
func hexFragments(fragments []Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Hex()
	}
	return out
}

func repeatByte(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestEncode_Vectors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []string
	}{
		{
			name:    "single byte",
			payload: []byte{0x01},
			want:    []string{"fe020102", "ff01010000000000000000000000000000000000"},
		},
		{
			name:    "one full middle and a one byte trailer",
			payload: append(repeatByte(0x01, 18), 0x02),
			want: []string{
				"fe021303",
				"0012010101010101010101010101010101010101",
				"ff01020000000000000000000000000000000000",
			},
		},
		{
			name: "exact multiple of the segment size",
			payload: append(append(repeatByte(0x01, 18), repeatByte(0x02, 18)...),
				repeatByte(0x03, 18)...),
			want: []string{
				"fe023604",
				"0012010101010101010101010101010101010101",
				"0112020202020202020202020202020202020202",
				"ff12030303030303030303030303030303030303",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments, err := Encode(tt.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got := hexFragments(fragments)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Encode mismatch:\n got  %v\n want %v", got, tt.want)
			}
		})
	}
}

func TestEncode_EmptyPayload(t *testing.T) {
	fragments, err := Encode(nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if fragments != nil {
		t.Errorf("expected no fragments, got %v", hexFragments(fragments))
	}

	if _, err := Encode([]byte{}); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload for zero-length slice, got %v", err)
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := Encode(make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	if _, err := Encode(make([]byte, MaxPayloadSize)); err != nil {
		t.Errorf("max size payload should encode, got %v", err)
	}
}

func TestEncode_FragmentCounts(t *testing.T) {
	tests := []struct {
		size          int
		wantFragments int // including the header
	}{
		{1, 2},
		{17, 2},
		{18, 2},
		{19, 3},
		{36, 3},
		{37, 4},
		{54, 4},
		{55, 5},
		{255, 16},
	}

	for _, tt := range tests {
		fragments, err := Encode(repeatByte(0xAA, tt.size))
		if err != nil {
			t.Fatalf("size %d: Encode failed: %v", tt.size, err)
		}
		if len(fragments) != tt.wantFragments {
			t.Errorf("size %d: got %d fragments, want %d", tt.size, len(fragments), tt.wantFragments)
		}

		count, ok := fragments[0].DeclaredCount()
		if !ok || count != tt.wantFragments {
			t.Errorf("size %d: header count = %d, want %d (header counts itself)", tt.size, count, tt.wantFragments)
		}
		size, _ := fragments[0].DeclaredSize()
		if size != tt.size {
			t.Errorf("size %d: header size = %d", tt.size, size)
		}
	}
}

func TestEncode_Shapes(t *testing.T) {
	fragments, err := Encode(repeatByte(0x55, 40))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if fragments[0].Kind() != FragmentHeader {
		t.Errorf("first fragment should be a header, got %s", fragments[0].Kind())
	}
	for i, f := range fragments[1 : len(fragments)-1] {
		if f.Kind() != FragmentMiddle {
			t.Errorf("fragment %d should be a middle, got %s", i+1, f.Kind())
		}
		if int(f[0]) != i {
			t.Errorf("middle %d has ordinal %d", i, f[0])
		}
		if len(f) != segmentPrefixSize+MaxSegmentSize {
			t.Errorf("middle %d is %d bytes, middles are never padded", i, len(f))
		}
	}

	trailer := fragments[len(fragments)-1]
	if trailer.Kind() != FragmentTrailer {
		t.Fatalf("last fragment should be a trailer, got %s", trailer.Kind())
	}
	if trailer[1] != 4 {
		t.Errorf("trailer length = %d, want 4", trailer[1])
	}
	if len(trailer) != segmentPrefixSize+MaxSegmentSize {
		t.Errorf("trailer is %d bytes, want padded to %d", len(trailer), segmentPrefixSize+MaxSegmentSize)
	}
	if !bytes.Equal(trailer[6:], make([]byte, MaxSegmentSize-4)) {
		t.Errorf("trailer padding should be zero, got %x", trailer[6:])
	}
}

func TestEncoder_DoesNotAliasPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	fragments, err := NewEncoder().Encode(payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	payload[0] = 0xFF
	if fragments[1][2] != 0x01 {
		t.Error("fragments should not share memory with the payload")
	}
}
