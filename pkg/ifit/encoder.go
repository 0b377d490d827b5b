package ifit

import "fmt"

// Encoder splits payloads into the fragment sequence the device expects.
type Encoder struct{}

// NewEncoder creates a new fragment encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a payload to its fragment sequence.
func (e *Encoder) Encode(payload []byte) ([]Fragment, error) {
	return Encode(payload)
}

// Encode splits payload into a Header, zero or more Middle fragments and a
// Trailer. The Trailer segment is zero padded to MaxSegmentSize.
//
// The Header count includes the Header itself (dataFragments + 1). The
// reassembler counts the other way round, see Reassembler.
func Encode(payload []byte) ([]Fragment, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	dataFragments := (len(payload) + MaxSegmentSize - 1) / MaxSegmentSize
	headerCount := dataFragments + 1

	fragments := make([]Fragment, 0, headerCount)
	fragments = append(fragments, Fragment{HeaderMarker0, HeaderMarker1, byte(len(payload)), byte(headerCount)})

	for i := 0; i < dataFragments; i++ {
		start := i * MaxSegmentSize
		end := min(start+MaxSegmentSize, len(payload))
		chunk := payload[start:end]

		if i == dataFragments-1 {
			// Trailer: marker, length, data, zero padding
			trailer := make(Fragment, segmentPrefixSize+MaxSegmentSize)
			trailer[0] = TrailerMarker
			trailer[1] = byte(len(chunk))
			copy(trailer[segmentPrefixSize:], chunk)
			fragments = append(fragments, trailer)
			break
		}

		middle := make(Fragment, 0, segmentPrefixSize+len(chunk))
		middle = append(middle, byte(i), byte(len(chunk)))
		middle = append(middle, chunk...)
		fragments = append(fragments, middle)
	}

	return fragments, nil
}
