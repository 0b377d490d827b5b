// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

var deviceSequence = []string{
	"fe02320402060406900208a46e0e005702b4002b",
	"00120104022e042e0202a0002c0171005b0c0000",
	"011200000001023203421700007a641f02b4002b",
	"ff0e01790058028a760e008a760e003a02b4002b",
}

func fragments(t *testing.T, ss ...string) []ifit.Fragment {
	t.Helper()
	out := make([]ifit.Fragment, len(ss))
	for i, s := range ss {
		f, err := ifit.ParseFragment(s)
		require.NoError(t, err)
		out[i] = f
	}
	return out
}

func collect(t *testing.T, s *Session) ([]ifit.Response, error) {
	t.Helper()
	var out []ifit.Response
	err := s.Run(context.Background(), func(r ifit.Response) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func TestSession_DecodesDeviceSequence(t *testing.T) {
	s := New(NewSliceSource(fragments(t, deviceSequence...)...), WithLogger(zerolog.Nop()))

	responses, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	state, ok := responses[0].(ifit.TreadmillState)
	require.True(t, ok, "expected TreadmillState, got %T", responses[0])
	assert.Equal(t, 1.0, state.Pace)
	assert.Equal(t, 3.0, state.Incline)
	assert.Equal(t, 1.964, state.Distance)
	assert.Equal(t, 5954, state.Timer)
	assert.True(t, state.PulseEnabled)

	snap := s.Statistics().Snapshot()
	assert.Equal(t, uint64(4), snap.Fragments)
	assert.Equal(t, uint64(1), snap.Sequences)
	assert.Equal(t, uint64(1), snap.TreadmillStates)
	assert.Zero(t, snap.Faults)
}

func TestSession_FaultsDoNotEndSession(t *testing.T) {
	seq := fragments(t, deviceSequence...)
	// The dropped trailer hands its token to the next header
	next := fragments(t, "fe023204"+"0058028a760e008a760e003a02b4002b")[0]
	stream := []ifit.Fragment{
		// Joined mid-stream
		seq[1],
		// Ordering fault: middle 1 before middle 0
		seq[0], seq[2], seq[1], seq[3],
		// A clean sequence
		next, seq[1], seq[2], seq[3],
	}

	var faults []error
	s := New(NewSliceSource(stream...),
		WithLogger(zerolog.Nop()),
		WithErrorHook(func(err error) { faults = append(faults, err) }),
	)

	responses, err := collect(t, s)
	require.NoError(t, err)
	assert.Len(t, responses, 1)

	require.Len(t, faults, 1)
	assert.ErrorIs(t, faults[0], ifit.ErrOrderingFault)

	snap := s.Statistics().Snapshot()
	assert.Equal(t, uint64(len(stream)), snap.Fragments)
	// one before the first header, then middle 0 and the trailer of the broken sequence
	assert.Equal(t, uint64(3), snap.DroppedFragments)
	assert.Equal(t, uint64(1), snap.OrderingFaults)
}

func TestSession_DecodeErrorIsCounted(t *testing.T) {
	// A treadmill state whose body stops short of its fields
	frags, err := ifit.Encode([]byte{0x01, 0x04, 0x02, 0x2e, 0x04, 0x2e, 0x02, 0xa0})
	require.NoError(t, err)

	var reported []error
	s := New(NewSliceSource(frags...),
		WithLogger(zerolog.Nop()),
		WithErrorHook(func(err error) { reported = append(reported, err) }),
	)

	responses, err := collect(t, s)
	require.NoError(t, err)
	assert.Empty(t, responses)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ifit.ErrTruncatedPayload)
	assert.Equal(t, uint64(1), s.Statistics().Snapshot().DecodeErrors)
}

func TestSession_UnknownResponse(t *testing.T) {
	frags, err := ifit.Encode([]byte{0x01, 0x04, 0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0x01})
	require.NoError(t, err)

	s := New(NewSliceSource(frags...), WithLogger(zerolog.Nop()))
	responses, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, ifit.ResponseUnknown, responses[0].Kind())
	assert.Equal(t, uint64(1), s.Statistics().Snapshot().UnknownResponses)
}

func TestSession_ShortPayloadIsUnknown(t *testing.T) {
	frags, err := ifit.Encode([]byte{0x01, 0x04, 0x02, 0x99, 0x00})
	require.NoError(t, err)

	s := New(NewSliceSource(frags...), WithLogger(zerolog.Nop()))
	responses, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	u, ok := responses[0].(ifit.Unknown)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x04, 0x02, 0x99, 0x00}, u.Raw)
	assert.Zero(t, s.Statistics().Snapshot().DecodeErrors)
}

func TestSession_FragmentHook(t *testing.T) {
	var seen []string
	s := New(NewSliceSource(fragments(t, deviceSequence...)...),
		WithLogger(zerolog.Nop()),
		WithFragmentHook(func(_ time.Time, f ifit.Fragment) { seen = append(seen, f.Hex()) }),
	)

	_, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, deviceSequence, seen)
}

func TestSession_StallTimeout(t *testing.T) {
	q := NewQueue(16)
	stats := ifit.NewStatistics()
	s := New(q,
		WithLogger(zerolog.Nop()),
		WithStatistics(stats),
		WithStallTimeout(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan ifit.Response, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(r ifit.Response) error {
			results <- r
			return nil
		})
	}()

	seq := fragments(t, deviceSequence...)

	// Half a sequence, then silence
	q.Push(seq[0])
	q.Push(seq[1])
	require.Eventually(t, func() bool {
		return stats.Snapshot().Stalls == 1
	}, time.Second, 5*time.Millisecond)

	// The stalled sequence was abandoned; a fresh one completes
	for _, f := range seq {
		q.Push(f)
	}
	select {
	case r := <-results:
		assert.Equal(t, ifit.ResponseTreadmillState, r.Kind())
	case <-time.After(time.Second):
		t.Fatal("no response after stall recovery")
	}

	// No further stalls while idle between sequences
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, uint64(1), stats.Snapshot().Stalls)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingSource struct{ err error }

func (f failingSource) Next(context.Context) (ifit.Fragment, error) { return nil, f.err }

func TestSession_SourceError(t *testing.T) {
	boom := errors.New("link lost")
	s := New(failingSource{err: boom}, WithLogger(zerolog.Nop()))

	_, err := collect(t, s)
	assert.ErrorIs(t, err, boom)
}

func TestSession_CallbackErrorStopsRun(t *testing.T) {
	seq := fragments(t, deviceSequence...)
	s := New(NewSliceSource(append(seq, seq...)...), WithLogger(zerolog.Nop()))

	stop := errors.New("stop")
	calls := 0
	err := s.Run(context.Background(), func(ifit.Response) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestSession_BreakFromRange(t *testing.T) {
	seq := fragments(t, deviceSequence...)
	s := New(NewSliceSource(append(seq, seq...)...), WithLogger(zerolog.Nop()))

	n := 0
	for _, err := range s.Responses(context.Background()) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(4), s.Statistics().Snapshot().Fragments)
}

func TestSession_LogsFaults(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	seq := fragments(t, deviceSequence...)
	s := New(NewSliceSource(seq[0], seq[2]), WithLogger(logger))
	_, err := collect(t, s)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"kind":"OrderingFault"`), out)
	assert.True(t, strings.Contains(out, `"level":"warn"`), out)
}

// ============================================================
// Sources
// ============================================================

func TestHexSource(t *testing.T) {
	input := "# treadmill capture\n" + strings.Join(deviceSequence, "\n") + "\n"
	s := New(NewHexSource(strings.NewReader(input)), WithLogger(zerolog.Nop()))

	responses, err := collect(t, s)
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestHexSource_BadLine(t *testing.T) {
	s := New(NewHexSource(strings.NewReader("fe02zz\n")), WithLogger(zerolog.Nop()))
	_, err := collect(t, s)
	assert.Error(t, err)
}

func TestCaptureSource_SkipsOutbound(t *testing.T) {
	var buf bytes.Buffer
	w := ifit.NewCaptureWriter(&buf)

	request, err := ifit.CurrentStateRequest().Fragments()
	require.NoError(t, err)

	now := time.Now()
	for _, f := range request {
		require.NoError(t, w.WriteFragment(now, ifit.Outbound, f))
	}
	for _, f := range fragments(t, deviceSequence...) {
		require.NoError(t, w.WriteFragment(now, ifit.Inbound, f))
	}

	src := NewCaptureSource(&buf)
	var got []string
	for {
		f, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, f.Hex())
	}
	assert.Equal(t, deviceSequence, got)
}

func TestCaptureSource_Realtime(t *testing.T) {
	var buf bytes.Buffer
	w := ifit.NewCaptureWriter(&buf)
	base := time.UnixMilli(1_700_000_000_000)
	frags := fragments(t, deviceSequence...)
	require.NoError(t, w.WriteFragment(base, ifit.Inbound, frags[0]))
	require.NoError(t, w.WriteFragment(base.Add(30*time.Millisecond), ifit.Inbound, frags[1]))

	src := NewCaptureSource(&buf)
	src.Realtime = true

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := src.Next(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestCaptureSource_RealtimeKeepsRecordOnTimeout(t *testing.T) {
	var buf bytes.Buffer
	w := ifit.NewCaptureWriter(&buf)
	base := time.UnixMilli(1_700_000_000_000)
	frags := fragments(t, deviceSequence...)
	require.NoError(t, w.WriteFragment(base, ifit.Inbound, frags[0]))
	require.NoError(t, w.WriteFragment(base.Add(200*time.Millisecond), ifit.Inbound, frags[1]))

	src := NewCaptureSource(&buf)
	src.Realtime = true

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, deviceSequence[0], f.Hex())

	// A stall timeout fires during the pacing wait
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, deviceSequence[1], f.Hex())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

// ============================================================
// Poller
// ============================================================

type recordingSink struct {
	mu        sync.Mutex
	fragments []string
	err       error
}

func (r *recordingSink) WriteFragment(f ifit.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.fragments = append(r.fragments, f.Hex())
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fragments)
}

func TestPoller_Poll(t *testing.T) {
	sink := &recordingSink{}
	p := NewPoller(sink, ifit.CurrentStateRequest(), 0)
	p.SetLogger(zerolog.Nop())

	p.Poll()
	assert.Equal(t, []string{
		"fe021403",
		"001202040210041002000a1b9430000040500080",
		"ff02182700000000000000000000000000000000",
	}, sink.fragments)
	assert.Equal(t, uint64(1), p.Sent())
	assert.Equal(t, DefaultPollInterval, p.interval)
}

func TestPoller_Run(t *testing.T) {
	sink := &recordingSink{}
	p := NewPoller(sink, ifit.CurrentStateRequest(), 10*time.Millisecond)
	p.SetLogger(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Sent() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, sink.count()%3, "requests are sent whole")
}

func TestPoller_SendFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("not connected")}
	p := NewPoller(sink, ifit.CurrentStateRequest(), time.Second)
	p.SetLogger(zerolog.Nop())

	p.Poll()
	p.Poll()
	assert.Zero(t, p.Sent())
	assert.Equal(t, uint64(2), p.Failed())
}
