// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"encoding/hex"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// InfluxMeasurement is the measurement name of treadmill state points
const InfluxMeasurement = "treadmill_state"

// InfluxOptions locates the bucket receiving treadmill state points
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxWriter writes each sample as a point through the non-blocking write
// API. Points are batched by the client and sent in the background.
type InfluxWriter struct {
	writeAPI api.WriteAPI
	client   influxdb2.Client
	now      func() time.Time
}

// NewInfluxWriter creates a writer on an existing write API
func NewInfluxWriter(writeAPI api.WriteAPI) *InfluxWriter {
	return &InfluxWriter{writeAPI: writeAPI, now: time.Now}
}

// DialInflux creates a client for opts and a writer on its bucket. Background
// write errors are logged to logger.
func DialInflux(opts InfluxOptions, logger zerolog.Logger) *InfluxWriter {
	client := influxdb2.NewClient(opts.URL, opts.Token)
	writeAPI := client.WriteAPI(opts.Org, opts.Bucket)

	errs := writeAPI.Errors()
	go func() {
		for err := range errs {
			logger.Warn().Err(err).Str("bucket", opts.Bucket).Msg("influx write failed")
		}
	}()

	w := NewInfluxWriter(writeAPI)
	w.client = client
	return w
}

// Point converts a sample to an influx point
func (w *InfluxWriter) Point(state ifit.TreadmillState) *write.Point {
	return influxdb2.NewPoint(InfluxMeasurement,
		map[string]string{
			"device": hex.EncodeToString(state.Info[:]),
		},
		map[string]interface{}{
			"pace":          state.Pace,
			"incline":       state.Incline,
			"distance":      state.Distance,
			"timer":         state.Timer,
			"pulse":         state.Pulse,
			"pulse_enabled": state.PulseEnabled,
		},
		w.now())
}

// Write implements Writer
func (w *InfluxWriter) Write(state ifit.TreadmillState) error {
	w.writeAPI.WritePoint(w.Point(state))
	return nil
}

// Close flushes pending points and closes the client
func (w *InfluxWriter) Close() error {
	w.writeAPI.Flush()
	if w.client != nil {
		w.client.Close()
	}
	return nil
}
