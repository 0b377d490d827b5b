// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/output"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a workout to CSV",
	Long: `Poll the treadmill for its current state and record every sample.

With --output-directory, each decoded treadmill state is appended to a CSV
file named after the start time (YYYYMMDD_HHMMSS.csv) in that directory, with
the columns incline, pace, distance and timer. No CSV is written without it.

Samples can also be printed (--debug) or sent to InfluxDB (--influx-url).

Examples:
  # Record over Bluetooth into ./workouts
  nongofit record --address AA:BB:CC:DD:EE:FF -o workouts

  # Record, print each sample and keep a capture for later replay
  nongofit record -a AA:BB:CC:DD:EE:FF --debug --capture session.cbor

  # Re-run a capture through the recorder
  nongofit record --input-file session.cbor --no-poll`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringP("output-directory", "o", "", "Directory for workout CSV files (no CSV when unset)")
	recordCmd.Flags().Bool("debug", false, "Print every sample to stdout")
	recordCmd.Flags().String("influx-url", "", "InfluxDB URL (enables InfluxDB output)")
	recordCmd.Flags().String("influx-org", "", "InfluxDB organization")
	recordCmd.Flags().String("influx-bucket", "treadmill", "InfluxDB bucket")
	recordCmd.Flags().String("influx-token", "", "InfluxDB API token")
	bindFlags(recordCmd)
}

// openRecordOutputs builds the writers selected by the record flags. The
// returned path is empty when no CSV is written.
func openRecordOutputs(start time.Time) (output.Writer, string, error) {
	var writers []output.Writer
	path := ""
	if dir := config.GetString("output-directory"); dir != "" {
		csvWriter, err := output.CreateCSV(dir, start)
		if err != nil {
			return nil, "", err
		}
		writers = append(writers, csvWriter)
		path = csvWriter.Path()
	}

	if config.GetBool("debug") {
		writers = append(writers, output.NewDebugWriter(os.Stdout))
	}
	if url := config.GetString("influx-url"); url != "" {
		writers = append(writers, output.DialInflux(output.InfluxOptions{
			URL:    url,
			Token:  config.GetString("influx-token"),
			Org:    config.GetString("influx-org"),
			Bucket: config.GetString("influx-bucket"),
		}, log.Logger))
	}

	return output.MultiWriter(writers...), path, nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	r, err := openRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	start := time.Now()
	out, path, err := openRecordOutputs(start)
	if err != nil {
		return err
	}

	r.printBanner("Workout Recorder")
	if path != "" {
		fmt.Printf("Recording to: %s\n", path)
	} else {
		fmt.Printf("Recording to: no CSV (set --output-directory)\n")
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	samples := 0
	runErr := r.Run(ctx, func(resp ifit.Response) error {
		state, ok := resp.(ifit.TreadmillState)
		if !ok {
			log.Debug().Str("kind", ifit.FormatResponseKind(resp)).Msg("ignoring response")
			return nil
		}
		samples++
		if err := out.Write(state); err != nil {
			log.Error().Err(err).Msg("failed to write sample")
		}
		return nil
	})

	closeErr := out.Close()

	stats := r.Statistics().Snapshot()
	log.Info().
		Int("samples", samples).
		Uint64("fragments", stats.Fragments).
		Uint64("faults", stats.Faults).
		Uint64("stalls", stats.Stalls).
		Dur("elapsed", time.Since(start)).
		Str("file", path).
		Msg("recording finished")

	if runErr != nil {
		return runErr
	}
	return closeErr
}
