// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Thermoquad/nongofit/pkg/session"
)

var (
	cfgFile string

	// config merges flags, NONGOFIT_* environment variables and the config file
	config = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "nongofit",
	Short: "iFit Treadmill Protocol Logger",
	Long: `nongofit - A CLI tool for logging workouts from iFit treadmills without iFit.

Polls the treadmill for its current state over Bluetooth LE, reassembles the
fragmented responses and records pace, incline, distance and timer.

Connection modes:
  Bluetooth: --address AA:BB:CC:DD:EE:FF
  Serial:    --port /dev/ttyUSB0 [--baud 115200]   (BLE UART bridge, hex lines)
  WebSocket: --url ws://host/path [--username user] (one binary message per fragment)
  Replay:    --input-file capture.hex | capture.cbor

Every flag can also be set in the config file (--config) or through an
environment variable, e.g. NONGOFIT_ADDRESS or NONGOFIT_LOG_LEVEL.

For WebSocket authentication, the password is read from the NONGOFIT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(config.GetString("log-level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	// Bluetooth
	rootCmd.PersistentFlags().StringP("address", "a", "", "Treadmill Bluetooth MAC address")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port of a BLE UART bridge")
	rootCmd.PersistentFlags().IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Replay
	rootCmd.PersistentFlags().StringP("input-file", "f", "", "Replay fragments from a hex or .cbor capture")
	rootCmd.PersistentFlags().Bool("realtime", false, "Replay .cbor captures at their recorded pace")

	// Session
	rootCmd.PersistentFlags().Duration("request-interval", session.DefaultPollInterval, "Interval between current state requests")
	rootCmd.PersistentFlags().Duration("stall-timeout", session.DefaultStallTimeout, "Abandon a sequence after this long without a fragment")
	rootCmd.PersistentFlags().Bool("no-poll", false, "Only listen, never send requests")
	rootCmd.PersistentFlags().String("capture", "", "Append traffic to a hex or .cbor capture file")

	bindFlags(rootCmd)
}

// bindFlags exposes a command's flags through config
func bindFlags(cmd *cobra.Command) {
	if err := config.BindPFlags(cmd.PersistentFlags()); err != nil {
		panic(err)
	}
	if err := config.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}
}

func initConfig() {
	config.SetEnvPrefix("nongofit")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	config.AutomaticEnv()

	if cfgFile != "" {
		config.SetConfigFile(cfgFile)
		if err := config.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

// initLogging routes the global logger to stderr so stdout stays clean for
// decoded output
func initLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
