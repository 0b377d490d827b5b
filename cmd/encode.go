// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

var (
	encodeList    bool
	encodeVerbose bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode <request-name|hex-payload>",
	Short: "Print the fragments of a request",
	Long: `Encode a named request or an arbitrary hex payload into iFit fragments.

Each fragment is printed as one hex line, the same format read by
--input-file and written by serial bridges. Outbound headers carry no
sequence token.

Examples:
  # List the named requests
  nongofit encode --list

  # Fragments of the current state request
  nongofit encode current_state

  # Fragments of an arbitrary payload, with field breakdown
  nongofit encode -v 02040210041002000a1b9430000040500080`,
	Args: func(cmd *cobra.Command, args []string) error {
		if encodeList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().BoolVar(&encodeList, "list", false, "List the named requests")
	encodeCmd.Flags().BoolVarP(&encodeVerbose, "verbose", "v", false, "Show the fields of each fragment")
}

// encodeArgPayload resolves a request name or a hex payload
func encodeArgPayload(arg string) ([]byte, error) {
	if req, ok := ifit.LookupRequest(arg); ok {
		return req.Payload(), nil
	}

	payload, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%q is neither a request name (%s) nor a hex payload",
			arg, strings.Join(ifit.RequestNames(), ", "))
	}
	return payload, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if encodeList {
		for _, name := range ifit.RequestNames() {
			req, _ := ifit.LookupRequest(name)
			fmt.Fprintf(out, "%-16s %x\n", name, req.Payload())
		}
		return nil
	}

	payload, err := encodeArgPayload(args[0])
	if err != nil {
		return err
	}

	fragments, err := ifit.Encode(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, f := range fragments {
		if encodeVerbose {
			fmt.Fprint(out, ifit.FormatFragment(now, f))
			continue
		}
		if err := ifit.WriteHex(out, f); err != nil {
			return err
		}
	}
	return nil
}
