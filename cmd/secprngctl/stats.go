// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsSampleBytes int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Draw from the Fortuna accumulator and the system RNG multiplexer, then report their counters",
	Long: `stats generates a sample from the Fortuna entropy accumulator and
from the system RNG multiplexer, then prints the cumulative byte and
reseed/rotation counters each has accumulated over the life of the
process.`,
	RunE: runStats,
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsSampleBytes, "sample-bytes", 64, "bytes to draw before reporting counters")
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := newSystem()
	if err != nil {
		return fmt.Errorf("initializing system: %w", err)
	}
	defer s.Shutdown()

	r, err := s.New("Nist/AES")
	if err != nil {
		return fmt.Errorf("resolving provider: %w", err)
	}
	if _, err := r.Read(make([]byte, statsSampleBytes)); err != nil {
		return fmt.Errorf("sampling bytes: %w", err)
	}

	fortunaStats := s.FortunaStats()
	muxStats := s.MultiplexerStats()
	readerStats := r.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fortuna:     %s generated, %d reseeds\n",
		humanize.Bytes(fortunaStats.BytesGenerated), fortunaStats.ReseedCount)
	fmt.Fprintf(out, "sysrand:     %s generated\n", humanize.Bytes(muxStats.BytesGenerated))
	fmt.Fprintf(out, "reader %q: %s generated, %d key rotations\n",
		r.Name(), humanize.Bytes(readerStats.BytesGenerated), readerStats.KeyRotations)

	return nil
}
