// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simon-greatrix/sec-prng-sub001/internal/config"
	"github.com/simon-greatrix/sec-prng-sub001/internal/telemetry"
	"github.com/simon-greatrix/sec-prng-sub001/prng"
)

var seedStorePath string

// RootCmd is the base command when secprngctl is called without a
// subcommand.
var RootCmd = &cobra.Command{
	Use:   "secprngctl",
	Short: "Exercise the sec-prng-sub001 provider registry and seed store",
	Long: `secprngctl generates random bytes from any registered provider
("Nist/SHA-256", "Nist/AES", ...), wired to the Fortuna entropy
accumulator, and inspects the persistent seed store it checkpoints to.`,
}

// Execute runs RootCmd, exiting with status 1 on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "secprngctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&seedStorePath, "seed-store", "", "path to the persistent seed store (disabled if empty)")
}

// newSystem builds a prng.System from the persistent flags shared across
// subcommands.
func newSystem() (*prng.System, error) {
	var opts []prng.SystemOption
	if seedStorePath != "" {
		opts = append(opts, prng.WithSeedStore(seedStorePath))
	}
	opts = append(opts, prng.WithConfigOptions(config.WithOverrideFile(os.Getenv("SECPRNGCTL_CONFIG"))))

	s, err := prng.NewSystem(opts...)
	if err != nil {
		telemetry.CryptographicFailure("secprngctl", err)
		return nil, err
	}
	return s, nil
}
