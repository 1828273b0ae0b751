// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simon-greatrix/sec-prng-sub001/internal/seedstore"
)

var seedStoreCmd = &cobra.Command{
	Use:   "seed-store",
	Short: "Inspect the persistent seed store named by --seed-store",
}

var seedStoreGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the hex-encoded record stored under name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedStoreGet,
}

var seedStorePutCmd = &cobra.Command{
	Use:   "put <name> <hex-data>",
	Short: "Write hex-encoded data to the record named name",
	Args:  cobra.ExactArgs(2),
	RunE:  runSeedStorePut,
}

var seedStoreRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete the record named name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedStoreRemove,
}

func init() {
	RootCmd.AddCommand(seedStoreCmd)
	seedStoreCmd.AddCommand(seedStoreGetCmd, seedStorePutCmd, seedStoreRemoveCmd)
}

func openStoreFromFlag() (*seedstore.Store, error) {
	if seedStorePath == "" {
		return nil, fmt.Errorf("--seed-store must be set")
	}
	return seedstore.Open(seedStorePath)
}

func runSeedStoreGet(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlag()
	if err != nil {
		return err
	}
	defer store.Close()

	data, ok := store.GetRaw(args[0])
	if !ok {
		return fmt.Errorf("no record named %q", args[0])
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
	return err
}

func runSeedStorePut(cmd *cobra.Command, args []string) error {
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("decoding hex data: %w", err)
	}

	store, err := openStoreFromFlag()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.PutRaw(args[0], data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func runSeedStoreRemove(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlag()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(args[0]); err != nil {
		return fmt.Errorf("removing record: %w", err)
	}
	return nil
}
