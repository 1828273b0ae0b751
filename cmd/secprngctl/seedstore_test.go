// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedStoreCommands_PutGetRemoveRoundTrip(t *testing.T) {
	seedStorePath = filepath.Join(t.TempDir(), "seeds.db")
	defer func() { seedStorePath = "" }()

	var out bytes.Buffer

	RootCmd.SetArgs([]string{"seed-store", "put", "checkpoint", "deadbeef"})
	seedStorePutCmd.SetOut(&out)
	require.NoError(t, seedStorePutCmd.Execute())

	out.Reset()
	RootCmd.SetArgs([]string{"seed-store", "get", "checkpoint"})
	seedStoreGetCmd.SetOut(&out)
	require.NoError(t, seedStoreGetCmd.Execute())
	assert.Equal(t, "deadbeef", strings.TrimSpace(out.String()))

	RootCmd.SetArgs([]string{"seed-store", "remove", "checkpoint"})
	require.NoError(t, seedStoreRemoveCmd.Execute())

	RootCmd.SetArgs([]string{"seed-store", "get", "checkpoint"})
	err := seedStoreGetCmd.Execute()
	assert.Error(t, err)
}

func TestSeedStoreGetCommand_RequiresSeedStoreFlag(t *testing.T) {
	seedStorePath = ""

	RootCmd.SetArgs([]string{"seed-store", "get", "anything"})
	var out bytes.Buffer
	seedStoreGetCmd.SetOut(&out)

	err := seedStoreGetCmd.Execute()
	assert.ErrorContains(t, err, "--seed-store must be set")
}
