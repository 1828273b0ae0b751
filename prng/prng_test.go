// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-greatrix/sec-prng-sub001/internal/drbg"
)

type fixedSource struct{ fill byte }

func (f fixedSource) Get(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = f.fill
	}
	return out
}

func TestNames_IncludesEveryDocumentedProvider(t *testing.T) {
	t.Parallel()

	names := Names()
	for _, want := range []string{
		"Nist/SHA-1", "Nist/SHA-256", "Nist/SHA-512",
		"Nist/HmacSHA-1", "Nist/HmacSHA-256", "Nist/HmacSHA-512",
		"Nist/AES",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRegister_BuildsAResolvableProvider(t *testing.T) {
	t.Parallel()

	called := false
	Register("test/echo", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		called = true
		return drbg.NewHashDRBG(drbg.Sha256Spec, seedMaterial, source, resistance)
	})

	build, ok := lookup("test/echo")
	require.True(t, ok)

	out := build(fixedSource{fill: 0x42}, 0, make([]byte, 64))
	require.NotNil(t, out)
	assert.True(t, called)
}

func TestReader_ReadFillsBufferAndCountsBytes(t *testing.T) {
	t.Parallel()

	build, ok := lookup("Nist/SHA-256")
	require.True(t, ok)

	inst := build(fixedSource{fill: 0x7}, 0, make([]byte, 64))
	r := &Reader{name: "Nist/SHA-256", inst: inst}

	buf := make([]byte, 32)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.NotEqual(t, make([]byte, 32), buf, "output must not be all zero")

	stats := r.Stats()
	assert.Equal(t, uint64(32), stats.BytesGenerated)
	assert.Equal(t, uint64(0), stats.KeyRotations)
}

func TestReader_ReseedIncrementsKeyRotations(t *testing.T) {
	t.Parallel()

	build, ok := lookup("Nist/AES")
	require.True(t, ok)

	inst := build(fixedSource{fill: 0x9}, 0, make([]byte, 64))
	r := &Reader{name: "Nist/AES", inst: inst}

	r.Reseed(make([]byte, 48))
	r.Reseed(make([]byte, 48))

	assert.Equal(t, uint64(2), r.Stats().KeyRotations)
}

func TestReader_NewSeedProducesSeedLengthBytes(t *testing.T) {
	t.Parallel()

	build, ok := lookup("Nist/HmacSHA-256")
	require.True(t, ok)

	inst := build(fixedSource{fill: 0x1}, 0, make([]byte, 64))
	r := &Reader{name: "Nist/HmacSHA-256", inst: inst}

	seed := r.NewSeed()
	assert.Len(t, seed, inst.SeedLength())
}
