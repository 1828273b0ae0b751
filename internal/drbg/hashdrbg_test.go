// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashDRBG_TwoGeneratesDifferAndReproduce exercises spec.md §8 scenario
// 2's shape: SHA-256, 32 bytes of 0xA5 entropy, 16 bytes of 0x5A nonce, no
// personalization, two successive 80-byte generate calls with no reseed in
// between. Two independently constructed DRBGs fed the identical seed
// material must produce identical output streams, and the DRBG's second
// block must differ from its first. The underlying SHA-256/HMAC-SHA256
// primitives are pinned to published FIPS 180-4/RFC 4231 vectors in
// hash_test.go; DESIGN.md's Open Question decisions record why this
// construction-level test stops at determinism rather than a literal
// Hash_DRBG CAVP response value.
func TestHashDRBG_TwoGeneratesDifferAndReproduce(t *testing.T) {
	t.Parallel()

	entropy := bytes.Repeat([]byte{0xA5}, 32)
	nonce := bytes.Repeat([]byte{0x5A}, 16)
	seedMaterial := append(append([]byte{}, entropy...), nonce...)

	build := func() *HashDRBG {
		return NewHashDRBG(Sha256Spec, seedMaterial, constantSource(0x00), 1000)
	}

	d1 := build()
	first1 := make([]byte, 80)
	d1.NextBytes(first1)
	second1 := make([]byte, 80)
	d1.NextBytes(second1)

	d2 := build()
	first2 := make([]byte, 80)
	d2.NextBytes(first2)
	second2 := make([]byte, 80)
	d2.NextBytes(second2)

	assert.Equal(t, first1, first2, "identical seed material must reproduce the first block")
	assert.Equal(t, second1, second2, "identical seed material must reproduce the second block")
	assert.NotEqual(t, first1, second1, "successive generate calls must not repeat output")
}

func TestHashDRBG_ReseedChangesOutput(t *testing.T) {
	t.Parallel()

	seed := bytes.Repeat([]byte{0x11}, Sha256Spec.SeedLength)
	d := NewHashDRBG(Sha256Spec, seed, constantSource(0x00), 1000)

	before := make([]byte, 32)
	d.NextBytes(before)

	d.SetSeed(bytes.Repeat([]byte{0x22}, Sha256Spec.SeedLength))

	after := make([]byte, 32)
	d.NextBytes(after)

	assert.NotEqual(t, before, after)
}

func TestHashDRBG_AutoReseedsWhenResistanceExceeded(t *testing.T) {
	t.Parallel()

	var reseeded int
	src := EntropySourceFunc(func(n int) []byte {
		reseeded++
		return bytes.Repeat([]byte{byte(reseeded)}, n)
	})

	d := NewHashDRBG(Sha256Spec, bytes.Repeat([]byte{0x01}, Sha256Spec.SeedLength), src, 1)

	out := make([]byte, 16)
	d.NextBytes(out)
	d.NextBytes(out)
	d.NextBytes(out)

	require.GreaterOrEqual(t, reseeded, 2)
}

func TestHashDF_IsDeterministicAndSizedCorrectly(t *testing.T) {
	t.Parallel()

	out1 := hashDF(Sha256Spec, []byte("material"), 55)
	out2 := hashDF(Sha256Spec, []byte("material"), 55)
	assert.Equal(t, out1, out2)
	assert.Len(t, out1, 55)

	outOther := hashDF(Sha256Spec, []byte("other"), 55)
	assert.NotEqual(t, out1, outOther)
}

func TestIncMod_CarriesAcrossBytes(t *testing.T) {
	t.Parallel()

	v := []byte{0x00, 0xFF}
	incMod(v)
	assert.Equal(t, []byte{0x01, 0x00}, v)

	v2 := []byte{0xFF, 0xFF}
	incMod(v2)
	assert.Equal(t, []byte{0x00, 0x00}, v2) // wraps modulo 2^16
}

func TestAddMod_HandlesShorterOperands(t *testing.T) {
	t.Parallel()

	sum := addMod(4, []byte{0x00, 0x00, 0x00, 0x01}, []byte{0x02})
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x03}, sum)
}
