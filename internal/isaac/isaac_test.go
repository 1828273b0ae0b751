// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package isaac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_UnseededIsDeterministic checks ISAAC+'s basic reproducibility
// contract. This package implements the ISAAC+ output-function variant
// (see isaac.go), not classic ISAAC, so Bob Jenkins' published
// randvect.txt reference words do not apply to it directly; DESIGN.md's
// Open Question decisions record why no literal first-block reference
// value is hardcoded here.
func TestNew_UnseededIsDeterministic(t *testing.T) {
	t.Parallel()

	g1 := New(nil)
	g2 := New(nil)

	for i := 0; i < 1000; i++ {
		require.Equal(t, g1.Uint32(), g2.Uint32())
	}
}

func TestNew_DifferentSeedsDiverge(t *testing.T) {
	t.Parallel()

	g1 := New([]uint32{1, 2, 3})
	g2 := New([]uint32{4, 5, 6})

	assert.NotEqual(t, g1.Uint32(), g2.Uint32())
}

func TestNew_SameSeedReproduces(t *testing.T) {
	t.Parallel()

	seed := []uint32{0xdeadbeef, 0x12345678, 0}
	g1 := New(seed)
	g2 := New(seed)

	for i := 0; i < 300; i++ {
		require.Equal(t, g1.Uint32(), g2.Uint32())
	}
}

func TestGenerator_NextBytesFillsBuffer(t *testing.T) {
	t.Parallel()

	g := New([]uint32{42})
	buf := make([]byte, 37) // not a multiple of 4
	g.NextBytes(buf)

	assert.NotEqual(t, make([]byte, 37), buf)
}

func TestGenerator_RefillsOutputBufferAfterExhaustion(t *testing.T) {
	t.Parallel()

	g := New([]uint32{7})
	seen := make(map[uint32]int)
	for i := 0; i < wordCount*2; i++ {
		seen[g.Uint32()]++
	}
	// Exercising two full refill cycles should not error or hang; a crude
	// sanity check that output is not degenerate (all one value).
	assert.Greater(t, len(seen), 1)
}

func TestGenerator_ReseedChangesSubsequentOutput(t *testing.T) {
	t.Parallel()

	g := New([]uint32{99})
	before := g.Uint32()

	g.Reseed([]uint32{1, 2, 3, 4})
	after := g.Uint32()

	assert.NotEqual(t, before, after)
}

func TestNewFromBytes_MatchesWordPacking(t *testing.T) {
	t.Parallel()

	g1 := NewFromBytes([]byte{0x01, 0x00, 0x00, 0x00})
	g2 := New([]uint32{1})

	assert.Equal(t, g2.Uint32(), g1.Uint32())
}

func TestReseedBytes_IsConsistentWithReseed(t *testing.T) {
	t.Parallel()

	g1 := New([]uint32{5})
	g2 := New([]uint32{5})

	g1.ReseedBytes([]byte{0x02, 0x00, 0x00, 0x00})
	g2.Reseed([]uint32{2})

	assert.Equal(t, g1.Uint32(), g2.Uint32())
}

func TestSharedIsUsable(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		_ = Shared.Uint32()
	})
}
