// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package instant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPrime_FindsA30kPlusCPrime(t *testing.T) {
	t.Parallel()

	for _, c := range residues {
		prime, k := findPrime(c, 0)
		require.Equal(t, 30*k+c, prime)

		n := prime
		isPrime := n > 1
		for d := int64(2); d*d <= n; d++ {
			if n%d == 0 {
				isPrime = false
				break
			}
		}
		assert.True(t, isPrime, "expected %d to be prime", prime)
	}
}

func TestFNV256A_IsDeterministicAnd32Bytes(t *testing.T) {
	t.Parallel()

	a := fnv256a([]byte("hello"))
	b := fnv256a([]byte("hello"))
	c := fnv256a([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestDeriveISAACSeed_Produces256Words(t *testing.T) {
	t.Parallel()

	words := deriveISAACSeed([]byte("seed material"))
	assert.Len(t, words, 256)
}

func TestPermute_IsAPermutationOfInput(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(i)
	}
	original := append([]byte(nil), buf...)
	permute(buf)

	assert.ElementsMatch(t, original, buf)
}

func TestExpand_TruncatesLongerInput(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4, 5}
	out := expand(data, 3)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestExpand_ChainsShorterInput(t *testing.T) {
	t.Parallel()

	data := []byte{9, 9}
	out := expand(data, 40)
	assert.Len(t, out, 40)
	assert.NotEqual(t, make([]byte, 40), out)
}

func TestBootstrap_GetReturnsRequestedLength(t *testing.T) {
	t.Parallel()

	b := New()
	out := b.Get(24)
	assert.Len(t, out, 24)
}
