// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package isaac implements the ISAAC+ stream generator (spec.md §4.6): a
// fast, non-cryptographic generator used internally for scheduling
// decisions and permutation choices where speed matters more than
// indistinguishability from random. It must never back a public DRBG
// operation.
package isaac

import (
	"encoding/binary"
	"sync"
)

const (
	wordCount   = 256
	goldenRatio = 0x9e3779b9
)

// Generator is the ISAAC+ state: 256 words of mixing state (mm), a
// 256-word output buffer (randResult), and the three scalar accumulators
// a, b, c. The zero value is not usable; construct with New.
type Generator struct {
	mu sync.Mutex

	mm         [wordCount]uint32
	randResult [wordCount]uint32
	aa, bb, cc uint32

	// pos is the index of the next unconsumed word in randResult; when it
	// reaches wordCount the buffer is exhausted and isaac() runs again.
	pos int
}

// New constructs a generator seeded from seed, a slice of 32-bit words.
// A nil or empty seed produces a fixed, reproducible unseeded sequence;
// because the output mix differs from classic ISAAC's (see isaac), it is
// not the published classic ISAAC reference sequence.
func New(seed []uint32) *Generator {
	g := &Generator{}
	if len(seed) > 0 {
		for i, w := range seed {
			if i >= wordCount {
				break
			}
			g.mm[i] = w
		}
	}
	g.init(len(seed) > 0)
	return g
}

// NewFromBytes seeds a generator from an arbitrary byte slice, packed as
// little-endian 32-bit words (the trailing partial word, if any, is
// zero-padded).
func NewFromBytes(seed []byte) *Generator {
	words := make([]uint32, 0, (len(seed)+3)/4)
	for i := 0; i < len(seed); i += 4 {
		var buf [4]byte
		copy(buf[:], seed[i:])
		words = append(words, binary.LittleEndian.Uint32(buf[:]))
	}
	return New(words)
}

// Reseed folds seedWords into the generator's state without a cold reset:
// each incoming word is XORed with the current unused output at the same
// index, per spec.md §4.6, before the standard double-mix initialization
// runs again.
func (g *Generator) Reseed(seedWords []uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, w := range seedWords {
		if i >= wordCount {
			break
		}
		g.mm[i] = g.randResult[i] ^ w
	}
	g.init(true)
}

// ReseedBytes is the byte-slice convenience form of Reseed.
func (g *Generator) ReseedBytes(seed []byte) {
	words := make([]uint32, 0, (len(seed)+3)/4)
	for i := 0; i < len(seed); i += 4 {
		var buf [4]byte
		copy(buf[:], seed[i:])
		words = append(words, binary.LittleEndian.Uint32(buf[:]))
	}
	g.Reseed(words)
}

// mix is ISAAC's core diffusion round over eight 32-bit words.
func mix(x *[8]uint32) {
	x[0] ^= x[1] << 11
	x[3] += x[0]
	x[1] += x[2]
	x[1] ^= x[2] >> 2
	x[4] += x[1]
	x[2] += x[3]
	x[2] ^= x[3] << 8
	x[5] += x[2]
	x[3] += x[4]
	x[3] ^= x[4] >> 16
	x[6] += x[3]
	x[4] += x[5]
	x[4] ^= x[5] << 10
	x[7] += x[4]
	x[5] += x[6]
	x[5] ^= x[6] >> 4
	x[0] += x[5]
	x[6] += x[7]
	x[6] ^= x[7] << 8
	x[1] += x[6]
	x[7] += x[0]
	x[7] ^= x[0] >> 9
	x[2] += x[7]
	x[0] += x[1]
}

// init runs the standard ISAAC double-mix initialization: a warm-up mix of
// the golden-ratio constant, one pass folding in mm when useSeed is set,
// and, only when useSeed is set, a second pass. The output buffer is then
// primed by one call to isaac and pos is reset to the exhausted state so
// the first Uint32 call triggers a fresh generation.
func (g *Generator) init(useSeed bool) {
	var x [8]uint32
	for i := range x {
		x[i] = goldenRatio
	}
	for i := 0; i < 4; i++ {
		mix(&x)
	}

	for i := 0; i < wordCount; i += 8 {
		if useSeed {
			for j := 0; j < 8; j++ {
				x[j] += g.mm[i+j]
			}
		}
		mix(&x)
		copy(g.mm[i:i+8], x[:])
	}

	if useSeed {
		for i := 0; i < wordCount; i += 8 {
			for j := 0; j < 8; j++ {
				x[j] += g.mm[i+j]
			}
			mix(&x)
			copy(g.mm[i:i+8], x[:])
		}
	}

	g.aa, g.bb, g.cc = 0, 0, 0
	g.isaac()
	g.pos = wordCount
}

// isaac runs one full generation round, refilling randResult with
// wordCount fresh words. It differs from classic ISAAC in one place: the
// per-word output (the new b) is the looked-up state word XORed with the
// old state word x, where the classic generator adds them. The accumulator
// a is updated with the classic shift schedule; no rotations are used.
func (g *Generator) isaac() {
	g.cc++
	g.bb += g.cc

	for i := 0; i < wordCount; i++ {
		x := g.mm[i]
		switch i & 3 {
		case 0:
			g.aa ^= g.aa << 13
		case 1:
			g.aa ^= g.aa >> 6
		case 2:
			g.aa ^= g.aa << 2
		case 3:
			g.aa ^= g.aa >> 16
		}
		g.aa += g.mm[(i+128)&255]
		y := g.mm[(x>>2)&255] + g.aa + g.bb
		g.mm[i] = y
		g.bb = g.mm[(y>>10)&255] ^ x
		g.randResult[i] = g.bb
	}
}

// Uint32 returns the next pseudo-random word, refilling the output buffer
// via isaac once every wordCount calls.
func (g *Generator) Uint32() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uint32Locked()
}

func (g *Generator) uint32Locked() uint32 {
	if g.pos >= wordCount {
		g.isaac()
		g.pos = 0
	}
	v := g.randResult[g.pos]
	g.pos++
	return v
}

// NextBytes fills buf with generator output, four bytes at a time,
// truncating the final word if len(buf) is not a multiple of four.
func (g *Generator) NextBytes(buf []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	offset := 0
	for offset < len(buf) {
		w := g.uint32Locked()
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], w)
		offset += copy(buf[offset:], word[:])
	}
}

// Shared is the process-wide ISAAC+ instance used for non-cryptographic
// internal scheduling and permutation choices (spec.md §4.6). It starts
// unseeded and is reseeded once the instant-entropy bootstrap (C10)
// produces its first digest.
var Shared = New(nil)
