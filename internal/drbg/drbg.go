// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

import "sync"

// EntropySource supplies n bytes of entropy on demand. Fortuna's
// accumulator satisfies this, as does the system-RNG multiplexer and the
// instant-entropy bootstrap source.
type EntropySource interface {
	Get(n int) []byte
}

// EntropySourceFunc adapts a function to EntropySource.
type EntropySourceFunc func(n int) []byte

// Get implements EntropySource.
func (f EntropySourceFunc) Get(n int) []byte { return f(n) }

// Interface is the shared operations vocabulary every DRBG variant
// (Hash, HMAC, CTR) implements. Variants are modeled as a sum type with a
// common free-standing base, not by inheritance, per spec.md §9.
type Interface interface {
	// NextBytes fills buf with generated output, reseeding first if the
	// resistance-governed reseed counter has been exceeded.
	NextBytes(buf []byte)

	// SetSeed folds seed into the DRBG's internal state and, unless
	// Resistance is zero, resets the reseed counter.
	SetSeed(seed []byte)

	// NewSeed produces SeedLength bytes suitable for seeding another DRBG,
	// by generating from this instance.
	NewSeed() []byte

	// SeedLength is the number of bytes NewSeed produces and SetSeed
	// expects as a minimum reseed material size.
	SeedLength() int
}

// Base holds the reseed-counter/resistance policy shared by every DRBG
// variant. Concrete variants embed Base and supply Generate/Reseed
// callbacks that implement their own algorithm; Base handles when those
// callbacks fire.
type Base struct {
	mu sync.Mutex

	// Source is consulted for reseed material once Resistance calls have
	// elapsed since the last reseed.
	Source EntropySource

	// Resistance is the number of NextBytes calls permitted between
	// automatic reseeds. Zero means "reseed on every call."
	Resistance uint64

	seedLength int
	counter    uint64

	// generate produces len(buf) bytes of output using the variant's
	// current state. Must not itself reseed.
	generate func(buf []byte)

	// reseed folds seed material into the variant's state.
	reseed func(seed []byte)
}

// NewBase constructs the shared counter/resistance policy for a DRBG
// variant. generate and reseed are the variant-specific callbacks. NewBase
// takes no seed material: each variant initializes its own state from its
// seed material in its constructor before calling NewBase.
func NewBase(source EntropySource, resistance uint64, seedLength int, generate func([]byte), reseed func([]byte)) *Base {
	return &Base{
		Source:     source,
		Resistance: resistance,
		seedLength: seedLength,
		counter:    1,
		generate:   generate,
		reseed:     reseed,
	}
}

// SeedLength returns the configured seed length in bytes.
func (b *Base) SeedLength() int { return b.seedLength }

// NextBytes implements Interface.NextBytes: reseed if the resistance
// window has elapsed, generate, then advance the counter.
func (b *Base) NextBytes(buf []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.counter > b.Resistance {
		b.reseedLocked(b.Source.Get(b.seedLength))
	}
	b.generate(buf)
	b.counter++
}

// SetSeed implements Interface.SetSeed.
func (b *Base) SetSeed(seed []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reseedLocked(seed)
}

func (b *Base) reseedLocked(seed []byte) {
	b.reseed(seed)
	if b.Resistance != 0 {
		b.counter = 1
	}
}

// NewSeed implements Interface.NewSeed by generating from this instance.
func (b *Base) NewSeed() []byte {
	out := make([]byte, b.seedLength)
	b.NextBytes(out)
	return out
}

// CombineMaterials implements spec.md §4.2's combine_materials: it returns
// entropy ∥ nonce ∥ personalization. If entropy is absent, desired bytes
// are drawn from the fallback source (Fortuna in production use); if that
// falls short of min, additional bytes are padded from the same source.
// An absent nonce is replaced by a call to nonceFactory; an absent
// personalization is replaced by defaultPersonalization.
func CombineMaterials(
	entropy, nonce, personalization []byte,
	min, desired int,
	fallback EntropySource,
	nonceFactory func() []byte,
	defaultPersonalization []byte,
) []byte {
	if entropy == nil {
		entropy = fallback.Get(desired)
		if len(entropy) < min {
			pad := fallback.Get(min - len(entropy))
			entropy = append(entropy, pad...)
		}
	}
	if nonce == nil {
		nonce = nonceFactory()
	}
	if personalization == nil {
		personalization = defaultPersonalization
	}

	out := make([]byte, 0, len(entropy)+len(nonce)+len(personalization))
	out = append(out, entropy...)
	out = append(out, nonce...)
	out = append(out, personalization...)
	return out
}
