// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

import "encoding/binary"

// HashDRBG implements the SP 800-90A Hash_DRBG construction over a
// configurable HashSpec (spec.md §4.3). It is not safe for concurrent use
// from outside Base's lock; Base guards every public operation.
type HashDRBG struct {
	*Base

	spec HashSpec
	v    []byte
	c    []byte

	// reseedCounter is the Hash_DRBG reseed_counter folded into the
	// generate-update step; distinct from Base's NextBytes-call counter.
	reseedCounter uint64
}

// NewHashDRBG constructs a Hash_DRBG seeded from seedMaterial, using spec
// as the underlying hash function and source as the fallback entropy
// source for automatic reseeds.
func NewHashDRBG(spec HashSpec, seedMaterial []byte, source EntropySource, resistance uint64) *HashDRBG {
	if err := RunSelfTests(); err != nil {
		panic(err)
	}
	d := &HashDRBG{spec: spec, reseedCounter: 1}
	d.initState(seedMaterial)
	d.Base = NewBase(source, resistance, spec.SeedLength, d.generateLocked, d.reseedLocked)
	return d
}

func (d *HashDRBG) initState(seedMaterial []byte) {
	n := d.spec.SeedLength
	d.v = hashDF(d.spec, seedMaterial, n)
	prefixed := make([]byte, 0, n+1)
	prefixed = append(prefixed, 0x00)
	prefixed = append(prefixed, d.v...)
	d.c = hashDF(d.spec, prefixed, n)
	d.reseedCounter = 1
}

func (d *HashDRBG) reseedLocked(seed []byte) {
	n := d.spec.SeedLength
	material := make([]byte, 0, 1+len(d.v)+len(seed))
	material = append(material, 0x01)
	material = append(material, d.v...)
	material = append(material, seed...)
	d.v = hashDF(d.spec, material, n)

	prefixed := make([]byte, 0, n+1)
	prefixed = append(prefixed, 0x00)
	prefixed = append(prefixed, d.v...)
	d.c = hashDF(d.spec, prefixed, n)
	d.reseedCounter = 1
}

// generateLocked fills buf via Hashgen, then performs the state-update
// step, then advances reseedCounter — in that exact order, per spec.md
// §9's note that the reseed counter participates only at the end of a
// generate call.
func (d *HashDRBG) generateLocked(buf []byte) {
	out := hashgen(d.spec, d.v, len(buf))
	copy(buf, out)

	n := d.spec.SeedLength
	prefixed := make([]byte, 0, n+1)
	prefixed = append(prefixed, 0x03)
	prefixed = append(prefixed, d.v...)
	h := d.spec.Digest(prefixed)

	sum := addMod(n, d.v, h, d.c, counterBytes(n, d.reseedCounter))
	d.v = sum
	d.reseedCounter++
}

// hashgen concatenates digest(v), digest(v+1), ... until n bytes have been
// produced, then truncates. v is incremented modulo 2^(8*len(v)) per
// block; v itself is left unmodified (a local copy is incremented).
func hashgen(spec HashSpec, v []byte, n int) []byte {
	out := make([]byte, 0, n+spec.OutputLength)
	cur := append([]byte(nil), v...)
	for len(out) < n {
		out = append(out, spec.Digest(cur)...)
		incMod(cur)
	}
	return out[:n]
}

// hashDF implements spec.md §4.3's hash derivation function: concatenate
// digest(counter ∥ (outLen*8 as u32 BE) ∥ material) for counter = 1, 2, ...
// and truncate to outLen bytes.
func hashDF(spec HashSpec, material []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+spec.OutputLength)
	var counter byte = 1
	bitsLen := make([]byte, 4)
	binary.BigEndian.PutUint32(bitsLen, uint32(outLen)*8)
	for len(out) < outLen {
		buf := make([]byte, 0, 1+4+len(material))
		buf = append(buf, counter)
		buf = append(buf, bitsLen...)
		buf = append(buf, material...)
		out = append(out, spec.Digest(buf)...)
		counter++
	}
	return out[:outLen]
}

// incMod increments v, treated as a big-endian unsigned integer, modulo
// 2^(8*len(v)).
func incMod(v []byte) {
	for i := len(v) - 1; i >= 0; i-- {
		v[i]++
		if v[i] != 0 {
			return
		}
	}
}

// counterBytes renders c as an n-byte big-endian value.
func counterBytes(n int, c uint64) []byte {
	out := make([]byte, n)
	for i := 0; i < 8 && i < n; i++ {
		out[n-1-i] = byte(c >> (8 * uint(i)))
	}
	return out
}

// addMod computes (sum of the n-byte big-endian operands) mod 2^(8n),
// returning an n-byte big-endian result. Shorter operands are treated as
// zero-padded on the left.
func addMod(n int, operands ...[]byte) []byte {
	out := make([]byte, n)
	var carry uint16
	for i := n - 1; i >= 0; i-- {
		sum := carry
		for _, op := range operands {
			off := len(op) - (n - i)
			if off >= 0 {
				sum += uint16(op[off])
			}
		}
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}
