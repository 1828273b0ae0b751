// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"os"
)

const (
	ctrKeySize  = 32 // AES-256
	ctrVSize    = 16
	ctrSeedSize = ctrKeySize + ctrVSize // 48 bytes, also SHA-384's digest size
)

// CTRDRBG implements the SP 800-90A CTR_DRBG construction over AES-256
// (spec.md §4.5). Shape (atomic-feeling state swap, mutex-guarded
// counter) is adapted from sixafter/aes-ctr-drbg; the update-function
// content follows spec.md's exact 3-block/48-byte refresh rather than
// upstream's simpler XOR-mix reseed — see DESIGN.md.
type CTRDRBG struct {
	*Base

	key    []byte
	v      []byte
	cipher cipher.Block

	// pid caches the process id this instance was created (or last
	// reseeded-on-fork) under; see reseedIfForked.
	pid int
}

// NewCTRDRBG constructs a CTR_DRBG instance seeded from seedMaterial,
// which is compressed to exactly 48 bytes via SHA-384 if it is not
// already that length.
func NewCTRDRBG(seedMaterial []byte, source EntropySource, resistance uint64) *CTRDRBG {
	if err := RunSelfTests(); err != nil {
		panic(err)
	}
	d := &CTRDRBG{
		key: make([]byte, ctrKeySize),
		v:   make([]byte, ctrVSize),
		pid: os.Getpid(),
	}
	d.cipher, _ = aes.NewCipher(d.key) // zero key is a valid AES-256 key
	d.refresh(compressSeed(seedMaterial))
	d.Base = NewBase(source, resistance, ctrSeedSize, d.generateLocked, d.reseedLocked)
	return d
}

// reseedIfForked detects a changed process id (the process was forked
// since this instance's key/V were last set) and reseeds from the
// entropy source before generating, so parent and child never emit the
// same keystream. Called with Base's mutex already held.
func (d *CTRDRBG) reseedIfForked() {
	current := os.Getpid()
	if current == d.pid {
		return
	}
	d.pid = current
	d.refresh(compressSeed(d.Source.Get(ctrSeedSize)))
}

// compressSeed reduces material to exactly 48 bytes: unchanged if already
// that length, otherwise SHA-384 digested (which is naturally 48 bytes).
func compressSeed(material []byte) []byte {
	if len(material) == ctrSeedSize {
		return material
	}
	sum := sha512.Sum384(material)
	return sum[:]
}

// refresh implements spec.md §4.5's post-generate/post-reseed state
// update: three ECB blocks are produced (incrementing V before each),
// concatenated into a 48-byte T, XORed with the 48-byte seed material;
// the first 32 bytes become the new key, the last 16 the new V.
func (d *CTRDRBG) refresh(material48 []byte) {
	t := make([]byte, 0, ctrSeedSize)
	block := make([]byte, ctrVSize)
	for len(t) < ctrSeedSize {
		incLE(d.v)
		d.cipher.Encrypt(block, d.v)
		t = append(t, block...)
	}

	for i := 0; i < ctrSeedSize; i++ {
		t[i] ^= material48[i]
	}

	d.key = t[:ctrKeySize]
	d.v = t[ctrKeySize:]
	d.cipher, _ = aes.NewCipher(d.key)
}

func (d *CTRDRBG) reseedLocked(seed []byte) {
	d.refresh(compressSeed(seed))
}

// generateLocked encrypts V block by block (incrementing before each
// block), truncating the final block if the output is not a multiple of
// 16 bytes, then refreshes state with all-zero material (no additional
// input was supplied for this call).
func (d *CTRDRBG) generateLocked(buf []byte) {
	d.reseedIfForked()

	block := make([]byte, ctrVSize)
	offset := 0
	for offset < len(buf) {
		incLE(d.v)
		d.cipher.Encrypt(block, d.v)
		n := copy(buf[offset:], block)
		offset += n
	}
	d.refresh(make([]byte, ctrSeedSize))
}

// incLE increments v, treated as a 128-bit little-endian unsigned
// integer, per spec.md §4.5.
func incLE(v []byte) {
	for i := 0; i < len(v); i++ {
		v[i]++
		if v[i] != 0 {
			return
		}
	}
}
