// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package drbg implements the three NIST SP 800-90A deterministic random
// bit generator constructions — Hash_DRBG, HMAC_DRBG, and CTR_DRBG — over
// a shared reseed-counter and material-combining contract.
package drbg

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // SHA-1 is an enumerated SP 800-90A hash option, not used for signatures.
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// HashID names a supported SP 800-90A hash function.
type HashID int

const (
	// SHA1 is SP 800-90A's smallest supported hash option.
	SHA1 HashID = iota
	// SHA256 is the default hash for Hash_DRBG and HMAC_DRBG in this module.
	SHA256
	// SHA512 is the largest supported hash option.
	SHA512
)

// String returns the canonical name of the hash identifier.
func (h HashID) String() string {
	switch h {
	case SHA1:
		return "SHA-1"
	case SHA256:
		return "SHA-256"
	case SHA512:
		return "SHA-512"
	default:
		return fmt.Sprintf("HashID(%d)", int(h))
	}
}

// HashSpec enumerates the supported hash algorithms with the output and
// seed lengths SP 800-90A Table 2 assigns them.
type HashSpec struct {
	ID HashID

	// OutputLength is the digest length in bytes.
	OutputLength int

	// SeedLength is the Hash_DRBG/HMAC_DRBG seed length in bytes: 240 bytes
	// for SHA-1/256, 111 bytes (888 bits) for SHA-512, per the canonical
	// values this system's specification assigns (SP 800-90A Table 2's own
	// minimum entropy figures differ; this module follows the governing
	// spec's values so that derived seed material is sized consistently
	// across DRBG constructions).
	SeedLength int

	new func() hash.Hash
}

// New returns a fresh running digest for this hash spec.
func (s HashSpec) New() hash.Hash { return s.new() }

var (
	// Sha1Spec is the SHA-1 hash specification.
	Sha1Spec = HashSpec{ID: SHA1, OutputLength: 20, SeedLength: 240, new: sha1.New}

	// Sha256Spec is the SHA-256 hash specification.
	Sha256Spec = HashSpec{ID: SHA256, OutputLength: 32, SeedLength: 240, new: sha256.New}

	// Sha512Spec is the SHA-512 hash specification. Its seed length is
	// 888 bits, i.e. 111 bytes, per spec.md §3.
	Sha512Spec = HashSpec{ID: SHA512, OutputLength: 64, SeedLength: 111, new: sha512.New}
)

// Digest returns the hash spec's digest of data.
func (s HashSpec) Digest(data []byte) []byte {
	h := s.new()
	h.Write(data)
	return h.Sum(nil)
}

// HMAC returns the HMAC of data under key using this hash spec.
func (s HashSpec) HMAC(key, data []byte) []byte {
	m := hmac.New(s.new, key)
	m.Write(data)
	return m.Sum(nil)
}

// RunningDigest wraps a hash.Hash with an Update/DigestInto vocabulary
// for accumulating a digest across several writes. A C1 primitive;
// C3/C4's block-generation loops call spec.Digest directly instead.
type RunningDigest struct {
	h hash.Hash
}

// NewRunningDigest constructs a running digest for the given spec.
func NewRunningDigest(spec HashSpec) *RunningDigest {
	return &RunningDigest{h: spec.New()}
}

// Update feeds more bytes into the running digest.
func (r *RunningDigest) Update(data []byte) { r.h.Write(data) }

// DigestInto writes the digest of everything written so far into
// out[offset:offset+length], then resets the running digest.
func (r *RunningDigest) DigestInto(out []byte, offset, length int) {
	sum := r.h.Sum(nil)
	copy(out[offset:offset+length], sum)
	r.h.Reset()
}
