// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package sysrand

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20"
)

// DefaultSources returns the standard set of host-provided secure RNG
// services this platform discovers: the Go runtime's crypto/rand.Reader,
// and a ChaCha20 stream keyed from crypto/rand at construction time,
// standing in for a second independent host algorithm (spec.md §4.8
// describes discovering "every host-provided secure RNG service"; Go
// does not expose a named-algorithm registry the way the platform this
// spec was modeled on does, so a second construction is substituted).
func DefaultSources() []Source {
	return []Source{
		{Name: "crypto/rand", Reader: rand.Reader},
		{Name: "chacha20", Reader: newChaCha20Reader()},
	}
}

// chaCha20Reader adapts a keyed ChaCha20 cipher to io.Reader by encrypting
// an all-zero keystream buffer, i.e. emitting raw keystream bytes.
type chaCha20Reader struct {
	cipher *chacha20.Cipher
}

func newChaCha20Reader() io.Reader {
	var key [chacha20.KeySize]byte
	var nonce [chacha20.NonceSize]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(err)
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		panic(err)
	}
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	return &chaCha20Reader{cipher: c}
}

func (r *chaCha20Reader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
