// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"sync"
)

// ErrSelfTestFailed is returned by RunSelfTests when the process's AES
// implementation disagrees with the published known-answer vector. Every
// DRBG construction in this package treats that as a cryptographic
// failure (spec.md §7): fatal, because the underlying primitive cannot be
// trusted to produce correct output at all.
var ErrSelfTestFailed = errors.New("drbg: AES known-answer test failed")

var (
	kat       sync.Once
	katResult error
)

// RunSelfTests runs the AES power-on known-answer test once per process
// and caches the result; every subsequent call returns the cached
// outcome without re-running the cipher. Constructors in this package
// call it before any DRBG produces output.
func RunSelfTests() error {
	kat.Do(func() { katResult = checkAESKnownAnswer() })
	return katResult
}

// aesCTRVector holds one NIST SP 800-38A §F.5.5 CTR block: 16 bytes of
// counter input, the corresponding plaintext, and the published
// ciphertext for a fixed AES-256 key.
type aesCTRVector struct {
	counter, plaintext, ciphertext string
}

// nist80038aF55 is block 1 of the AES-256-CTR vector from NIST SP 800-38A
// §F.5.5, hex-encoded exactly as the standard publishes it. vectors is a
// slice so additional published blocks can be appended without changing
// checkAESKnownAnswer.
var nist80038aF55 = struct {
	key     string
	vectors []aesCTRVector
}{
	key: "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4",
	vectors: []aesCTRVector{
		{
			counter:    "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff",
			plaintext:  "6bc1bee22e409f96e93d7e117393172a",
			ciphertext: "601ec313775789a5b7a7f504bbf3d228",
		},
	},
}

func checkAESKnownAnswer() error {
	key, err := hex.DecodeString(nist80038aF55.key)
	if err != nil || len(key) != 32 {
		return ErrSelfTestFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return ErrSelfTestFailed
	}

	for _, v := range nist80038aF55.vectors {
		iv, err := hex.DecodeString(v.counter)
		if err != nil || len(iv) != aes.BlockSize {
			return ErrSelfTestFailed
		}
		plaintext, err := hex.DecodeString(v.plaintext)
		if err != nil {
			return ErrSelfTestFailed
		}
		want, err := hex.DecodeString(v.ciphertext)
		if err != nil {
			return ErrSelfTestFailed
		}

		got := make([]byte, len(plaintext))
		cipher.NewCTR(block, iv).XORKeyStream(got, plaintext)

		if !bytes.Equal(got, want) {
			return ErrSelfTestFailed
		}
	}

	return nil
}
