// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package prng is the public provider/service surface of spec.md §6: a
// small name → constructor registry resolving strings like "Nist/SHA-256"
// and "Nist/AES" to a Base-DRBG instance wired to the process-wide Fortuna
// accumulator, mirroring the functional-options NewReader pattern of
// sixafter/nanoid's ctrdrbg and prng packages.
package prng

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/simon-greatrix/sec-prng-sub001/internal/drbg"
)

// Builder constructs a drbg.Interface over source (normally the Fortuna
// singleton), using resistance as its reseed-window policy and
// seedMaterial as its initial seed.
type Builder func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register adds a named provider to the package-level registry. Calling
// Register twice with the same name replaces the earlier entry; this
// supports tests substituting a provider without a global reset.
func Register(name string, build Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = build
}

// Names returns every registered provider name, unordered.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

func lookup(name string) (Builder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	build, ok := registry[name]
	return build, ok
}

// ErrUnknownProvider indicates New was asked to build a provider name that
// is not registered.
type ErrUnknownProvider string

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("prng: unknown provider %q", string(e))
}

func init() {
	Register("Nist/SHA-1", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHashDRBG(drbg.Sha1Spec, seedMaterial, source, resistance)
	})
	Register("Nist/SHA-256", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHashDRBG(drbg.Sha256Spec, seedMaterial, source, resistance)
	})
	Register("Nist/SHA-512", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHashDRBG(drbg.Sha512Spec, seedMaterial, source, resistance)
	})
	Register("Nist/HmacSHA-1", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHMACDRBG(drbg.Sha1Spec, seedMaterial, source, resistance)
	})
	Register("Nist/HmacSHA-256", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHMACDRBG(drbg.Sha256Spec, seedMaterial, source, resistance)
	})
	Register("Nist/HmacSHA-512", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewHMACDRBG(drbg.Sha512Spec, seedMaterial, source, resistance)
	})
	Register("Nist/AES", func(source drbg.EntropySource, resistance uint64, seedMaterial []byte) drbg.Interface {
		return drbg.NewCTRDRBG(seedMaterial, source, resistance)
	})
}

// Reader adapts a drbg.Interface to io.Reader, tracking the cumulative
// diagnostics spec.md's wider ecosystem texture calls for (see
// prng-chacha's Stats{BytesGenerated,KeyRotations}): BytesGenerated counts
// every byte produced by Read, KeyRotations counts every explicit Reseed
// call.
type Reader struct {
	name string
	inst drbg.Interface

	bytesGenerated atomic.Uint64
	keyRotations   atomic.Uint64
}

// Stats reports a Reader's cumulative runtime metrics.
type Stats struct {
	BytesGenerated uint64
	KeyRotations   uint64
}

// Name returns the provider name this Reader was built from, e.g.
// "Nist/SHA-256".
func (r *Reader) Name() string { return r.name }

// Stats returns the Reader's cumulative counters.
func (r *Reader) Stats() Stats {
	return Stats{
		BytesGenerated: r.bytesGenerated.Load(),
		KeyRotations:   r.keyRotations.Load(),
	}
}

// Read fills p with generated output and implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r.inst.NextBytes(p)
	r.bytesGenerated.Add(uint64(len(p)))
	return len(p), nil
}

// Reseed folds seed into the underlying DRBG's state, counting as a key
// rotation.
func (r *Reader) Reseed(seed []byte) {
	r.inst.SetSeed(seed)
	r.keyRotations.Add(1)
}

// NewSeed produces seed material suitable for seeding another DRBG, by
// generating from this Reader's own state.
func (r *Reader) NewSeed() []byte { return r.inst.NewSeed() }

var _ io.Reader = (*Reader)(nil)
