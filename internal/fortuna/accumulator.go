// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package fortuna implements the Fortuna entropy accumulator of
// spec.md §4.11: 32 pools built from a round-robin of the DRBG
// constructions in internal/drbg, a trailing-zero-bit reseed schedule
// adapted from the accumulator shape the wider Fortuna example pack
// shows, and an AES-256-ECB counter-mode output engine rekeyed every
// megabyte.
package fortuna

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"github.com/simon-greatrix/sec-prng-sub001/internal/drbg"
)

const (
	poolCount = 32

	// rekeyInterval is the number of output bytes after which the
	// engine's key is refreshed, per spec.md §4.11.
	rekeyInterval = 1 << 20

	engineKeySize = 32
	engineBlock   = 16
)

// EntropySource is the narrow interface Fortuna needs of its initial
// seeding source (normally the system-RNG multiplexer).
type EntropySource interface {
	Get(n int) []byte
}

// SeedStore is the narrow interface Fortuna needs of the persistent seed
// store to load per-pool checkpoints and to schedule new ones. Checkpoints
// are never written directly: EnqueueSeed hands the write-back queue a
// producer that is only invoked at flush time (spec.md §3's "deferred
// seed"), so a checkpoint always passes through the scrambler (§4.12)
// and is never captured while Fortuna's pool lock is held.
type SeedStore interface {
	GetRaw(name string) ([]byte, bool)
	EnqueueSeed(name string, produce func() []byte)
}

// Accumulator is the process-wide Fortuna instance: 32 pools, each an
// independent DRBG, feeding a keyed AES-256-ECB counter-mode output
// engine. It is safe for concurrent use.
type Accumulator struct {
	poolMu sync.Mutex
	pools  [poolCount]drbg.Interface

	engineMu sync.Mutex
	key      []byte
	counter  []byte
	cipher   cipher.Block

	reseedCounter uint64

	store SeedStore

	bytesGenerated atomic.Uint64
	reseedCount    atomic.Uint64
}

// Stats reports cumulative runtime metrics for an Accumulator, the
// Fortuna-side counterpart of sysrand.Stats.
type Stats struct {
	// BytesGenerated is the total number of bytes GetSeed has emitted.
	BytesGenerated uint64

	// ReseedCount is the number of times the engine key has been folded
	// with fresh pool material by GetSeed.
	ReseedCount uint64
}

// Stats returns the accumulator's cumulative counters.
func (a *Accumulator) Stats() Stats {
	return Stats{
		BytesGenerated: a.bytesGenerated.Load(),
		ReseedCount:    a.reseedCount.Load(),
	}
}

// New constructs an Accumulator. Each pool is assigned a distinct
// construction from {CTR-AES-256, Hash-SHA256, Hash-SHA512, HMAC-SHA256,
// HMAC-SHA512} in round-robin and seeded with 128 bytes from source; any
// persisted Fortuna.i checkpoints in store are then mixed in via
// set_seed, and a deferred seed is enqueued per pool so the next
// checkpoint captures a fresh snapshot (spec.md §4.11).
func New(source EntropySource, store SeedStore) *Accumulator {
	a := &Accumulator{
		key:     make([]byte, engineKeySize),
		counter: make([]byte, engineBlock),
		store:   store,
	}
	a.cipher, _ = aes.NewCipher(a.key)

	for i := 0; i < poolCount; i++ {
		seedMaterial := source.Get(128)
		a.pools[i] = newPoolDRBG(i, seedMaterial, source)

		if store != nil {
			if persisted, ok := store.GetRaw(checkpointName(i)); ok {
				a.pools[i].SetSeed(persisted)
			}

			pool := a.pools[i]
			store.EnqueueSeed(checkpointName(i), func() []byte { return pool.NewSeed() })
		}
	}

	return a
}

func checkpointName(i int) string {
	return "Fortuna." + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// newPoolDRBG constructs the i'th pool's DRBG, cycling through the five
// constructions spec.md §4.11 names.
func newPoolDRBG(i int, seedMaterial []byte, source EntropySource) drbg.Interface {
	entropySrc := drbg.EntropySourceFunc(func(n int) []byte { return source.Get(n) })

	switch i % 5 {
	case 0:
		return drbg.NewCTRDRBG(seedMaterial, entropySrc, 0)
	case 1:
		return drbg.NewHashDRBG(drbg.Sha256Spec, seedMaterial, entropySrc, 0)
	case 2:
		return drbg.NewHashDRBG(drbg.Sha512Spec, seedMaterial, entropySrc, 0)
	case 3:
		return drbg.NewHMACDRBG(drbg.Sha256Spec, seedMaterial, entropySrc, 0)
	default:
		return drbg.NewHMACDRBG(drbg.Sha512Spec, seedMaterial, entropySrc, 0)
	}
}

// AddEvent routes data into pool (pool mod poolCount)'s set_seed, per
// spec.md §4.11, and records a deferred checkpoint for that pool.
func (a *Accumulator) AddEvent(pool int, data []byte) {
	idx := ((pool % poolCount) + poolCount) % poolCount

	a.poolMu.Lock()
	a.pools[idx].SetSeed(data)
	a.poolMu.Unlock()

	if a.store != nil {
		pool := a.pools[idx]
		a.store.EnqueueSeed(checkpointName(idx), func() []byte { return pool.NewSeed() })
	}
}

// trailingZeros64 returns the number of trailing zero bits of v, or 64 if
// v is zero.
func trailingZeros64(v uint64) int {
	if v == 0 {
		return 64
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

// GetSeed implements spec.md §4.11's get_seed: advance the reseed
// counter, draw 32 bytes from each of pools 0..k-1 (k = trailing zero
// bits of R, plus one, capped at poolCount), fold the concatenation into
// the engine key, then emit the requested bytes from the keyed counter
// engine.
func (a *Accumulator) GetSeed(n int) []byte {
	a.poolMu.Lock()
	a.reseedCounter++
	k := trailingZeros64(a.reseedCounter) + 1
	if k > poolCount {
		k = poolCount
	}

	material := make([]byte, 0, k*32)
	for i := 0; i < k; i++ {
		buf := make([]byte, 32)
		a.pools[i].NextBytes(buf)
		material = append(material, buf...)
	}
	a.poolMu.Unlock()

	a.reseed(material)
	out := a.generate(n)
	a.bytesGenerated.Add(uint64(len(out)))
	return out
}

// reseed implements the engine's reseed step: key ← SHA-256(old_key ∥
// material); the old key is zeroed; the 128-bit counter is incremented.
func (a *Accumulator) reseed(material []byte) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	sum := sha256.Sum256(append(append([]byte(nil), a.key...), material...))
	for i := range a.key {
		a.key[i] = 0
	}
	a.key = sum[:]
	a.cipher, _ = aes.NewCipher(a.key)
	incBE(a.counter)
	a.reseedCount.Add(1)
}

// generate emits n bytes from the AES-256-ECB counter-mode engine,
// rekeying every rekeyInterval bytes as spec.md §4.11 describes: encrypt
// the next two counter blocks and take the 32-byte result as the new
// key. The final partial block of any chunk is produced from a single
// buffered encryption and truncated.
func (a *Accumulator) generate(n int) []byte {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	out := make([]byte, 0, n)
	sinceRekey := 0

	for len(out) < n {
		remaining := n - len(out)
		chunk := remaining
		if chunk > rekeyInterval-sinceRekey {
			chunk = rekeyInterval - sinceRekey
		}
		if chunk <= 0 {
			a.rekey()
			sinceRekey = 0
			continue
		}

		block := make([]byte, engineBlock)
		produced := 0
		for produced < chunk {
			incBE(a.counter)
			a.cipher.Encrypt(block, a.counter)
			take := chunk - produced
			if take > engineBlock {
				take = engineBlock
			}
			out = append(out, block[:take]...)
			produced += take
		}
		sinceRekey += chunk

		if sinceRekey >= rekeyInterval && len(out) < n {
			a.rekey()
			sinceRekey = 0
		}
	}

	return out
}

// rekey encrypts the next two counter blocks and takes the 32-byte
// result as the engine's new key, per spec.md §4.11.
func (a *Accumulator) rekey() {
	newKey := make([]byte, 0, engineKeySize)
	for len(newKey) < engineKeySize {
		incBE(a.counter)
		block := make([]byte, engineBlock)
		a.cipher.Encrypt(block, a.counter)
		newKey = append(newKey, block...)
	}
	a.key = newKey[:engineKeySize]
	a.cipher, _ = aes.NewCipher(a.key)
}

// incBE increments v, treated as a big-endian unsigned integer, matching
// the Hash/HMAC-DRBG counter convention this module uses elsewhere (the
// engine counter's endianness is not otherwise constrained by spec.md).
func incBE(v []byte) {
	for i := len(v) - 1; i >= 0; i-- {
		v[i]++
		if v[i] != 0 {
			return
		}
	}
}

// Get implements the narrow EntropySource contract so an Accumulator can
// itself serve as the fallback source for combine_materials.
func (a *Accumulator) Get(n int) []byte { return a.GetSeed(n) }
