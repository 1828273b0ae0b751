// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package instant implements the instant-entropy bootstrap source
// (spec.md §4.10): a concurrent prime-search race used before Fortuna's
// pools have accumulated real entropy, plus a 64-slot holder array that
// serves it to consumers and a time-jitter-hashed reseed path for the
// shared ISAAC generator.
package instant

import (
	"crypto/sha512"
	"encoding/binary"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	crand "crypto/rand"

	"github.com/simon-greatrix/sec-prng-sub001/internal/isaac"
)

// residues are the eight values coprime with 30 in [1,29]; every integer
// not divisible by 2, 3, or 5 takes one of these forms, per spec.md
// §4.10's "30·k + c" prime search.
var residues = [8]int64{1, 7, 11, 13, 17, 19, 23, 29}

const finderCount = 256

// digestSize is 512 bits, per spec.md §4.10.
const digestSize = sha512.Size

// race runs finderCount concurrent prime searches and folds
// (finder id, prime value, elapsed nanoseconds) from each into a single
// synchronized SHA-512 digest, returning the 64-byte result.
func race() []byte {
	h := sha512.New()
	var mu sync.Mutex
	var wg sync.WaitGroup
	var threadCounter int64

	wg.Add(finderCount)
	for i := 0; i < finderCount; i++ {
		i := i
		go func() {
			defer wg.Done()

			c := residues[i%len(residues)]
			start := randomStart()
			t0 := time.Now()
			prime, k := findPrime(c, start)
			elapsed := time.Since(t0)

			threadID := atomic.AddInt64(&threadCounter, 1)

			var rec [32]byte
			binary.LittleEndian.PutUint64(rec[0:8], uint64(threadID))
			binary.LittleEndian.PutUint64(rec[8:16], uint64(i))
			binary.LittleEndian.PutUint64(rec[16:24], uint64(prime))
			binary.LittleEndian.PutUint64(rec[24:32], uint64(elapsed.Nanoseconds()))
			_ = k

			mu.Lock()
			h.Write(rec[:])
			mu.Unlock()
		}()
	}
	wg.Wait()

	return h.Sum(nil)
}

// findPrime searches k = start, start+1, ... for the first value such
// that 30k+c is prime, returning the prime and the k that produced it.
func findPrime(c, start int64) (int64, int64) {
	k := start
	for {
		candidate := big.NewInt(30*k + c)
		if candidate.ProbablyPrime(20) {
			return candidate.Int64(), k
		}
		k++
	}
}

func randomStart() int64 {
	var buf [4]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return int64(time.Now().UnixNano() & 0xFFFF)
	}
	return int64(binary.LittleEndian.Uint32(buf[:]) % 100000)
}

// fnv256Prime and fnv256Offset are the FNV-1a 256-bit parameters.
var (
	fnv256Prime, _  = new(big.Int).SetString("1000000000000000000000000000000000000000163", 16)
	fnv256Offset, _ = new(big.Int).SetString("dd268dbcaac550362d98c384c4e576ccc8b1536847b6bbb31023b4c8caee0535", 16)
	fnv256Mod       = new(big.Int).Lsh(big.NewInt(1), 256)
)

// fnv256a computes a 256-bit FNV-1a digest of data.
func fnv256a(data []byte) []byte {
	h := new(big.Int).Set(fnv256Offset)
	tmp := new(big.Int)
	for _, b := range data {
		h.Xor(h, tmp.SetInt64(int64(b)))
		h.Mul(h, fnv256Prime)
		h.Mod(h, fnv256Mod)
	}
	out := make([]byte, 32)
	h.FillBytes(out)
	return out
}

// deriveISAACSeed implements spec.md §4.10's unusual ISAAC seeding
// function: iteratively FNV-256-hash the current seed together with the
// nanosecond timer to fill a 1024-byte buffer, permute that buffer, then
// load it as 256 little-endian 32-bit words.
func deriveISAACSeed(seed []byte) []uint32 {
	const bufSize = 1024
	buf := make([]byte, 0, bufSize)

	cur := append([]byte(nil), seed...)
	for len(buf) < bufSize {
		var nsBuf [8]byte
		binary.LittleEndian.PutUint64(nsBuf[:], uint64(time.Now().UnixNano()))

		mixed := make([]byte, 0, len(cur)+8)
		mixed = append(mixed, cur...)
		mixed = append(mixed, nsBuf[:]...)

		cur = fnv256a(mixed)
		buf = append(buf, cur...)
	}
	buf = buf[:bufSize]

	permute(buf)

	words := make([]uint32, bufSize/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return words
}

// permute applies an in-place Fisher-Yates shuffle driven by a splitmix64
// stream seeded from buf's own first eight bytes, so the permutation
// itself needs no external randomness source.
func permute(buf []byte) {
	var state uint64
	for i := 0; i < 8 && i < len(buf); i++ {
		state |= uint64(buf[i]) << (8 * uint(i))
	}
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}

	next := func() uint64 {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		return z ^ (z >> 31)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j := int(next() % uint64(i+1))
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// Bootstrap is the 64-slot holder array of spec.md §4.10: each slot
// carries a full prime-race digest, is released to a consumer in random
// order, and is asynchronously refilled once consumed.
type Bootstrap struct {
	mu     sync.Mutex
	slots  [64][]byte
	filled [64]bool
}

// New constructs a Bootstrap and kicks off filling every slot
// concurrently. The constructor does not block on the fills completing;
// Get falls back to a synchronous race if a requested slot is not yet
// ready.
func New() *Bootstrap {
	b := &Bootstrap{}
	for i := range b.slots {
		i := i
		go b.refill(i)
	}
	return b
}

func (b *Bootstrap) refill(i int) {
	digest := race()

	b.mu.Lock()
	b.slots[i] = digest
	b.filled[i] = true
	b.mu.Unlock()

	isaac.Shared.Reseed(deriveISAACSeed(digest))
}

// Get returns n bytes of instant entropy, consuming a randomly selected
// slot (falling back to a synchronous race when no slot is ready yet) and
// asynchronously refilling the consumed slot.
func (b *Bootstrap) Get(n int) []byte {
	idx := int(isaac.Shared.Uint32() % uint32(len(b.slots)))

	b.mu.Lock()
	ready := b.filled[idx]
	var data []byte
	if ready {
		data = b.slots[idx]
		b.filled[idx] = false
	}
	b.mu.Unlock()

	if !ready {
		data = race()
	} else {
		go b.refill(idx)
	}

	return expand(data, n)
}

// expand returns exactly n bytes derived from data: truncated if data is
// longer, chained via SHA-512 if data is shorter than requested.
func expand(data []byte, n int) []byte {
	if len(data) >= n {
		return append([]byte(nil), data[:n]...)
	}

	out := make([]byte, 0, n+digestSize)
	cur := data
	for len(out) < n {
		sum := sha512.Sum512(cur)
		out = append(out, sum[:]...)
		cur = sum[:]
	}
	return out[:n]
}
