// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package sysrand implements the system-RNG multiplexer (spec.md §4.8): a
// round-robin reader over every host-provided secure RNG, each wrapped
// with an asynchronously refilled block, a randomized reseed schedule,
// and a cross-pollination queue that lets wrappers re-seed each other.
package sysrand

import (
	"crypto/sha256"
	"io"
	"sync"
	"sync/atomic"

	"github.com/simon-greatrix/sec-prng-sub001/internal/isaac"
	"github.com/simon-greatrix/sec-prng-sub001/internal/telemetry"
)

// blockSize is the number of bytes a wrapper reads from its host source
// per refill, per spec.md §4.8.
const blockSize = 256

// pollinationCapacity bounds the shared cross-pollination queue; on
// overflow the oldest entries are combined by digesting them together
// with the new seed (see enqueuePollination).
const pollinationCapacity = 32

// EntropySource is the narrow interface the multiplexer needs of its
// fallback (normally the instant-entropy bootstrap, C10): produce n bytes
// when every host source is temporarily unavailable.
type EntropySource interface {
	Get(n int) []byte
}

// Source names one host-provided secure RNG service to wrap.
type Source struct {
	Name   string
	Reader io.Reader
}

// wrapper is one host RNG, wrapped with a refill block, a reseed
// schedule, and an injected-seed queue, per spec.md §4.8.
type wrapper struct {
	name   string
	reader io.Reader

	mu        sync.Mutex
	block     [blockSize]byte
	available int // -1 before the first refill

	reseedCounter int64

	injected chan []byte

	refilling atomic.Bool
}

func newWrapper(src Source, initialReseed int64) *wrapper {
	return &wrapper{
		name:          src.Name,
		reader:        src.Reader,
		available:     -1,
		reseedCounter: initialReseed,
		injected:      make(chan []byte, 4),
	}
}

// get returns the i'th byte from the wrapper's current block if one is
// available, decrementing the available count. When the block is
// exhausted it triggers an asynchronous refill and reports false so the
// caller moves on to the next source.
func (w *wrapper) get(out *byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.available <= 0 {
		w.triggerRefill()
		return false
	}

	idx := blockSize - w.available
	*out = w.block[idx]
	w.available--
	if w.available == 0 {
		w.triggerRefill()
	}
	return true
}

// triggerRefill starts an asynchronous run() unless one is already in
// flight; must be called with w.mu held.
func (w *wrapper) triggerRefill() {
	if !w.refilling.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer w.refilling.Store(false)
		w.run(nil)
	}()
}

// run refills the wrapper's block, per spec.md §4.8: an injected seed
// (if queued) or a drained cross-pollination seed is mixed into the fresh
// read via XOR; otherwise the reseed counter is simply decremented.
func (w *wrapper) run(pollination <-chan []byte) {
	var seed []byte
	select {
	case seed = <-w.injected:
	default:
		w.mu.Lock()
		w.reseedCounter--
		needsSeed := w.reseedCounter < 0
		w.mu.Unlock()

		if needsSeed && pollination != nil {
			select {
			case seed = <-pollination:
			default:
			}
		}
	}

	var fresh [blockSize]byte
	n, err := w.reader.Read(fresh[:])

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil || n == 0 {
		// Host source unavailable this round; leave available at 0 so the
		// multiplexer's Get falls through to the next source / fallback.
		w.available = 0
		return
	}

	for i := 0; i < n && i < len(seed); i++ {
		fresh[i] ^= seed[i]
	}

	w.block = fresh
	w.available = n
}

// inject queues a seed for this wrapper. On overflow the oldest queued
// seed is never simply discarded: it is digested together with the new
// seed via combine, and the digest takes its place in the queue, per
// spec.md §4.8's "resolved by digesting oldest entries together".
func (w *wrapper) inject(seed []byte) {
	select {
	case w.injected <- seed:
		return
	default:
	}

	select {
	case oldest := <-w.injected:
		seed = combine(oldest, seed)
	default:
	}

	select {
	case w.injected <- seed:
	default:
	}
}

// Multiplexer draws bytes round-robin from every wrapped host RNG,
// falling back to an injected EntropySource (the instant-entropy
// bootstrap) when no host source can currently supply a byte.
type Multiplexer struct {
	wrappers    []*wrapper
	fallback    EntropySource
	pollination chan []byte
	rr          uint64

	bytesGenerated atomic.Uint64
}

// Stats reports cumulative runtime metrics for a Multiplexer, mirroring
// the pooled-generator diagnostics the pack's prng-chacha reader exposes.
type Stats struct {
	// BytesGenerated is the total number of bytes returned by Get across
	// the lifetime of this Multiplexer.
	BytesGenerated uint64
}

// Stats returns the multiplexer's cumulative output counter.
func (m *Multiplexer) Stats() Stats {
	return Stats{BytesGenerated: m.bytesGenerated.Load()}
}

// New constructs a multiplexer over sources, starting each wrapper's
// reseed counter at a uniformly random value in [0, len(sources)) drawn
// from the shared ISAAC generator (spec.md §4.8 specifies this draw need
// not be cryptographic), and enrolling each wrapper in cross-pollination.
func New(sources []Source, fallback EntropySource) *Multiplexer {
	m := &Multiplexer{
		fallback:    fallback,
		pollination: make(chan []byte, pollinationCapacity),
	}

	n := len(sources)
	for _, src := range sources {
		var initial int64
		if n > 0 {
			initial = int64(isaac.Shared.Uint32() % uint32(n))
		}
		m.wrappers = append(m.wrappers, newWrapper(src, initial))
	}

	for _, w := range m.wrappers {
		w := w
		go func() {
			seed := make([]byte, 32)
			if n, err := w.reader.Read(seed); err == nil && n == 32 {
				m.enqueuePollination(seed)
			}
		}()
	}

	return m
}

// enqueuePollination pushes seed onto the shared cross-pollination queue,
// combining it with the oldest queued entry by digesting the two together
// when the queue is full (spec.md §4.8).
func (m *Multiplexer) enqueuePollination(seed []byte) {
	select {
	case m.pollination <- seed:
		return
	default:
	}

	select {
	case oldest := <-m.pollination:
		combined := combine(oldest, seed)
		select {
		case m.pollination <- combined:
		default:
		}
	default:
		select {
		case m.pollination <- seed:
		default:
		}
	}
}

// Inject pushes seed material into every wrapper's injected-seed queue,
// the entry point collectors (C9) and the network entropy manager (C13)
// use to cross-pollinate host sources.
func (m *Multiplexer) Inject(seed []byte) {
	for _, w := range m.wrappers {
		w.inject(seed)
	}
}

// Get draws n bytes, one at a time, round-robin across every wrapped host
// source starting from a randomly chosen offset; any byte no source can
// currently supply is drawn from the fallback entropy source instead.
func (m *Multiplexer) Get(n int) []byte {
	defer m.bytesGenerated.Add(uint64(n))

	out := make([]byte, n)
	count := len(m.wrappers)
	if count == 0 {
		return m.fallback.Get(n)
	}

	start := int(isaac.Shared.Uint32() % uint32(count))

	starved := 0
	for i := 0; i < n; i++ {
		filled := false
		for j := 0; j < count; j++ {
			w := m.wrappers[(start+i+j)%count]
			var b byte
			if w.get(&b) {
				out[i] = b
				filled = true
				break
			}
			// A refill was just triggered for this wrapper; while the
			// cross-pollination queue holds seeds, refill it now with
			// access to that queue, so run draws one once its reseed
			// counter has gone negative.
			if len(m.pollination) > 0 {
				w.run(m.pollination)
			}
		}
		if !filled {
			starved++
			fb := m.fallback.Get(1)
			if len(fb) > 0 {
				out[i] = fb[0]
			}
		}
	}

	if starved > 0 {
		telemetry.EntropyStarvation("sysrand", "no host source had bytes available; substituted instant entropy")
	}

	return out
}

// combine digests two seeds together with SHA-256, per spec.md §4.8's
// requirement that overflow is "resolved by digesting oldest entries
// together (never by dropping entropy)".
func combine(a, b []byte) []byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}
