// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package netentropy

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/simon-greatrix/sec-prng-sub001/internal/telemetry"
)

const slotCount = 64

// MaxAge and MinAge/MinUsage implement the cached-seed refresh predicate
// of spec.md §3's "Network seed" data model.
const (
	MaxAge   = 7 * 24 * time.Hour
	MinAge   = 24 * time.Hour
	MinUsage = 32
)

// Store is the narrow seed-storage contract the manager needs to persist
// and reload its 64-slot cache across restarts.
type Store interface {
	GetRaw(name string) ([]byte, bool)
	PutRaw(name string, data []byte) error
}

// Sink receives sampled entropy events, normally Fortuna's AddEvent.
type Sink interface {
	AddEvent(pool int, data []byte)
}

// slot is one of the 64 cached network seeds.
type slot struct {
	data       []byte
	loadTime   time.Time
	usageCount int
	cursor     int
}

func (s *slot) expired() bool {
	if len(s.data) == 0 {
		return true
	}
	age := time.Since(s.loadTime)
	if age > MaxAge {
		return true
	}
	return age > MinAge && s.usageCount >= MinUsage
}

// trailerSize is the width of the type-specific trailer spec.md §3/§4.12
// append to a network seed's persisted record: an i64 load-time (Unix
// seconds), an i32 usage count, and an i32 read cursor.
const trailerSize = 8 + 4 + 4

// encodeSlotRecord builds the bytes handed to Store.PutRaw for a network
// seed: the BlockSize-byte data followed by its trailer, per spec.md
// §4.12's `… ∥ scramble(data) ∥ trailer` wire layout (data is scrambled
// by the caller before reaching here).
func encodeSlotRecord(data []byte, loadTime time.Time, usageCount, cursor int) []byte {
	out := make([]byte, 0, len(data)+trailerSize)
	out = append(out, data...)

	var trailer [trailerSize]byte
	binary.BigEndian.PutUint64(trailer[0:8], uint64(loadTime.Unix()))
	binary.BigEndian.PutUint32(trailer[8:12], uint32(usageCount))
	binary.BigEndian.PutUint32(trailer[12:16], uint32(cursor))
	return append(out, trailer[:]...)
}

// decodeSlotRecord splits a persisted network-seed record back into its
// data block and trailer fields. ok is false if raw is not exactly
// BlockSize+trailerSize long, the type-specific "Corruption" case of
// spec.md §7 for this record type.
func decodeSlotRecord(raw []byte) (data []byte, loadTime time.Time, usageCount, cursor int, ok bool) {
	if len(raw) != BlockSize+trailerSize {
		return nil, time.Time{}, 0, 0, false
	}

	data = append([]byte(nil), raw[:BlockSize]...)
	trailer := raw[BlockSize:]
	secs := int64(binary.BigEndian.Uint64(trailer[0:8]))
	usageCount = int(binary.BigEndian.Uint32(trailer[8:12]))
	cursor = int(binary.BigEndian.Uint32(trailer[12:16]))
	return data, time.Unix(secs, 0), usageCount, cursor, true
}

// ManagerConfig controls the manager's run cycle, per spec.md §4.13.
type ManagerConfig struct {
	ExpectedUsage int
	SeedsPerCycle int
	Scramble      func([]byte) []byte
}

// DefaultManagerConfig returns spec.md §4.13's defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{ExpectedUsage: 32, SeedsPerCycle: 4}
}

// Manager is the network entropy manager of spec.md §4.13: it loads
// configured network sources, maintains a 64-slot cache of fetched
// 128-byte blocks, and injects sampled 16-byte events into Fortuna.
type Manager struct {
	cfg     ManagerConfig
	sources []Source
	weights []float64

	store Store
	sink  Sink

	mu    sync.Mutex
	slots [slotCount]slot
}

// NewManager constructs a manager over sources, normalizing the weights
// of those with Weight() > 0; sources with a non-positive weight are
// kept with a normalized weight of zero, so weightedSource (used by both
// Inject and Fetch) never picks them unless every source has zero weight.
func NewManager(sources []Source, store Store, sink Sink, cfg ManagerConfig) *Manager {
	if cfg.SeedsPerCycle > 32 {
		cfg.SeedsPerCycle = 32
	}
	if cfg.Scramble == nil {
		cfg.Scramble = func(b []byte) []byte { return b }
	}

	m := &Manager{cfg: cfg, sources: sources, store: store, sink: sink}
	m.normalizeWeights()
	return m
}

func (m *Manager) normalizeWeights() {
	var total float64
	for _, s := range m.sources {
		if s.Weight() > 0 {
			total += s.Weight()
		}
	}
	m.weights = make([]float64, len(m.sources))
	if total <= 0 {
		return
	}
	for i, s := range m.sources {
		if s.Weight() > 0 {
			m.weights[i] = s.Weight() / total
		}
	}
}

// Init loads any persisted NetRandom.i seeds from store and reports
// whether at least one source is enabled, per spec.md §4.13's init().
func (m *Manager) Init() bool {
	enabled := false
	for _, s := range m.sources {
		if s.Weight() > 0 {
			enabled = true
			break
		}
	}
	if !enabled {
		return false
	}

	if m.store == nil {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slots {
		raw, ok := m.store.GetRaw(slotName(i))
		if !ok {
			continue
		}

		data, loadTime, usageCount, cursor, ok := decodeSlotRecord(raw)
		if !ok {
			continue
		}
		m.slots[i] = slot{data: data, loadTime: loadTime, usageCount: usageCount, cursor: cursor}
	}
	return true
}

// slotName returns the persisted key for slot i, matching the decimal
// NetRandom.0..NetRandom.63 keys of spec.md §3/§6 (and Fortuna.i's
// decimal naming in internal/fortuna).
func slotName(i int) string {
	return "NetRandom." + strconv.Itoa(i)
}

// weightedSource picks a source index at random, weighted by each
// source's normalized weight; sources with zero weight are never
// selected unless every source has zero weight, in which case selection
// falls back to uniform.
func (m *Manager) weightedSource() int {
	if len(m.sources) == 0 {
		return -1
	}

	var total float64
	for _, w := range m.weights {
		total += w
	}
	if total <= 0 {
		return randIntn(len(m.sources))
	}

	r := rand.Float64() * total
	for i, w := range m.weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(m.sources) - 1
}

func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

// Inject implements spec.md §4.13's inject(): repeat SeedsPerCycle times,
// picking a uniformly random slot; refresh it (with probability
// 1/ExpectedUsage, or if expired/empty) from a weighted-random source,
// otherwise reuse the cached block; then sample a 16-byte event by
// indexing the block with 16 random 7-bit indices and feed it to sink.
func (m *Manager) Inject(ctx context.Context) {
	n := m.cfg.SeedsPerCycle
	if n <= 0 {
		n = 1
	}

	for i := 0; i < n; i++ {
		idx := randIntn(slotCount)

		m.mu.Lock()
		needsRefresh := m.slots[idx].expired()
		m.mu.Unlock()

		if !needsRefresh && m.cfg.ExpectedUsage > 0 && randIntn(m.cfg.ExpectedUsage) == 0 {
			needsRefresh = true
		}

		if needsRefresh {
			m.refreshSlot(ctx, idx)
		}

		m.mu.Lock()
		block := m.slots[idx].data
		if len(block) == BlockSize {
			m.slots[idx].usageCount++
			m.slots[idx].cursor = (m.slots[idx].cursor + 16) % BlockSize
		}
		m.mu.Unlock()

		if len(block) != BlockSize {
			continue
		}

		event := sampleEvent(block)
		m.sink.AddEvent(idx%32, event)
	}
}

// sampleEvent draws 16 bytes from block by indexing it with 16 random
// 7-bit indices, per spec.md §4.13.
func sampleEvent(block []byte) []byte {
	out := make([]byte, 16)
	for i := range out {
		idx := randIntn(128) & 0x7F
		if idx >= len(block) {
			idx %= len(block)
		}
		out[i] = block[idx]
	}
	return out
}

func (m *Manager) refreshSlot(ctx context.Context, idx int) {
	si := m.weightedSource()
	if si < 0 {
		return
	}

	data := Load(ctx, m.sources[si], m.cfg.Scramble)
	if len(data) != BlockSize {
		return
	}

	now := time.Now()
	m.mu.Lock()
	m.slots[idx] = slot{data: data, loadTime: now}
	m.mu.Unlock()

	if m.store != nil {
		record := encodeSlotRecord(data, now, 0, 0)
		if err := m.store.PutRaw(slotName(idx), record); err != nil {
			telemetry.StorageFailure("netentropy", slotName(idx), err)
		}
	}
}

// Fetch implements spec.md §4.13's fetch(): walk all 64 slots, fetching
// now for any empty one. Per-slot failures are accumulated into one
// *multierror.Error rather than aborting the walk.
func (m *Manager) Fetch(ctx context.Context) error {
	var result error

	for idx := 0; idx < slotCount; idx++ {
		m.mu.Lock()
		empty := len(m.slots[idx].data) == 0
		m.mu.Unlock()
		if !empty {
			continue
		}

		si := m.weightedSource()
		if si < 0 {
			result = multierror.Append(result, errors.New("netentropy: no enabled source"))
			continue
		}

		fetched, err := m.sources[si].Fetch(ctx)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "slot %d", idx))
			continue
		}

		scrambled := m.cfg.Scramble(fetched)

		now := time.Now()
		m.mu.Lock()
		m.slots[idx] = slot{data: scrambled, loadTime: now}
		m.mu.Unlock()

		if m.store != nil {
			record := encodeSlotRecord(scrambled, now, 0, 0)
			if err := m.store.PutRaw(slotName(idx), record); err != nil {
				telemetry.StorageFailure("netentropy", slotName(idx), err)
			}
		}
	}

	return result
}

