// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package netentropy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) GetRaw(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[name]
	return d, ok
}

func (m *memStore) PutRaw(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events [][]byte
}

func (r *recordingSink) AddEvent(pool int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, append([]byte(nil), data...))
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type staticSource struct {
	name    string
	weight  float64
	payload []byte
	calls   int
	mu      sync.Mutex
}

func (s *staticSource) Name() string    { return s.name }
func (s *staticSource) Weight() float64 { return s.weight }
func (s *staticSource) Fetch(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.payload, nil
}

func (s *staticSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fixedBlock(fill byte) []byte {
	b := make([]byte, BlockSize)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestManager_InitFalseWhenNoSourceEnabled(t *testing.T) {
	src := &staticSource{name: "disabled", weight: 0, payload: fixedBlock(1)}
	m := NewManager([]Source{src}, newMemStore(), &recordingSink{}, DefaultManagerConfig())

	assert.False(t, m.Init())
}

func TestManager_InitTrueAndLoadsCachedSlots(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(2)}
	store := newMemStore()
	loadTime := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	_ = store.PutRaw(slotName(0), encodeSlotRecord(fixedBlock(9), loadTime, 7, 48))

	m := NewManager([]Source{src}, store, &recordingSink{}, DefaultManagerConfig())
	require.True(t, m.Init())

	assert.Equal(t, fixedBlock(9), m.slots[0].data)
	assert.True(t, m.slots[0].loadTime.Equal(loadTime))
	assert.Equal(t, 7, m.slots[0].usageCount)
	assert.Equal(t, 48, m.slots[0].cursor)
}

func TestManager_InitSkipsCorruptRecord(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(2)}
	store := newMemStore()
	_ = store.PutRaw(slotName(0), fixedBlock(9)) // no trailer: malformed for this record type

	m := NewManager([]Source{src}, store, &recordingSink{}, DefaultManagerConfig())
	require.True(t, m.Init())

	assert.Empty(t, m.slots[0].data)
}

func TestManager_RefreshPersistsRestorableTrailer(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(4)}
	store := newMemStore()
	sink := &recordingSink{}

	cfg := DefaultManagerConfig()
	cfg.SeedsPerCycle = 1

	m := NewManager([]Source{src}, store, sink, cfg)
	require.True(t, m.Init())
	m.Inject(context.Background()) // all slots start empty, so this refreshes one

	raw, ok := store.GetRaw(slotName(0))
	if !ok {
		// the randomly chosen slot wasn't 0; fetch it to force a deterministic record.
		m.refreshSlot(context.Background(), 0)
		raw, ok = store.GetRaw(slotName(0))
	}
	require.True(t, ok)

	data, loadTime, usageCount, cursor, ok := decodeSlotRecord(raw)
	require.True(t, ok)
	assert.Equal(t, fixedBlock(4), data)
	assert.WithinDuration(t, time.Now(), loadTime, 5*time.Second)
	assert.Equal(t, 0, usageCount)
	assert.Equal(t, 0, cursor)
}

func TestManager_InjectFeedsSinkFromCachedSlot(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(3)}
	store := newMemStore()
	sink := &recordingSink{}

	cfg := DefaultManagerConfig()
	cfg.SeedsPerCycle = 8
	cfg.ExpectedUsage = 1_000_000 // effectively never forces a refresh once cached

	m := NewManager([]Source{src}, store, sink, cfg)
	require.True(t, m.Init())

	// pre-warm every slot so Inject doesn't need to fetch
	for i := 0; i < slotCount; i++ {
		m.slots[i] = slot{data: fixedBlock(byte(i)), loadTime: time.Now()}
	}

	m.Inject(context.Background())

	assert.Equal(t, 0, src.callCount())
	assert.Equal(t, 8, sink.count())
	for _, ev := range sink.events {
		assert.Len(t, ev, 16)
	}
}

func TestManager_InjectRefreshesExpiredSlot(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(5)}
	store := newMemStore()
	sink := &recordingSink{}

	cfg := DefaultManagerConfig()
	cfg.SeedsPerCycle = 1

	m := NewManager([]Source{src}, store, sink, cfg)
	require.True(t, m.Init())
	// all slots start empty/expired; Inject must fetch at least once.

	m.Inject(context.Background())

	assert.GreaterOrEqual(t, src.callCount(), 1)
}

func TestManager_FetchFillsAllEmptySlots(t *testing.T) {
	src := &staticSource{name: "ok", weight: 1, payload: fixedBlock(7)}
	store := newMemStore()
	sink := &recordingSink{}

	m := NewManager([]Source{src}, store, sink, DefaultManagerConfig())
	require.True(t, m.Init())

	err := m.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, slotCount, src.callCount())
	for i := 0; i < slotCount; i++ {
		assert.Equal(t, fixedBlock(7), m.slots[i].data)
	}
}

func TestManager_FetchAggregatesFailuresWithMultierror(t *testing.T) {
	src := &erroringStaticSource{name: "bad", weight: 1}
	m := NewManager([]Source{src}, newMemStore(), &recordingSink{}, DefaultManagerConfig())
	require.True(t, m.Init())

	err := m.Fetch(context.Background())
	require.Error(t, err)
}

type erroringStaticSource struct {
	name   string
	weight float64
}

func (s *erroringStaticSource) Name() string    { return s.name }
func (s *erroringStaticSource) Weight() float64 { return s.weight }
func (s *erroringStaticSource) Fetch(ctx context.Context) ([]byte, error) {
	return nil, &NetworkError{Source: s.name, Reason: "unreachable"}
}

func TestSlotName_Decimal(t *testing.T) {
	assert.Equal(t, "NetRandom.0", slotName(0))
	assert.Equal(t, "NetRandom.15", slotName(15))
	assert.Equal(t, "NetRandom.16", slotName(16))
	assert.Equal(t, "NetRandom.63", slotName(63))
}
