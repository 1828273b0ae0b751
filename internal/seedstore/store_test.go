// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package seedstore

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deterministicMasker replays a fixed alternating sequence, matching
// spec.md §8 scenario 5's "0x00,0xFF,0x00,0xFF,…" test mask.
type deterministicMasker struct{ toggle bool }

func (m *deterministicMasker) Get(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		if m.toggle {
			out[i] = 0xFF
		}
		m.toggle = !m.toggle
	}
	return out
}

func TestScramble_MatchesReferenceVector(t *testing.T) {
	t.Parallel()

	got := Scramble(&deterministicMasker{}, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 0xFD, 3, 0xFB}, got)
}

func TestScramble_DiffersForDifferentInputUnderSameMask(t *testing.T) {
	t.Parallel()

	a := Scramble(&deterministicMasker{}, []byte{1, 2, 3, 4})
	b := Scramble(&deterministicMasker{}, []byte{1, 2, 3, 5})
	assert.NotEqual(t, a, b)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seeds.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutRaw("k", []byte{1, 2, 3}))

	got, ok := store.GetRaw("k")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestStore_GetMissingKeyReportsNotOK(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seeds.db"))
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.GetRaw("absent")
	assert.False(t, ok)
}

func TestStore_RemoveDeletesEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seeds.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutRaw("k", []byte{9}))
	require.NoError(t, store.Remove("k"))

	_, ok := store.GetRaw("k")
	assert.False(t, ok)
}

func TestDecodeRecord_RejectsCorruptedChecksum(t *testing.T) {
	t.Parallel()

	raw := encodeRecord([]byte{1, 2})
	raw[0] ^= 0xFF // corrupt the length-prefixed data

	_, err := decodeRecord(raw)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestEncodeDecodeRecord_RoundTrips(t *testing.T) {
	t.Parallel()

	raw := encodeRecord([]byte{1, 2, 3})

	decoded, err := decodeRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, decoded)
}

func TestStore_CorruptedRecordIsRemovedAndReportedAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seeds.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutRaw("k", []byte{1, 2, 3}))

	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		raw := append([]byte(nil), b.Get([]byte("k"))...)
		raw[0] ^= 0xFF
		return b.Put([]byte("k"), raw)
	}))

	_, ok := store.GetRaw("k")
	assert.False(t, ok)

	_, stillThere := store.GetRaw("k")
	assert.False(t, stillThere, "corrupted record must be removed, not just reported absent once")
}
