// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package seedstore implements the persistent seed storage of
// spec.md §4.12: a transactional key→bytes store (backed by
// go.etcd.io/bbolt) exposing the abstract get_raw/put_raw/remove
// operations, a standalone scrambler usable by any caller (Fortuna's
// write-back path, C14's network sources), and a scheduled write-back
// queue with growing backoff between flushes.
package seedstore

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("seeds")

// ErrChecksumMismatch indicates a persisted record's CRC32 checksum does
// not match its contents, per spec.md §4.12's "must checksum on disk".
var ErrChecksumMismatch = errors.New("seedstore: checksum mismatch")

// Masker supplies the fresh random bytes the scrambler XORs into the
// data it is given. In production this is the system-RNG multiplexer
// (or, before it is ready, the instant-entropy bootstrap source).
type Masker interface {
	Get(n int) []byte
}

// Scramble implements spec.md §4.12's scramble(data) → data: XOR data
// with a fresh random mask of the same length drawn from masker. The
// mask is never returned or retained — per spec.md's rationale, the
// persisted form therefore never matches the bytes any caller actually
// uses, and disclosure of the on-disk seed file alone cannot disclose
// them. Scrambling is one-way by design: it is not meant to be undone,
// only to preserve entropy while changing the bit pattern (§4.12, §8
// property 5).
func Scramble(masker Masker, data []byte) []byte {
	mask := masker.Get(len(data))
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ mask[i]
	}
	return out
}

// Store is a scoped acquisition of the persistent seed-storage session,
// per spec.md §4.12: all gets/puts through one Store share the one bbolt
// transaction model, and Close must be called on every exit path.
//
// Store's GetRaw/PutRaw/Remove are the abstract get_raw/put_raw/remove
// operations of §4.12: a plain checksummed key→bytes map. They do not
// scramble — scrambling is a separate concern callers apply themselves
// (see Scramble) before handing data to PutRaw, exactly as §4.14
// describes network sources always scrambling their fetched block
// "before handing them to C13" rather than storage doing it implicitly.
type Store struct {
	db *bolt.DB
}

// Open returns a Store backed by the bbolt file at path, creating the
// seeds bucket if it does not already exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file, closing it atomically;
// callers must invoke this on every exit path, per spec.md §4.12.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetRaw returns the stored bytes for name, or ok=false if absent or if
// the stored record fails its checksum (treated as absent: a corrupted
// seed record is removed and the caller receives absent, per spec.md
// §7's "Corruption" error kind).
func (s *Store) GetRaw(name string) (data []byte, ok bool) {
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(name)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return nil, false
	}

	data, err := decodeRecord(raw)
	if err != nil {
		_ = s.Remove(name)
		return nil, false
	}

	return data, true
}

// PutRaw stores data under name as a checksummed record.
func (s *Store) PutRaw(name string, data []byte) error {
	raw := encodeRecord(data)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(name), raw)
	})
}

// Remove deletes name from the store; it is not an error if name is
// absent.
func (s *Store) Remove(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Delete([]byte(name))
	})
}

// encodeRecord implements spec.md §4.12's wire layout (the name itself
// is the bbolt key, so only the length-prefixed payload and its
// checksum are encoded here):
//
//	u16_be(len(data)) ∥ data ∥ u32_be(crc32(len(data) ∥ data))
func encodeRecord(data []byte) []byte {
	out := make([]byte, 0, 2+len(data)+4)

	var dataLen [2]byte
	binary.BigEndian.PutUint16(dataLen[:], uint16(len(data)))
	out = append(out, dataLen[:]...)
	out = append(out, data...)

	sum := crc32.ChecksumIEEE(out)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	out = append(out, sumBuf[:]...)

	return out
}

func decodeRecord(raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, ErrChecksumMismatch
	}

	body := raw[:len(raw)-4]
	wantSum := binary.BigEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return nil, ErrChecksumMismatch
	}

	if len(body) < 2 {
		return nil, ErrChecksumMismatch
	}
	dataLen := int(binary.BigEndian.Uint16(body[:2]))
	body = body[2:]
	if len(body) != dataLen {
		return nil, ErrChecksumMismatch
	}

	return append([]byte(nil), body...), nil
}
