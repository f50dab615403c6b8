// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lsh

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	metaBucket = []byte("meta")
	metaKey    = []byte("index")
)

// ErrSnapshotMismatch reports a snapshot built with different parameters
// than the caller expects.
var ErrSnapshotMismatch = errors.New("lsh: snapshot parameters do not match")

type snapshotMeta struct {
	Meta        Meta   `json:"meta"`
	Size        int    `json:"size"`
	Skipped     int    `json:"skipped"`
	Fingerprint uint64 `json:"fingerprint"`
}

func bandBucket(i int) []byte {
	return []byte(fmt.Sprintf("band-%04d", i))
}

// Save writes the index buckets to a bbolt file at path, replacing any
// previous snapshot. The file is written to a temporary path and renamed.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	os.Remove(tmpPath)

	db, err := bolt.Open(tmpPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}

	writeErr := db.Update(func(tx *bolt.Tx) error {
		mb, err := tx.CreateBucket(metaBucket)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(snapshotMeta{Meta: idx.meta, Size: idx.size, Skipped: idx.skipped, Fingerprint: idx.fingerprint})
		if err != nil {
			return err
		}
		if err := mb.Put(metaKey, payload); err != nil {
			return err
		}

		var k [8]byte
		for i, bucket := range idx.buckets {
			bb, err := tx.CreateBucket(bandBucket(i))
			if err != nil {
				return err
			}
			for h, keys := range bucket {
				binary.BigEndian.PutUint64(k[:], h)
				if err := bb.Put(k[:], packKeys(keys)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	closeErr := db.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save. The stored num_perm, seed and
// threshold must equal want's; Params in want are ignored.
func Load(path string, want Meta) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer db.Close()

	var idx *Index
	err = db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		if mb == nil {
			return fmt.Errorf("snapshot has no meta bucket")
		}
		var sm snapshotMeta
		if err := json.Unmarshal(mb.Get(metaKey), &sm); err != nil {
			return fmt.Errorf("decoding snapshot meta: %w", err)
		}
		got := sm.Meta
		if got.NumPerm != want.NumPerm || got.Seed != want.Seed || got.Threshold != want.Threshold {
			return fmt.Errorf("%w: have num_perm=%d seed=%d threshold=%v, want num_perm=%d seed=%d threshold=%v",
				ErrSnapshotMismatch, got.NumPerm, got.Seed, got.Threshold, want.NumPerm, want.Seed, want.Threshold)
		}

		b := newBuilder(got)
		for i := range b.buckets {
			bb := tx.Bucket(bandBucket(i))
			if bb == nil {
				return fmt.Errorf("snapshot missing band %d", i)
			}
			err := bb.ForEach(func(k, v []byte) error {
				if len(k) != 8 || len(v)%4 != 0 {
					return fmt.Errorf("corrupt entry in band %d", i)
				}
				b.buckets[i][binary.BigEndian.Uint64(k)] = unpackKeys(v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		b.size, b.skipped = sm.Size, sm.Skipped
		idx = b.Finalize()
		idx.fingerprint = sm.Fingerprint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func packKeys(keys []Key) []byte {
	out := make([]byte, 4*len(keys))
	for i, k := range keys {
		binary.LittleEndian.PutUint32(out[4*i:], k)
	}
	return out
}

// unpackKeys copies v; bbolt memory is only valid inside the transaction.
func unpackKeys(v []byte) []Key {
	keys := make([]Key, len(v)/4)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint32(v[4*i:])
	}
	return keys
}
