// Package maintainer ships two concrete recordstore.Maintainer
// implementations used to exercise the builder end to end: a unique-value
// hash index (idempotent) and a running total (not). Grounded on the
// teacher's IndexManager hash-index machinery and AtomicCounter.
package maintainer

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// HashIndex maps a record's value bytes to its PK under one KV subspace,
// keyed by xxhash of the value (teacher's GetByHash/addHashIndex scheme).
// Re-applying Update for the same record is harmless: the mapping it writes
// is a function of the record alone, so repeating the write changes
// nothing — unlike RunningTotal, it tolerates at-least-once application.
type HashIndex struct {
	tx       kv.Transaction
	subspace []byte
	cache    *lru.Cache[string, pk.Key]
}

// NewHashIndex binds a HashIndex to tx and subspace, with an in-process
// lookup cache sized cacheSize (teacher's hashIndexCache is 100000).
func NewHashIndex(tx kv.Transaction, subspace []byte, cacheSize int) (*HashIndex, error) {
	cache, err := lru.New[string, pk.Key](cacheSize)
	if err != nil {
		return nil, err
	}
	return &HashIndex{tx: tx, subspace: subspace, cache: cache}, nil
}

func (h *HashIndex) hashKey(hash uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, h.subspace...), hash)
}

// Update implements recordstore.Maintainer. old is unused: a hash index has
// no ordering dependency between records, so there's nothing to reconcile
// beyond writing the new mapping.
func (h *HashIndex) Update(ctx context.Context, old, new *recordstore.Record) error {
	if new == nil {
		return nil
	}
	hash := xxhash.Sum64(new.Value)
	h.tx.Set(h.hashKey(hash), new.PK.Raw())
	h.cache.Add(string(new.Value), new.PK)
	return nil
}

// Lookup resolves value to the PK of the record that produced it, if any,
// checking the cache before the KV store.
func (h *HashIndex) Lookup(value []byte) (pk.Key, bool) {
	if k, ok := h.cache.Get(string(value)); ok {
		return k, true
	}
	b, err := h.tx.Get(h.hashKey(xxhash.Sum64(value)))
	if err != nil {
		return pk.Key{}, false
	}
	return pk.Bytes(b), true
}
