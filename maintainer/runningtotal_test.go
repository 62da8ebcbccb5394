package maintainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/kv/memkv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

func amount(r *recordstore.Record) int64 {
	return int64(len(r.Value))
}

func TestRunningTotalAccumulates(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	key := []byte("total")

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		rt := NewRunningTotal(tx, key, amount)
		assert.NoError(t, rt.Update(ctx, nil, &recordstore.Record{PK: pk.Bytes([]byte{1}), Value: []byte("ab")}))
		assert.NoError(t, rt.Update(ctx, nil, &recordstore.Record{PK: pk.Bytes([]byte{2}), Value: []byte("abcd")}))
		assert.Equal(t, int64(6), rt.Value())
		return nil
	})
	assert.NoError(t, err)
}

func TestRunningTotalDoubleApplicationDoubleCounts(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	key := []byte("total")

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		rt := NewRunningTotal(tx, key, amount)
		rec := &recordstore.Record{PK: pk.Bytes([]byte{1}), Value: []byte("ab")}
		assert.NoError(t, rt.Update(ctx, nil, rec))
		assert.NoError(t, rt.Update(ctx, nil, rec))
		// Deliberately wrong if applied twice: this is exactly the failure
		// mode the single-application invariant (spec §8 invariant 1) rules
		// out for the builder's own call sites.
		assert.Equal(t, int64(4), rt.Value())
		return nil
	})
	assert.NoError(t, err)
}
