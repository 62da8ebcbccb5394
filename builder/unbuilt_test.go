package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

func TestBuildUnbuiltBuildsAndRecordsInBRS(t *testing.T) {
	kvStore, _, opener, m := newFixture(makeRecords(250))
	ctx := context.Background()
	index := recordstore.IndexIdentity{Name: "idx1"}

	var realEnd pk.Key
	err := kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		re, err := BuildUnbuilt(ctx, store, index, pk.Universe, nil, pkBytes(1), pkBytes(201), 100, NewMetrics("idx1"))
		realEnd = re
		return err
	})
	assert.NoError(t, err)
	assert.True(t, realEnd.Equal(pkBytes(101)), "chunk capped at limit=100 starting from record 1")
	assert.Len(t, m.calls, 100)
}

func TestBuildUnbuiltSecondCallIsRangeAlreadyBuilt(t *testing.T) {
	kvStore, _, opener, _ := newFixture(makeRecords(10))
	ctx := context.Background()
	index := recordstore.IndexIdentity{Name: "idx1"}

	err := kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		_, err = BuildUnbuilt(ctx, store, index, pk.Universe, nil, pkBytes(1), pkBytes(11), 100, NewMetrics("idx1"))
		return err
	})
	assert.NoError(t, err)

	err = kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		_, err = BuildUnbuilt(ctx, store, index, pk.Universe, nil, pkBytes(1), pkBytes(11), 100, NewMetrics("idx1"))
		return err
	})
	rb, ok := IsRangeAlreadyBuilt(err)
	assert.True(t, ok)
	assert.True(t, rb.Begin.Equal(pkBytes(1)))
}
