package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
	"github.com/drpcorg/onlinebuild/recordstore"
)

func TestBuildEndpointsEmptyRecordRange(t *testing.T) {
	kvStore, _, opener, m := newFixture(nil)
	ctx := context.Background()
	index := recordstore.IndexIdentity{Name: "idx1"}

	var interior *pk.Interval
	err := kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		iv, err := BuildEndpoints(ctx, store, index, pk.Universe, nil, 100, NewMetrics("idx1"))
		interior = iv
		return err
	})
	assert.NoError(t, err)
	assert.Nil(t, interior)
	assert.Empty(t, m.calls)

	err = kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		rs := rangeset.New(store.IndexRangeSubspace(index))
		for ivl, err := range rs.Missing(ctx, tx, pk.NegInf, pk.PosInf) {
			assert.NoError(t, err)
			t.Fatalf("unexpected missing interval %v", ivl)
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestBuildEndpointsSingleRecordRangeHasNoInterior(t *testing.T) {
	kvStore, _, opener, m := newFixture(makeRecords(1))
	ctx := context.Background()
	index := recordstore.IndexIdentity{Name: "idx1"}

	var interior *pk.Interval
	err := kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		iv, err := BuildEndpoints(ctx, store, index, pk.Universe, nil, 100, NewMetrics("idx1"))
		interior = iv
		return err
	})
	assert.NoError(t, err)
	assert.Nil(t, interior)
	assert.Len(t, m.calls, 1, "the single record is indexed as part of priming the lower sentinel region")
}

func TestBuildEndpointsMultiRecordRangeReturnsInterior(t *testing.T) {
	kvStore, _, opener, m := newFixture(makeRecords(10))
	ctx := context.Background()
	index := recordstore.IndexIdentity{Name: "idx1"}

	var interior *pk.Interval
	err := kvStore.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		store, err := opener.Open(ctx, tx)
		assert.NoError(t, err)
		iv, err := BuildEndpoints(ctx, store, index, pk.Universe, nil, 100, NewMetrics("idx1"))
		interior = iv
		return err
	})
	assert.NoError(t, err)
	assert.NotNil(t, interior)
	assert.True(t, interior.Begin.Equal(pkBytes(1)))
	assert.True(t, interior.End.Equal(pkBytes(10)))
	// first and last record already primed.
	assert.Len(t, m.calls, 2)
}
