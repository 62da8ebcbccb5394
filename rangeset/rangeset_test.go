package rangeset

import (
	"context"
	"testing"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/kv/memkv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/stretchr/testify/assert"
)

func key(b byte) pk.Key { return pk.Bytes([]byte{b}) }

func collectMissing(t *testing.T, rs *RangeSet, tx kv.Transaction, begin, end pk.Key) []pk.Interval {
	var out []pk.Interval
	for ivl, err := range rs.Missing(context.Background(), tx, begin, end) {
		assert.NoError(t, err)
		out = append(out, ivl)
	}
	return out
}

func TestMissingOnEmptySet(t *testing.T) {
	store := memkv.New()
	rs := New([]byte("idx1"))
	err := store.Run(context.Background(), kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		got := collectMissing(t, rs, tx, pk.NegInf, pk.PosInf)
		assert.Equal(t, []pk.Interval{{Begin: pk.NegInf, End: pk.PosInf}}, got)
		return nil
	})
	assert.NoError(t, err)
}

func TestInsertThenFullyCovered(t *testing.T) {
	store := memkv.New()
	rs := New([]byte("idx1"))
	ctx := context.Background()

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		changed, err := rs.Insert(ctx, tx, pk.NegInf, pk.PosInf)
		assert.NoError(t, err)
		assert.True(t, changed)
		return nil
	})
	assert.NoError(t, err)

	err = store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		got := collectMissing(t, rs, tx, pk.NegInf, pk.PosInf)
		assert.Empty(t, got)
		changed, err := rs.Insert(ctx, tx, pk.NegInf, pk.PosInf)
		assert.NoError(t, err)
		assert.False(t, changed, "already fully covered insert must be a no-op")
		return nil
	})
	assert.NoError(t, err)
}

func TestInsertMergesAdjacentAndOverlapping(t *testing.T) {
	store := memkv.New()
	rs := New([]byte("idx1"))
	ctx := context.Background()

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		changed, err := rs.Insert(ctx, tx, key(1), key(3))
		assert.NoError(t, err)
		assert.True(t, changed)

		changed, err = rs.Insert(ctx, tx, key(5), key(7))
		assert.NoError(t, err)
		assert.True(t, changed)

		// touches [1,3) on the right and [5,7) on the left: should merge
		// into a single [1,7) entry.
		changed, err = rs.Insert(ctx, tx, key(3), key(5))
		assert.NoError(t, err)
		assert.True(t, changed)

		got := collectMissing(t, rs, tx, key(0), key(9))
		assert.Equal(t, []pk.Interval{
			{Begin: key(0), End: key(1)},
			{Begin: key(7), End: key(9)},
		}, got)
		return nil
	})
	assert.NoError(t, err)
}

func TestMissingAroundGap(t *testing.T) {
	store := memkv.New()
	rs := New([]byte("idx1"))
	ctx := context.Background()

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		_, err := rs.Insert(ctx, tx, pk.NegInf, key(10))
		assert.NoError(t, err)
		_, err = rs.Insert(ctx, tx, key(20), pk.PosInf)
		assert.NoError(t, err)

		got := collectMissing(t, rs, tx, pk.NegInf, pk.PosInf)
		assert.Equal(t, []pk.Interval{{Begin: key(10), End: key(20)}}, got)
		return nil
	})
	assert.NoError(t, err)
}

func TestClearRemovesAllEntries(t *testing.T) {
	store := memkv.New()
	rs := New([]byte("idx1"))
	ctx := context.Background()

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		_, err := rs.Insert(ctx, tx, pk.NegInf, pk.PosInf)
		assert.NoError(t, err)
		rs.Clear(tx)
		got := collectMissing(t, rs, tx, pk.NegInf, pk.PosInf)
		assert.Equal(t, []pk.Interval{{Begin: pk.NegInf, End: pk.PosInf}}, got)
		return nil
	})
	assert.NoError(t, err)
}

func TestNonOverlapInvariantAcrossSubspaces(t *testing.T) {
	store := memkv.New()
	rsA := New([]byte("idxA"))
	rsB := New([]byte("idxB"))
	ctx := context.Background()

	err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		_, err := rsA.Insert(ctx, tx, pk.NegInf, pk.PosInf)
		assert.NoError(t, err)
		got := collectMissing(t, rsB, tx, pk.NegInf, pk.PosInf)
		assert.Equal(t, []pk.Interval{{Begin: pk.NegInf, End: pk.PosInf}}, got, "index B's BRS must be unaffected by index A's inserts")
		return nil
	})
	assert.NoError(t, err)
}
