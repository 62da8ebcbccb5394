package builder

import (
	"context"

	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// BuildEndpoints is the Endpoint Primer (spec §4.E). It must run as the body
// of a single Retry.Run call so steps 1-4 commit together with whatever
// record scanning they do. It returns the interior interval still to build,
// or nil if there is none (empty record range, or a single-record range).
func BuildEndpoints(
	ctx context.Context,
	store recordstore.Store,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	rts recordstore.RecordTypeSet,
	limit int,
	m *Metrics,
) (*pk.Interval, error) {
	rs := rangeset.New(store.IndexRangeSubspace(index))
	tx := store.Transaction()

	if recordsRange.Begin.Compare(pk.NegInf) > 0 {
		if _, err := rs.Insert(ctx, tx, pk.NegInf, recordsRange.Begin); err != nil {
			return nil, err
		}
	}
	if recordsRange.End.Compare(pk.PosInf) < 0 {
		if _, err := rs.Insert(ctx, tx, recordsRange.End, pk.PosInf); err != nil {
			return nil, err
		}
	}

	firstCur := store.ScanRecords(ctx, recordsRange, nil, false)
	hasFirst, err := firstCur.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !hasFirst {
		if _, err := rs.Insert(ctx, tx, pk.NegInf, pk.PosInf); err != nil {
			return nil, err
		}
		return nil, nil
	}
	pLo := firstCur.Next().PK

	lastCur := store.ScanRecords(ctx, recordsRange, nil, true)
	hasLast, err := lastCur.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	pHi := pLo
	if hasLast {
		pHi = lastCur.Next().PK
	}

	if err := buildEndpointChunk(ctx, store, index, recordsRange, rs, rts, pk.NegInf, pLo.Successor(), limit, m); err != nil {
		return nil, err
	}

	if pLo.Equal(pHi) {
		// Single-record range: the lower-tail build above already scanned
		// and indexed p_lo. Extending the upper tail with another
		// BuildChunk over [p_hi, +inf) would scan — and apply the
		// maintainer to — that same record a second time, so here we only
		// extend the BRS bookkeeping, not the scan.
		if _, err := rs.Insert(ctx, store.Transaction(), pHi, pk.PosInf); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := buildEndpointChunk(ctx, store, index, recordsRange, rs, rts, pHi, pk.PosInf, limit, m); err != nil {
		return nil, err
	}
	return &pk.Interval{Begin: pLo, End: pHi}, nil
}

// buildEndpointChunk builds [begin,end) "as a normal chunk" (spec §4.E step
// 4) and registers it in the BRS. It first checks whether the BRS already
// covers [begin,end) entirely and, if so, does nothing: build_endpoints runs
// again every time build_index is called (spec §4.F step 1), and without
// this check a second run would rescan and reapply the maintainer to
// whatever record sits at a sentinel boundary, breaking the round-trip
// guarantee that a repeat build_index is a no-op (spec §8).
func buildEndpointChunk(
	ctx context.Context,
	store recordstore.Store,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	rs *rangeset.RangeSet,
	rts recordstore.RecordTypeSet,
	begin, end pk.Key,
	limit int,
	m *Metrics,
) error {
	tx := store.Transaction()
	anyMissing := false
	for _, err := range rs.Missing(ctx, tx, begin, end) {
		if err != nil {
			return err
		}
		anyMissing = true
		break
	}
	if !anyMissing {
		return nil
	}

	outcome, err := BuildChunk(ctx, store, index, recordsRange, pk.Interval{Begin: begin, End: end}, rts, limit, true, m)
	if err != nil {
		return err
	}
	realEnd := end
	if outcome.Kind == Partial {
		realEnd = outcome.Next
	}
	if _, err := rs.Insert(ctx, tx, begin, realEnd); err != nil {
		return err
	}
	return nil
}
