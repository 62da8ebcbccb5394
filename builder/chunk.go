package builder

import (
	"context"

	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// OutcomeKind distinguishes the three ways a chunk can end (spec §3 Chunk
// Outcome).
type OutcomeKind int

const (
	Complete OutcomeKind = iota
	Partial
	Empty
)

// Outcome is the result of one BuildChunk call.
type Outcome struct {
	Kind OutcomeKind
	// Next is the resume PK when Kind == Partial; the zero Key otherwise.
	Next pk.Key
}

// BuildChunk scans interval ∩ recordsRange within the caller's transaction
// (via store, already opened on that transaction) and applies the index
// maintainer to every record whose type is in rts (spec §4.B).
//
// If respectLimit, at most limit rows are consumed from the cursor before
// it stops early; BuildChunk then opens a second, one-row cursor continuing
// from the first cursor's continuation to find the PK of the next record,
// which becomes Outcome.Next. Two separate cursors, not a single capped
// Scan call, because recordstore.RecordCursor has no notion of a row cap of
// its own — only BuildChunk enforces one.
func BuildChunk(
	ctx context.Context,
	store recordstore.Store,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	interval pk.Interval,
	rts recordstore.RecordTypeSet,
	limit int,
	respectLimit bool,
	metrics *Metrics,
) (Outcome, error) {
	scanInterval := interval.Intersect(recordsRange)
	if scanInterval.Empty() {
		return Outcome{Kind: Empty}, nil
	}

	maintainer, err := store.IndexMaintainer(index)
	if err != nil {
		return Outcome{}, err
	}

	cur := store.ScanRecords(ctx, scanInterval, nil, false)

	count := 0
	seenAny := false
	reachedLimit := false
	var lastContinuation []byte

	for {
		if respectLimit && count >= limit {
			reachedLimit = true
			break
		}
		has, err := cur.HasNext(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if !has {
			break
		}

		rec := cur.Next()
		seenAny = true
		lastContinuation = cur.Continuation()
		metrics.ScannedInc()
		count++

		if rts == nil || rts.Has(rec.Type) {
			// Sequential, not pipelined — the ordering requirement in
			// spec §4.B: some maintainers have internal ordering
			// dependencies that break under concurrent application.
			if err := maintainer.Update(ctx, nil, &rec); err != nil {
				return Outcome{}, err
			}
			metrics.IndexedInc()
		}
	}

	if !seenAny {
		return Outcome{Kind: Empty}, nil
	}
	if !reachedLimit {
		return Outcome{Kind: Complete}, nil
	}

	peek := store.ScanRecords(ctx, scanInterval, lastContinuation, false)
	has, err := peek.HasNext(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !has {
		return Outcome{Kind: Complete}, nil
	}
	next := peek.Next()
	return Outcome{Kind: Partial, Next: next.PK}, nil
}
