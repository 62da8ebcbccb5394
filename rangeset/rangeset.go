// Package rangeset implements the Built-Range Set (spec §4.A): a
// persistent interval set recording which primary-key ranges an index
// build has already processed. It is the sole coordination point between
// concurrent builders (spec §5) — every mutation happens inside the
// caller's KV transaction, so the non-overlap and merge invariants hold at
// every commit boundary.
//
// Entries are stored as key=begin, value=end under a caller-supplied
// subspace, following the teacher's own habit (IndexManager's "IF"/"IH"
// key schemes in index_manager.go) of building simple, order-preserving
// byte keys directly rather than through a generic tuple codec.
package rangeset

import (
	"context"
	"iter"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
)

// RangeSet is a BRS bound to one subspace (spec §6: index_range_subspace).
type RangeSet struct {
	subspace []byte
}

// New binds a RangeSet to the given subspace prefix. Distinct indexes must
// use distinct, non-overlapping subspaces.
func New(subspace []byte) *RangeSet {
	return &RangeSet{subspace: append([]byte{}, subspace...)}
}

// Sentinel bytes from spec §3/§6: 0x00 encodes "unbounded below", 0xff
// encodes "unbounded above". Concrete keys are distinguished from both by
// a 0x01 prefix, which keeps lexicographic order intact (0x00 < 0x01... <
// 0xff) without requiring any assumption about what bytes a concrete PK
// encoding may start with.
const (
	sentinelNegInf byte = 0x00
	sentinelMiddle byte = 0x01
	sentinelPosInf byte = 0xff
)

func encodeKey(k pk.Key) []byte {
	if k.Equal(pk.NegInf) {
		return []byte{sentinelNegInf}
	}
	if k.Equal(pk.PosInf) {
		return []byte{sentinelPosInf}
	}
	raw := k.Raw()
	out := make([]byte, 0, len(raw)+1)
	out = append(out, sentinelMiddle)
	return append(out, raw...)
}

func decodeKey(b []byte) pk.Key {
	if len(b) == 1 && b[0] == sentinelNegInf {
		return pk.NegInf
	}
	if len(b) == 1 && b[0] == sentinelPosInf {
		return pk.PosInf
	}
	return pk.Bytes(append([]byte{}, b[1:]...))
}

func (rs *RangeSet) fullKey(k pk.Key) []byte {
	return append(append([]byte{}, rs.subspace...), encodeKey(k)...)
}

func prefixSuccessor(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0xff)
}

// lastEntryBefore returns the entry with the greatest key strictly less
// than upperExclusive, if any.
func (rs *RangeSet) lastEntryBefore(ctx context.Context, tx kv.Transaction, upperExclusive []byte) (kv.Row, bool, error) {
	c := tx.Scan(rs.subspace, upperExclusive, nil, true)
	has, err := c.HasNext(ctx)
	if err != nil {
		return kv.Row{}, false, err
	}
	if !has {
		return kv.Row{}, false, nil
	}
	return c.Next(), true, nil
}

// Missing yields the complement of the BRS within [begin, end) as disjoint
// intervals in ascending order (spec §4.A).
func (rs *RangeSet) Missing(ctx context.Context, tx kv.Transaction, begin, end pk.Key) iter.Seq2[pk.Interval, error] {
	return func(yield func(pk.Interval, error) bool) {
		if !begin.Less(end) {
			return
		}
		cursor := begin
		bFull := rs.fullKey(begin)

		predRow, ok, err := rs.lastEntryBefore(ctx, tx, bFull)
		if err != nil {
			yield(pk.Interval{}, err)
			return
		}
		if ok {
			predEnd := decodeKey(predRow.Value)
			if cursor.Less(predEnd) {
				cursor = predEnd
			}
			if !cursor.Less(end) {
				return
			}
		}

		c := tx.Scan(bFull, prefixSuccessor(rs.subspace), nil, false)
		for {
			has, err := c.HasNext(ctx)
			if err != nil {
				yield(pk.Interval{}, err)
				return
			}
			if !has {
				break
			}
			row := c.Next()
			entryBegin := decodeKey(row.Key[len(rs.subspace):])
			if entryBegin.Compare(end) > 0 {
				break
			}
			if cursor.Less(entryBegin) {
				if !yield(pk.Interval{Begin: cursor, End: entryBegin}, nil) {
					return
				}
			}
			entryEnd := decodeKey(row.Value)
			if cursor.Less(entryEnd) {
				cursor = entryEnd
			}
			if !cursor.Less(end) {
				return
			}
		}

		if cursor.Less(end) {
			yield(pk.Interval{Begin: cursor, End: end}, nil)
		}
	}
}

type overlapEntry struct {
	key   []byte
	begin pk.Key
	end   pk.Key
}

// Insert adds [begin, end) to the BRS, merging with any adjacent or
// overlapping entries (spec §4.A merge invariant). It returns true iff the
// interval was not already fully covered.
func (rs *RangeSet) Insert(ctx context.Context, tx kv.Transaction, begin, end pk.Key) (bool, error) {
	if !begin.Less(end) {
		return false, nil
	}
	bFull := rs.fullKey(begin)

	var overlapping []overlapEntry

	predRow, ok, err := rs.lastEntryBefore(ctx, tx, bFull)
	if err != nil {
		return false, err
	}
	if ok {
		predBegin := decodeKey(predRow.Key[len(rs.subspace):])
		predEnd := decodeKey(predRow.Value)
		if !predEnd.Less(begin) {
			overlapping = append(overlapping, overlapEntry{key: predRow.Key, begin: predBegin, end: predEnd})
		}
	}

	cur := tx.Scan(bFull, prefixSuccessor(rs.subspace), nil, false)
	for {
		has, err := cur.HasNext(ctx)
		if err != nil {
			return false, err
		}
		if !has {
			break
		}
		row := cur.Next()
		entryBegin := decodeKey(row.Key[len(rs.subspace):])
		if entryBegin.Compare(end) > 0 {
			break
		}
		entryEnd := decodeKey(row.Value)
		overlapping = append(overlapping, overlapEntry{
			key:   append([]byte{}, row.Key...),
			begin: entryBegin,
			end:   entryEnd,
		})
	}

	if len(overlapping) == 0 {
		tx.Set(rs.fullKey(begin), encodeKey(end))
		return true, nil
	}

	if len(overlapping) == 1 {
		e := overlapping[0]
		if e.begin.Compare(begin) <= 0 && e.end.Compare(end) >= 0 {
			return false, nil
		}
	}

	newBegin, newEnd := begin, end
	for _, e := range overlapping {
		if e.begin.Less(newBegin) {
			newBegin = e.begin
		}
		if e.end.Compare(newEnd) > 0 {
			newEnd = e.end
		}
		tx.Clear(e.key)
	}
	tx.Set(rs.fullKey(newBegin), encodeKey(newEnd))
	return true, nil
}

// Clear removes all BRS entries (used only by the single-transaction
// Rebuild path, spec §4.G).
func (rs *RangeSet) Clear(tx kv.Transaction) {
	tx.ClearRange(rs.subspace, prefixSuccessor(rs.subspace))
}
