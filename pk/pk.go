// Package pk models the primary-key sum type used throughout the online
// index builder: a key is either unbounded below, unbounded above, or a
// concrete byte string. Keys compare the way the teacher's OKey byte
// layout does — big-endian, lexicographic — so ordering survives the trip
// through the KV store.
package pk

import "bytes"

// Key is an ordered primary key. The zero Key is a concrete key with no
// bytes (equal to Bytes(nil)), not NegInf.
type Key struct {
	kind byteKind
	b    []byte
}

type byteKind int8

const (
	kindNegInf byteKind = -1
	kindBytes  byteKind = 0
	kindPosInf byteKind = 1
)

// NegInf sorts before every concrete key.
var NegInf = Key{kind: kindNegInf}

// PosInf sorts after every concrete key.
var PosInf = Key{kind: kindPosInf}

// Bytes wraps an already order-preserving-encoded tuple as a concrete Key.
// Callers are responsible for encoding multi-component tuples so that
// byte-lexicographic order matches the tuple's logical order (e.g. with
// binary.BigEndian, not LittleEndian).
func Bytes(b []byte) Key {
	return Key{kind: kindBytes, b: b}
}

// IsInf reports whether k is NegInf or PosInf.
func (k Key) IsInf() bool {
	return k.kind != kindBytes
}

// Raw returns the underlying bytes for a concrete key. It panics if k is
// unbounded; callers must check IsInf first.
func (k Key) Raw() []byte {
	if k.kind != kindBytes {
		panic("pk: Raw called on an unbounded key")
	}
	return k.b
}

// Compare returns -1, 0, or 1 as k is less than, equal to, or greater than
// other, with NegInf < any Bytes(...) < PosInf.
func (k Key) Compare(other Key) int {
	if k.kind != other.kind {
		if k.kind < other.kind {
			return -1
		}
		return 1
	}
	if k.kind != kindBytes {
		return 0
	}
	return bytes.Compare(k.b, other.b)
}

func (k Key) Less(other Key) bool   { return k.Compare(other) < 0 }
func (k Key) Equal(other Key) bool  { return k.Compare(other) == 0 }
func (k Key) LessEq(other Key) bool { return k.Compare(other) <= 0 }

// Successor returns the smallest key strictly greater than k among keys no
// real record PK can equal, used to turn an inclusive bound into the
// equivalent half-open one (spec §4.E's "build up to and including p_lo").
// It panics if k is unbounded.
func (k Key) Successor() Key {
	if k.kind != kindBytes {
		panic("pk: Successor called on an unbounded key")
	}
	return Key{kind: kindBytes, b: append(append([]byte{}, k.b...), 0x00)}
}

func (k Key) String() string {
	switch k.kind {
	case kindNegInf:
		return "-inf"
	case kindPosInf:
		return "+inf"
	default:
		return string(k.b)
	}
}

// Interval is a half-open primary-key range [Begin, End).
type Interval struct {
	Begin Key
	End   Key
}

// Empty reports whether the interval contains no keys.
func (iv Interval) Empty() bool {
	return !iv.Begin.Less(iv.End)
}

// Contains reports whether k falls within [Begin, End).
func (iv Interval) Contains(k Key) bool {
	return iv.Begin.LessEq(k) && k.Less(iv.End)
}

// Intersect returns the intersection of iv and other. The result may be
// Empty.
func (iv Interval) Intersect(other Interval) Interval {
	begin := iv.Begin
	if other.Begin.Compare(begin) > 0 {
		begin = other.Begin
	}
	end := iv.End
	if other.End.Compare(end) < 0 {
		end = other.End
	}
	return Interval{Begin: begin, End: end}
}

// Universe is the interval covering the entire key space.
var Universe = Interval{Begin: NegInf, End: PosInf}
