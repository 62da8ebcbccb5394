package builder

import (
	"context"
	"encoding/binary"

	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// countingMaintainer records how many times Update was called per PK, so
// tests can assert the single-application invariant (spec §8 invariant 1)
// directly rather than through a maintainer whose own state could mask a
// double-application.
type countingMaintainer struct {
	calls map[string]int
}

func newCountingMaintainer() *countingMaintainer {
	return &countingMaintainer{calls: map[string]int{}}
}

func (m *countingMaintainer) Update(ctx context.Context, old, new *recordstore.Record) error {
	if new != nil {
		m.calls[string(new.PK.Raw())]++
	}
	return nil
}

func pkBytes(i int) pk.Key {
	return pk.Bytes(binary.BigEndian.AppendUint32(nil, uint32(i)))
}

func makeRecords(n int, types ...recordstore.RecordType) []recordstore.Record {
	recs := make([]recordstore.Record, n)
	for i := 0; i < n; i++ {
		typ := recordstore.RecordType(1)
		if len(types) > 0 {
			typ = types[i%len(types)]
		}
		recs[i] = recordstore.Record{
			PK:    pkBytes(i + 1),
			Type:  typ,
			Value: []byte("v"),
		}
	}
	return recs
}
