package pk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdering(t *testing.T) {
	a := Bytes([]byte{1})
	b := Bytes([]byte{2})

	assert.True(t, NegInf.Less(a))
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(PosInf))
	assert.True(t, NegInf.Less(PosInf))
	assert.False(t, PosInf.Less(NegInf))
	assert.True(t, a.Equal(Bytes([]byte{1})))
}

func TestIntervalIntersect(t *testing.T) {
	whole := Interval{Begin: Bytes([]byte{0}), End: Bytes([]byte{10})}
	other := Interval{Begin: Bytes([]byte{5}), End: PosInf}
	got := whole.Intersect(other)
	assert.Equal(t, Bytes([]byte{5}), got.Begin)
	assert.Equal(t, Bytes([]byte{10}), got.End)
}

func TestIntervalEmpty(t *testing.T) {
	assert.True(t, Interval{Begin: Bytes([]byte{5}), End: Bytes([]byte{5})}.Empty())
	assert.False(t, Universe.Empty())
}

func TestContains(t *testing.T) {
	iv := Interval{Begin: Bytes([]byte{1}), End: Bytes([]byte{3})}
	assert.False(t, iv.Contains(Bytes([]byte{0})))
	assert.True(t, iv.Contains(Bytes([]byte{1})))
	assert.True(t, iv.Contains(Bytes([]byte{2})))
	assert.False(t, iv.Contains(Bytes([]byte{3})))
}
