package textcoord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateCompare(t *testing.T) {
	assert.Equal(t, -1, Coordinate{Line: 1, Byte: 5}.Compare(Coordinate{Line: 2, Byte: 0}))
	assert.Equal(t, 1, Coordinate{Line: 2, Byte: 0}.Compare(Coordinate{Line: 1, Byte: 5}))
	assert.Equal(t, -1, Coordinate{Line: 1, Byte: 3}.Compare(Coordinate{Line: 1, Byte: 5}))
	assert.Equal(t, 1, Coordinate{Line: 1, Byte: 5}.Compare(Coordinate{Line: 1, Byte: 3}))
	assert.Equal(t, 0, Coordinate{Line: 1, Byte: 5}.Compare(Coordinate{Line: 1, Byte: 5}))
}

func TestCoordinateLess(t *testing.T) {
	a := Coordinate{Line: 1, Byte: 5}
	b := Coordinate{Line: 1, Byte: 6}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, a.LessEq(a))
	assert.True(t, a.LessEq(b))
	assert.False(t, b.LessEq(a))
}

func TestRangeIsRectified(t *testing.T) {
	r := Range{Start: Coordinate{Line: 1, Byte: 0}, End: Coordinate{Line: 2, Byte: 0}}
	assert.True(t, r.IsRectified())

	backwards := Range{Start: Coordinate{Line: 2, Byte: 0}, End: Coordinate{Line: 1, Byte: 0}}
	assert.False(t, backwards.IsRectified())
}

func TestRangeIsSingleLine(t *testing.T) {
	single := Range{Start: Coordinate{Line: 1, Byte: 0}, End: Coordinate{Line: 1, Byte: 5}}
	assert.True(t, single.IsSingleLine())

	multi := Range{Start: Coordinate{Line: 1, Byte: 0}, End: Coordinate{Line: 2, Byte: 5}}
	assert.False(t, multi.IsSingleLine())
}

func TestDocumentVersionAsLSPVersion(t *testing.T) {
	v := DocumentVersion(42)
	assert.Equal(t, int32(42), v.AsLSPVersion())
}

func TestDocumentVersionAsLSPVersionPanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { DocumentVersion(-1).AsLSPVersion() })
	assert.Panics(t, func() { DocumentVersion(1 << 32).AsLSPVersion() })
}

func TestCoordinateString(t *testing.T) {
	assert.Equal(t, "(3,7)", Coordinate{Line: 3, Byte: 7}.String())
}

func TestRangeString(t *testing.T) {
	r := Range{Start: Coordinate{Line: 1, Byte: 0}, End: Coordinate{Line: 2, Byte: 3}}
	assert.Equal(t, "(1,0)-(2,3)", r.String())
}
