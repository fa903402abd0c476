package diagstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/lspclient/internal/textcoord"
)

func rangeAt(line, startByte, endByte int) textcoord.Range {
	return textcoord.Range{
		Start: textcoord.Coordinate{Line: line, Byte: startByte},
		End:   textcoord.Coordinate{Line: line, Byte: endByte},
	}
}

func TestInsertAndGetDiagnosticAt(t *testing.T) {
	ds := New(5)
	_, err := ds.InsertDiagnostic(rangeAt(2, 3, 6), DiagnosticRecord{Severity: SeverityError, Message: "bad"})
	require.NoError(t, err)

	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 4})
	require.True(t, ok)
	assert.Equal(t, "bad", diag.Record.Message)

	_, ok = ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 9})
	assert.False(t, ok)
}

func TestGetDiagnosticAtPrefersSmallerDistanceFromStart(t *testing.T) {
	ds := New(5)
	// "wide" is the narrower-width range (100 bytes) but tc sits dead
	// center, 50 bytes from its start. "closeStart" is a much wider
	// range (9951 bytes) but tc sits only 1 byte past its start.
	// spec.md §4.F ranks by distance-from-start first, so "closeStart"
	// must win even though it is far wider than "wide".
	_, err := ds.InsertDiagnostic(rangeAt(0, 0, 100), DiagnosticRecord{Message: "wide"})
	require.NoError(t, err)
	_, err = ds.InsertDiagnostic(rangeAt(0, 49, 10000), DiagnosticRecord{Message: "closeStart"})
	require.NoError(t, err)

	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 0, Byte: 50})
	require.True(t, ok)
	assert.Equal(t, "closeStart", diag.Record.Message)
}

func TestOriginVersion(t *testing.T) {
	ds := New(3)
	_, ok := ds.OriginVersion()
	assert.False(t, ok)

	ds.SetOriginVersion(textcoord.DocumentVersion(7))
	v, ok := ds.OriginVersion()
	require.True(t, ok)
	assert.Equal(t, textcoord.DocumentVersion(7), v)
}

func TestClearKeepsShapeButRemovesDiagnostics(t *testing.T) {
	ds := New(5)
	_, err := ds.InsertDiagnostic(rangeAt(1, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.Clear()
	assert.Empty(t, ds.AllDiagnostics())
	assert.Equal(t, 5, ds.NumLines())
}

func TestClearEverythingResetsShape(t *testing.T) {
	ds := New(5)
	ds.SetOriginVersion(textcoord.DocumentVersion(1))
	_, err := ds.InsertDiagnostic(rangeAt(1, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.ClearEverything(2)
	assert.Equal(t, 2, ds.NumLines())
	assert.Empty(t, ds.AllDiagnostics())
	_, ok := ds.OriginVersion()
	assert.False(t, ok)
}

func TestInsertLinesShiftsDiagnosticDown(t *testing.T) {
	ds := New(5)
	_, err := ds.InsertDiagnostic(rangeAt(2, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.InsertLines(1, 1)

	_, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 0})
	assert.False(t, ok)
	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 3, Byte: 0})
	require.True(t, ok)
	assert.Equal(t, "x", diag.Record.Message)
}

func TestDeleteLinesShiftsDiagnosticUp(t *testing.T) {
	ds := New(5)
	_, err := ds.InsertDiagnostic(rangeAt(3, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.DeleteLines(1, 1)

	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 0})
	require.True(t, ok)
	assert.Equal(t, "x", diag.Record.Message)
}

func TestSetNumLinesAndConfineClampsRanges(t *testing.T) {
	ds := New(10)
	_, err := ds.InsertDiagnostic(rangeAt(8, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.SetNumLinesAndConfine(3)
	assert.Equal(t, 3, ds.NumLines())

	all := ds.AllDiagnostics()
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Range.Start.Line)
	assert.Equal(t, 2, all[0].Range.End.Line)
}

func TestGetAdjacentDiagnosticLocationWrapsAround(t *testing.T) {
	ds := New(10)
	_, err := ds.InsertDiagnostic(rangeAt(1, 0, 1), DiagnosticRecord{Message: "first"})
	require.NoError(t, err)
	_, err = ds.InsertDiagnostic(rangeAt(5, 0, 1), DiagnosticRecord{Message: "second"})
	require.NoError(t, err)

	next, ok := ds.GetAdjacentDiagnosticLocation(textcoord.Coordinate{Line: 5, Byte: 0}, true)
	require.True(t, ok)
	assert.Equal(t, 1, next.Line)

	prev, ok := ds.GetAdjacentDiagnosticLocation(textcoord.Coordinate{Line: 1, Byte: 0}, false)
	require.True(t, ok)
	assert.Equal(t, 5, prev.Line)
}

func TestGetAdjacentDiagnosticLocationEmptyStore(t *testing.T) {
	ds := New(10)
	_, ok := ds.GetAdjacentDiagnosticLocation(textcoord.Coordinate{Line: 0, Byte: 0}, true)
	assert.False(t, ok)
}

func TestObserveCallbacksTrackDocumentMutations(t *testing.T) {
	ds := New(5)
	_, err := ds.InsertDiagnostic(rangeAt(2, 0, 1), DiagnosticRecord{Message: "x"})
	require.NoError(t, err)

	ds.ObserveInsertLine(nil, 0)
	_, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 3, Byte: 0})
	assert.True(t, ok)

	ds.ObserveDeleteLine(nil, 0)
	_, ok = ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 0})
	assert.True(t, ok)
}
