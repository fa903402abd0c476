package changerec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/lspclient/internal/diagstore"
	"github.com/conduit-lang/lspclient/internal/textcoord"
	"github.com/conduit-lang/lspclient/internal/textdoc"
)

func TestBeginTrackingAndIsTracking(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a", "b"})
	r := New(doc)
	doc.AddObserver(r)

	assert.False(t, r.TrackingSomething())
	r.BeginTracking(textcoord.DocumentVersion(1), doc.NumLines())
	assert.True(t, r.TrackingSomething())
	assert.True(t, r.IsTracking(textcoord.DocumentVersion(1)))
	assert.False(t, r.IsTracking(textcoord.DocumentVersion(2)))

	n, ok := r.NumLinesAtVersion(textcoord.DocumentVersion(1))
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestApplyChangesToDiagnosticsReplaysInsertLine(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a", "b", "c"})
	r := New(doc)
	doc.AddObserver(r)
	r.BeginTracking(textcoord.DocumentVersion(1), doc.NumLines())

	doc.InsertLine(1)

	ds := diagstore.New(3)
	ds.SetOriginVersion(textcoord.DocumentVersion(1))
	_, err := ds.InsertDiagnostic(
		textcoord.Range{Start: textcoord.Coordinate{Line: 2, Byte: 0}, End: textcoord.Coordinate{Line: 2, Byte: 1}},
		diagstore.DiagnosticRecord{Message: "x"},
	)
	require.NoError(t, err)

	require.NoError(t, r.ApplyChangesToDiagnostics(ds))

	_, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 0})
	assert.False(t, ok)
	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 3, Byte: 0})
	require.True(t, ok)
	assert.Equal(t, "x", diag.Record.Message)
}

func TestApplyChangesToDiagnosticsChainsAcrossVersions(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a", "b", "c"})
	r := New(doc)
	doc.AddObserver(r)

	r.BeginTracking(textcoord.DocumentVersion(1), doc.NumLines())
	doc.InsertLine(0)
	r.BeginTracking(textcoord.DocumentVersion(2), doc.NumLines())
	doc.InsertLine(0)

	ds := diagstore.New(3)
	ds.SetOriginVersion(textcoord.DocumentVersion(1))
	_, err := ds.InsertDiagnostic(
		textcoord.Range{Start: textcoord.Coordinate{Line: 0, Byte: 0}, End: textcoord.Coordinate{Line: 0, Byte: 1}},
		diagstore.DiagnosticRecord{Message: "x"},
	)
	require.NoError(t, err)

	require.NoError(t, r.ApplyChangesToDiagnostics(ds))

	diag, ok := ds.GetDiagnosticAt(textcoord.Coordinate{Line: 2, Byte: 0})
	require.True(t, ok)
	assert.Equal(t, "x", diag.Record.Message)
}

func TestApplyChangesToDiagnosticsDiscardsOlderVersions(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a"})
	r := New(doc)
	doc.AddObserver(r)

	r.BeginTracking(textcoord.DocumentVersion(1), doc.NumLines())
	r.BeginTracking(textcoord.DocumentVersion(2), doc.NumLines())

	ds := diagstore.New(1)
	ds.SetOriginVersion(textcoord.DocumentVersion(2))

	require.NoError(t, r.ApplyChangesToDiagnostics(ds))
	assert.False(t, r.IsTracking(textcoord.DocumentVersion(1)))
	assert.False(t, r.IsTracking(textcoord.DocumentVersion(2)))
}

func TestApplyChangesToDiagnosticsErrorsOnUnknownOrigin(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a"})
	r := New(doc)

	ds := diagstore.New(1)
	err := r.ApplyChangesToDiagnostics(ds)
	assert.Error(t, err)

	ds.SetOriginVersion(textcoord.DocumentVersion(9))
	err = r.ApplyChangesToDiagnostics(ds)
	assert.Error(t, err)
}

func TestTotalChangeObservationDiscardsDiagnostics(t *testing.T) {
	doc := textdoc.NewFromLines([]string{"a", "b"})
	r := New(doc)
	doc.AddObserver(r)
	r.BeginTracking(textcoord.DocumentVersion(1), doc.NumLines())

	doc.ReplaceAll([]string{"x"})

	ds := diagstore.New(2)
	ds.SetOriginVersion(textcoord.DocumentVersion(1))
	_, err := ds.InsertDiagnostic(
		textcoord.Range{Start: textcoord.Coordinate{Line: 0, Byte: 0}, End: textcoord.Coordinate{Line: 0, Byte: 1}},
		diagstore.DiagnosticRecord{Message: "x"},
	)
	require.NoError(t, err)

	require.NoError(t, r.ApplyChangesToDiagnostics(ds))
	assert.Empty(t, ds.AllDiagnostics())
	assert.Equal(t, 1, ds.NumLines())
}
