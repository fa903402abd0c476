package textdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/lspclient/internal/textcoord"
)

type recordingObserver struct {
	inserts []int
	deletes []int
	texts   []string
	total   int
}

func (o *recordingObserver) ObserveInsertLine(doc *Document, line int) { o.inserts = append(o.inserts, line) }
func (o *recordingObserver) ObserveDeleteLine(doc *Document, line int) { o.deletes = append(o.deletes, line) }
func (o *recordingObserver) ObserveInsertText(doc *Document, tc textcoord.Coordinate, text []byte) {
	o.texts = append(o.texts, string(text))
}
func (o *recordingObserver) ObserveDeleteText(doc *Document, tc textcoord.Coordinate, lengthBytes int) {
}
func (o *recordingObserver) ObserveTotalChange(doc *Document) { o.total++ }

func TestNewFromLines(t *testing.T) {
	d := NewFromLines([]string{"a", "bb", "ccc"})
	require.Equal(t, 3, d.NumLines())
	assert.Equal(t, "bb", string(d.LineBytes(1)))
	assert.Equal(t, "a\nbb\nccc", d.FullText())
}

func TestNewFromLinesEmpty(t *testing.T) {
	d := NewFromLines(nil)
	assert.Equal(t, 1, d.NumLines())
	assert.Equal(t, "", d.FullText())
}

func TestInsertAndDeleteLine(t *testing.T) {
	d := NewFromLines([]string{"a", "b"})
	obs := &recordingObserver{}
	d.AddObserver(obs)

	d.InsertLine(1)
	require.Equal(t, 3, d.NumLines())
	assert.Equal(t, "a", string(d.LineBytes(0)))
	assert.Equal(t, "", string(d.LineBytes(1)))
	assert.Equal(t, "b", string(d.LineBytes(2)))
	assert.Equal(t, []int{1}, obs.inserts)

	d.DeleteLine(1)
	require.Equal(t, 2, d.NumLines())
	assert.Equal(t, "b", string(d.LineBytes(1)))
	assert.Equal(t, []int{1}, obs.deletes)
}

func TestDeleteLinePanicsIfNotEmpty(t *testing.T) {
	d := NewFromLines([]string{"a"})
	assert.Panics(t, func() { d.DeleteLine(0) })
}

func TestInsertAndDeleteText(t *testing.T) {
	d := NewFromLines([]string{"hello"})
	d.InsertText(textcoord.Coordinate{Line: 0, Byte: 5}, []byte(" world"))
	assert.Equal(t, "hello world", string(d.LineBytes(0)))

	d.DeleteText(textcoord.Coordinate{Line: 0, Byte: 5}, 6)
	assert.Equal(t, "hello", string(d.LineBytes(0)))
}

func TestReplaceAllFiresTotalChange(t *testing.T) {
	d := NewFromLines([]string{"old"})
	obs := &recordingObserver{}
	d.AddObserver(obs)

	d.ReplaceAll([]string{"new", "lines"})
	assert.Equal(t, 2, d.NumLines())
	assert.Equal(t, "new", string(d.LineBytes(0)))
	assert.Equal(t, 1, obs.total)
}

func TestApplyRangeEditSingleLine(t *testing.T) {
	d := NewFromLines([]string{"hello world"})
	d.ApplyRangeEdit(textcoord.Range{
		Start: textcoord.Coordinate{Line: 0, Byte: 6},
		End:   textcoord.Coordinate{Line: 0, Byte: 11},
	}, []byte("there"))
	assert.Equal(t, "hello there", string(d.LineBytes(0)))
}

func TestApplyRangeEditInsertsNewline(t *testing.T) {
	d := NewFromLines([]string{"abcdef"})
	d.ApplyRangeEdit(textcoord.Range{
		Start: textcoord.Coordinate{Line: 0, Byte: 3},
		End:   textcoord.Coordinate{Line: 0, Byte: 3},
	}, []byte("\nXYZ"))
	require.Equal(t, 2, d.NumLines())
	assert.Equal(t, "abc", string(d.LineBytes(0)))
	assert.Equal(t, "XYZdef", string(d.LineBytes(1)))
}

func TestApplyRangeEditSpansMultipleLines(t *testing.T) {
	d := NewFromLines([]string{"one", "two", "three"})
	d.ApplyRangeEdit(textcoord.Range{
		Start: textcoord.Coordinate{Line: 0, Byte: 1},
		End:   textcoord.Coordinate{Line: 2, Byte: 2},
	}, []byte("X"))
	require.Equal(t, 1, d.NumLines())
	assert.Equal(t, "oXree", string(d.LineBytes(0)))
}

func TestApplyRangeEditBumpsVersion(t *testing.T) {
	d := NewFromLines([]string{"abc"})
	before := d.Version()
	d.ApplyRangeEdit(textcoord.Range{
		Start: textcoord.Coordinate{Line: 0, Byte: 0},
		End:   textcoord.Coordinate{Line: 0, Byte: 0},
	}, []byte("x"))
	assert.Greater(t, int64(d.Version()), int64(before))
}
