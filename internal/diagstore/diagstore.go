// Package diagstore holds the diagnostics published for one open
// document, indexed by range so a caller can ask "what diagnostic (if
// any) covers this coordinate" or "where is the next/previous
// diagnostic". It is a thin layer over internal/rangemap: the map
// stores integer indices into an append-only slice of DiagnosticRecord,
// so that editing operations only ever touch coordinates, never the
// (potentially large) diagnostic payloads themselves.
//
// Grounded on the original editor's td-diagnostics.h (described by
// spec.md §4.F and referenced from original_source/lsp-client.h; the
// header itself was not present in original_source/, only its callers
// were, so the field/method shapes below follow spec.md's description
// of it directly).
package diagstore

import (
	"fmt"

	"github.com/conduit-lang/lspclient/internal/rangemap"
	"github.com/conduit-lang/lspclient/internal/textcoord"
	"github.com/conduit-lang/lspclient/internal/textdoc"
)

// Severity mirrors the LSP DiagnosticSeverity enum (protocol.DiagnosticSeverity),
// kept as its own small type so this package does not need to import
// go.lsp.dev/protocol; internal/lspclient converts between the two at
// the boundary where diagnostics arrive over the wire.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// RelatedLocation is one entry of a diagnostic's related-information
// list: a location in some other file (or elsewhere in the same file)
// relevant to understanding the diagnostic, plus an explanatory
// message. This does not participate in range tracking itself (per
// spec.md §3, only the diagnostic's own range is anchored) — Line is a
// snapshot, not a live coordinate.
type RelatedLocation struct {
	File    string
	Line    int
	Message string
}

// DiagnosticRecord is everything about one diagnostic except its
// range, which is tracked separately by the range map so edits can
// move it without touching this struct.
type DiagnosticRecord struct {
	Severity Severity
	Message  string
	Source   string
	Code     string
	Related  []RelatedLocation
}

// DiagnosticStore holds the diagnostics reported for a single document
// at a single origin version.
type DiagnosticStore struct {
	rm      *rangemap.RangeMap
	records []DiagnosticRecord

	hasOrigin     bool
	originVersion textcoord.DocumentVersion
}

// New creates an empty store tracking a document of numLines lines.
func New(numLines int) *DiagnosticStore {
	return &DiagnosticStore{
		rm: rangemap.New(&numLines),
	}
}

// SetOriginVersion records which document version these diagnostics
// were computed against. changerec.Recorder.ApplyChangesToDiagnostics
// reads it to choose the tracked version to replay changes from.
func (ds *DiagnosticStore) SetOriginVersion(v textcoord.DocumentVersion) {
	ds.hasOrigin = true
	ds.originVersion = v
}

func (ds *DiagnosticStore) OriginVersion() (textcoord.DocumentVersion, bool) {
	return ds.originVersion, ds.hasOrigin
}

// InsertDiagnostic adds one diagnostic at r and returns the opaque
// index it was stored under (stable even after edits move or collapse
// the range; indices restart from 0 only after ClearEverything).
func (ds *DiagnosticStore) InsertDiagnostic(r textcoord.Range, rec DiagnosticRecord) (int, error) {
	value := len(ds.records)
	if err := ds.rm.Insert(rangemap.DocEntry{Range: r, Value: value}); err != nil {
		return 0, fmt.Errorf("diagstore: %w", err)
	}
	ds.records = append(ds.records, rec)
	return value, nil
}

// Clear removes every diagnostic but keeps the record slice (so
// previously returned indices remain valid, they're just unreachable
// through the map) and keeps the known document shape.
func (ds *DiagnosticStore) Clear() {
	ds.rm.ClearEntries()
}

// ClearEverything removes every diagnostic, the record slice, and
// resets the document shape to numLines.
func (ds *DiagnosticStore) ClearEverything(numLines int) {
	ds.rm.ClearEverything(&numLines)
	ds.records = nil
	ds.hasOrigin = false
}

func (ds *DiagnosticStore) NumLines() int {
	n, _ := ds.rm.GetNumLinesOpt()
	return n
}

// SetNumLinesAndConfine resets the store's known line count to n,
// clamping every stored range's line indices into [0, n-1]. Used by
// internal/changerec to reconfine a diagnostic store to the document
// shape its origin version was computed against, before replaying
// recorded changes forward.
func (ds *DiagnosticStore) SetNumLinesAndConfine(n int) {
	ds.rm.SetNumLinesAndConfine(n)
}

// AdjustForDocument confines every stored range to valid coordinates
// of shape. DiagnosticStore itself does not know line lengths (it does
// not hold document text), so the caller supplies them through shape.
func (ds *DiagnosticStore) AdjustForDocument(shape rangemap.DocumentShape) {
	ds.rm.AdjustForDocument(shape)
}

func (ds *DiagnosticStore) InsertLines(line, count int)  { ds.rm.InsertLines(line, count) }
func (ds *DiagnosticStore) DeleteLines(line, count int)  { ds.rm.DeleteLines(line, count) }
func (ds *DiagnosticStore) InsertLineBytes(tc textcoord.Coordinate, n int) {
	ds.rm.InsertLineBytes(tc, n)
}
func (ds *DiagnosticStore) DeleteLineBytes(tc textcoord.Coordinate, n int) {
	ds.rm.DeleteLineBytes(tc, n)
}

// ObserveInsertLine implements textdoc.Observer, so a store registered
// directly on a document keeps its diagnostics anchored in real time
// as the document is edited, independent of when the next
// publishDiagnostics arrives to re-anchor against a fresh baseline
// (internal/changerec covers that catch-up case for a store that
// didn't exist yet when some of the edits happened).
func (ds *DiagnosticStore) ObserveInsertLine(doc *textdoc.Document, line int) {
	ds.InsertLines(line, 1)
}

func (ds *DiagnosticStore) ObserveDeleteLine(doc *textdoc.Document, line int) {
	ds.DeleteLines(line, 1)
}

func (ds *DiagnosticStore) ObserveInsertText(doc *textdoc.Document, tc textcoord.Coordinate, text []byte) {
	ds.InsertLineBytes(tc, len(text))
}

func (ds *DiagnosticStore) ObserveDeleteText(doc *textdoc.Document, tc textcoord.Coordinate, lengthBytes int) {
	ds.DeleteLineBytes(tc, lengthBytes)
}

func (ds *DiagnosticStore) ObserveTotalChange(doc *textdoc.Document) {
	ds.ClearEverything(doc.NumLines())
}

// GetLineEntries returns the raw range-map entries intersecting line,
// for callers (e.g. a gutter renderer) that want the low-level view.
func (ds *DiagnosticStore) GetLineEntries(line int) []rangemap.LineEntry {
	return ds.rm.GetLineEntries(line)
}

// Diagnostic pairs a DiagnosticRecord with its current range, as
// reconstructed from the range map.
type Diagnostic struct {
	Range  textcoord.Range
	Record DiagnosticRecord
}

// AllDiagnostics returns every tracked diagnostic with its current
// range.
func (ds *DiagnosticStore) AllDiagnostics() []Diagnostic {
	entries := ds.rm.GetAllEntries()
	out := make([]Diagnostic, 0, len(entries))
	for _, e := range entries {
		out = append(out, Diagnostic{Range: e.Range, Record: ds.records[e.Value]})
	}
	return out
}

// GetDiagnosticAt returns the diagnostic covering tc, if any. Per
// spec.md §4.F, when more than one diagnostic covers tc the tie-break
// order is: smaller distance from tc to the diagnostic's start, then
// smaller distance from tc to the diagnostic's end, then arbitrary
// (lowest value wins, for determinism).
func (ds *DiagnosticStore) GetDiagnosticAt(tc textcoord.Coordinate) (Diagnostic, bool) {
	entries := ds.rm.GetLineEntries(tc.Line)
	bestValue := -1
	var bestFromStart, bestToEnd int
	for _, e := range entries {
		covers, fromStart, toEnd := lineEntryCovers(e, tc.Byte)
		if !covers {
			continue
		}
		better := bestValue == -1 ||
			fromStart < bestFromStart ||
			(fromStart == bestFromStart && toEnd < bestToEnd) ||
			(fromStart == bestFromStart && toEnd == bestToEnd && e.Value < bestValue)
		if better {
			bestValue, bestFromStart, bestToEnd = e.Value, fromStart, toEnd
		}
	}
	if bestValue == -1 {
		return Diagnostic{}, false
	}
	return ds.diagnosticForValue(bestValue), true
}

// maxDistance stands in for "the endpoint is on another line", so a
// range entering or leaving this line as a continuation never wins a
// distance-based tie-break against one whose matching endpoint is on
// this line.
const maxDistance = int(^uint(0) >> 1)

// lineEntryCovers reports whether a LineEntry's intersection with a
// given line covers byte idx, and if so its distance from idx to the
// range's start and to its end (maxDistance when that endpoint lies on
// a different line).
func lineEntryCovers(e rangemap.LineEntry, idx int) (covers bool, fromStart, toEnd int) {
	switch {
	case e.StartByte != nil && e.EndByte != nil:
		return *e.StartByte <= idx && idx < *e.EndByte, idx - *e.StartByte, *e.EndByte - idx
	case e.StartByte != nil:
		return idx >= *e.StartByte, idx - *e.StartByte, maxDistance
	case e.EndByte != nil:
		return idx < *e.EndByte, maxDistance, *e.EndByte - idx
	default:
		return true, maxDistance, maxDistance
	}
}

func (ds *DiagnosticStore) diagnosticForValue(value int) Diagnostic {
	for _, e := range ds.rm.GetAllEntries() {
		if e.Value == value {
			return Diagnostic{Range: e.Range, Record: ds.records[value]}
		}
	}
	panic(fmt.Sprintf("diagstore: value %d not found in range map", value))
}

// GetAdjacentDiagnosticLocation returns the start coordinate of the
// next diagnostic after tc (forward=true) or the previous one before
// tc (forward=false), wrapping around the document. It returns false
// if the store holds no diagnostics.
func (ds *DiagnosticStore) GetAdjacentDiagnosticLocation(tc textcoord.Coordinate, forward bool) (textcoord.Coordinate, bool) {
	all := ds.rm.GetAllEntries()
	if len(all) == 0 {
		return textcoord.Coordinate{}, false
	}

	var best *textcoord.Coordinate
	var wrapBest *textcoord.Coordinate

	for _, e := range all {
		start := e.Range.Start
		if forward {
			if tc.Less(start) {
				if best == nil || start.Less(*best) {
					s := start
					best = &s
				}
			}
			if wrapBest == nil || start.Less(*wrapBest) {
				s := start
				wrapBest = &s
			}
		} else {
			if start.Less(tc) {
				if best == nil || best.Less(start) {
					s := start
					best = &s
				}
			}
			if wrapBest == nil || wrapBest.Less(start) {
				s := start
				wrapBest = &s
			}
		}
	}

	if best != nil {
		return *best, true
	}
	return *wrapBest, true
}
