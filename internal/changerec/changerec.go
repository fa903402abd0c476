// Package changerec records the sequence of edits applied to a
// document since some earlier version, so that diagnostics computed
// against that earlier version can be replayed forward onto the
// document's current shape without waiting for the language server to
// recompute them.
//
// Grounded on original_source/td-obs-recorder.h's
// TextDocumentObservationRecorder: a TextDocumentObserver implementation
// that appends one Observation per callback to the change sequence of
// the most-recently-tracked version, plus a small per-version record
// (AwaitingDiagnostics there, trackedVersion here) holding the line
// count current as of that version and its change sequence so far.
package changerec

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/lspclient/internal/diagstore"
	"github.com/conduit-lang/lspclient/internal/rangemap"
	"github.com/conduit-lang/lspclient/internal/textcoord"
	"github.com/conduit-lang/lspclient/internal/textdoc"
)

// Observation is one recorded mutation, replayable onto a
// diagnostic store. The five concrete types below mirror the five
// TextDocumentObserver callbacks (TDCO_InsertLine, TDCO_DeleteLine,
// TDCO_InsertText, TDCO_DeleteText, TDCO_TotalChange in the original).
type Observation interface {
	ApplyToDiagnostics(ds *diagstore.DiagnosticStore)
}

type insertLineObservation struct{ line int }

func (o insertLineObservation) ApplyToDiagnostics(ds *diagstore.DiagnosticStore) {
	ds.InsertLines(o.line, 1)
}

type deleteLineObservation struct{ line int }

func (o deleteLineObservation) ApplyToDiagnostics(ds *diagstore.DiagnosticStore) {
	ds.DeleteLines(o.line, 1)
}

type insertTextObservation struct {
	tc          textcoord.Coordinate
	lengthBytes int
}

func (o insertTextObservation) ApplyToDiagnostics(ds *diagstore.DiagnosticStore) {
	ds.InsertLineBytes(o.tc, o.lengthBytes)
}

type deleteTextObservation struct {
	tc          textcoord.Coordinate
	lengthBytes int
}

func (o deleteTextObservation) ApplyToDiagnostics(ds *diagstore.DiagnosticStore) {
	ds.DeleteLineBytes(o.tc, o.lengthBytes)
}

// totalChangeObservation discards all existing diagnostics: there is
// no way to map them forward across an unstructured whole-document
// replacement, matching the original's "confine to the new, probably
// empty, shape" behavior for this case.
type totalChangeObservation struct{ numLines int }

func (o totalChangeObservation) ApplyToDiagnostics(ds *diagstore.DiagnosticStore) {
	ds.ClearEverything(o.numLines)
}

// trackedVersion is one tracked document version: the line count as of
// that version, and every observation recorded since then (or since
// the next tracked version began, whichever is sooner).
type trackedVersion struct {
	numLines int
	changes  []Observation
}

// Recorder is a textdoc.Observer that records changes per tracked
// document version, so they can later be replayed onto a diagnostic
// store whose origin version matches one of the tracked versions.
type Recorder struct {
	doc      *textdoc.Document
	tracking map[textcoord.DocumentVersion]*trackedVersion
	latest   *textcoord.DocumentVersion
}

// New creates a recorder observing doc. Call AddObserver separately
// (textdoc.Document.AddObserver(recorder)) to actually start
// receiving callbacks; this mirrors the original's two-step
// construct-then-observe pattern, which keeps the recorder decoupled
// from how a document chooses to register its observers.
func New(doc *textdoc.Document) *Recorder {
	return &Recorder{
		doc:      doc,
		tracking: make(map[textcoord.DocumentVersion]*trackedVersion),
	}
}

// TrackingSomething reports whether at least one version is tracked.
func (r *Recorder) TrackingSomething() bool { return len(r.tracking) > 0 }

// IsTracking reports whether version can currently be rolled forward.
func (r *Recorder) IsTracking(version textcoord.DocumentVersion) bool {
	_, ok := r.tracking[version]
	return ok
}

// GetTrackedVersions returns every version currently tracked.
func (r *Recorder) GetTrackedVersions() []textcoord.DocumentVersion {
	out := make([]textcoord.DocumentVersion, 0, len(r.tracking))
	for v := range r.tracking {
		out = append(out, v)
	}
	return out
}

// NumLinesAtVersion returns the document's line count as of the moment
// version became current (i.e. what was passed to BeginTracking for
// it), so a caller can size a diagnostic store to match the shape the
// server computed its diagnostics against before replaying changes
// forward.
func (r *Recorder) NumLinesAtVersion(version textcoord.DocumentVersion) (int, bool) {
	tv, ok := r.tracking[version]
	if !ok {
		return 0, false
	}
	return tv.numLines, true
}

// BeginTracking starts recording changes on top of version, which has
// numLines lines. Future observer callbacks are appended to this
// version's change sequence until a later call to BeginTracking
// starts a new one.
func (r *Recorder) BeginTracking(version textcoord.DocumentVersion, numLines int) {
	r.tracking[version] = &trackedVersion{numLines: numLines}
	v := version
	r.latest = &v
}

// ApplyChangesToDiagnostics replays every change recorded since ds's
// origin version onto ds, bringing it from the shape it was computed
// against up to the document's current shape, per spec.md §4.C:
//
//  1. Tracked versions strictly older than the origin are discarded
//     (they can never be needed again).
//  2. ds's line count is reset to the origin version's line count,
//     confining all its ranges to that shape.
//  3. Every change recorded since the origin version, across every
//     tracked version from the origin forward in ascending order, is
//     replayed onto ds's range map.
//  4. The origin version itself is discarded (it has been consumed);
//     later tracked versions remain, for diagnostics that haven't
//     arrived yet.
//
// Requires ds have an origin version that IsTracking reports true for.
func (r *Recorder) ApplyChangesToDiagnostics(ds *diagstore.DiagnosticStore) error {
	origin, ok := ds.OriginVersion()
	if !ok {
		return fmt.Errorf("changerec: diagnostic store has no origin version")
	}
	originTV, ok := r.tracking[origin]
	if !ok {
		return fmt.Errorf("changerec: version %v is not being tracked", origin)
	}

	for v := range r.tracking {
		if v < origin {
			delete(r.tracking, v)
		}
	}

	ds.SetNumLinesAndConfine(originTV.numLines)

	versions := make([]textcoord.DocumentVersion, 0, len(r.tracking))
	for v := range r.tracking {
		if v >= origin {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	for _, v := range versions {
		for _, obs := range r.tracking[v].changes {
			obs.ApplyToDiagnostics(ds)
		}
	}

	delete(r.tracking, origin)
	return nil
}

func (r *Recorder) addObservation(obs Observation) {
	if r.latest == nil {
		return
	}
	tv, ok := r.tracking[*r.latest]
	if !ok {
		// The latest version was consumed by ApplyChangesToDiagnostics;
		// nothing can replay from it any more.
		return
	}
	tv.changes = append(tv.changes, obs)
}

// ObserveInsertLine implements textdoc.Observer.
func (r *Recorder) ObserveInsertLine(doc *textdoc.Document, line int) {
	r.addObservation(insertLineObservation{line: line})
}

// ObserveDeleteLine implements textdoc.Observer.
func (r *Recorder) ObserveDeleteLine(doc *textdoc.Document, line int) {
	r.addObservation(deleteLineObservation{line: line})
}

// ObserveInsertText implements textdoc.Observer.
func (r *Recorder) ObserveInsertText(doc *textdoc.Document, tc textcoord.Coordinate, text []byte) {
	r.addObservation(insertTextObservation{tc: tc, lengthBytes: len(text)})
}

// ObserveDeleteText implements textdoc.Observer.
func (r *Recorder) ObserveDeleteText(doc *textdoc.Document, tc textcoord.Coordinate, lengthBytes int) {
	r.addObservation(deleteTextObservation{tc: tc, lengthBytes: lengthBytes})
}

// ObserveTotalChange implements textdoc.Observer.
func (r *Recorder) ObserveTotalChange(doc *textdoc.Document) {
	r.addObservation(totalChangeObservation{numLines: doc.NumLines()})
}

var _ rangemap.DocumentShape = (*textdoc.Document)(nil)
