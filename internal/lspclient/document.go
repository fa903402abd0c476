package lspclient

import (
	"strings"

	"github.com/conduit-lang/lspclient/internal/changerec"
	"github.com/conduit-lang/lspclient/internal/diagstore"
	"github.com/conduit-lang/lspclient/internal/textcoord"
	"github.com/conduit-lang/lspclient/internal/textdoc"
)

// DocumentRecord is the per-open-file bookkeeping described in
// spec.md §3, grounded on original_source/lsp-client.h's
// LSPDocumentInfo.
type DocumentRecord struct {
	// Path is the absolute, forward-slash file name. Invariant I1:
	// Client.documents[Path].Path == Path.
	Path string

	// LastSentVersion is the version of LastSentContents, the most
	// recent contents sent to the server.
	LastSentVersion textcoord.DocumentVersion

	// LastSentContents mirrors what the server has, so the editor's
	// live buffer can be compared against it (and so incremental
	// didChange deltas can be computed without re-sending the whole
	// document).
	LastSentContents string

	// WaitingForDiagnostics is true once contents have been sent but
	// the corresponding publishDiagnostics has not yet arrived.
	WaitingForDiagnostics bool

	// doc mirrors LastSentContents as a textdoc.Document, so recorder
	// has something concrete to observe; it is kept in lockstep with
	// every DidChange call (component C/E wiring from SPEC_FULL.md §4).
	doc      *textdoc.Document
	recorder *changerec.Recorder

	// diagnostics holds the diagnostics from the most recent accepted
	// publishDiagnostics, range-tracked against doc so it stays
	// anchored as later edits are applied.
	diagnostics *diagstore.DiagnosticStore

	// pendingDiagnostics is a snapshot of diagnostics taken at
	// installation time, returned once by TakePendingDiagnosticsFor;
	// the live, edit-tracked copy remains in diagnostics regardless.
	pendingDiagnostics []diagstore.Diagnostic
	hasPending         bool
}

// HasPendingDiagnostics reports whether a publishDiagnostics
// notification for this document has arrived and not yet been taken.
func (d *DocumentRecord) HasPendingDiagnostics() bool { return d.hasPending }

// ContentChange is one entry of an incremental didChange notification.
// A nil Range means "replace the whole document" (full-sync change),
// matching LSP's TextDocumentContentChangeEvent union.
type ContentChange struct {
	Range *textcoord.Range
	Text  string
}

// applyContentChange rewrites text (the document's prior full
// contents, as a sequence of '\n'-separated lines) according to
// change, returning the new full contents. This is the client-side
// mirror of what the server does with the same incremental event,
// kept so DocumentRecord.LastSentContents always matches what the
// server believes the document contains (spec.md §3's
// "last-sent-contents" field).
func applyContentChange(text string, change ContentChange) string {
	if change.Range == nil {
		return change.Text
	}
	lines := strings.Split(text, "\n")
	r := *change.Range

	if r.Start.Line < 0 || r.Start.Line >= len(lines) || r.End.Line < 0 || r.End.Line >= len(lines) {
		return change.Text // out-of-range range: fall back to a full replace
	}

	var b strings.Builder
	for i := 0; i < r.Start.Line; i++ {
		b.WriteString(lines[i])
		b.WriteByte('\n')
	}
	startLine := lines[r.Start.Line]
	if r.Start.Byte > len(startLine) {
		return change.Text
	}
	b.WriteString(startLine[:r.Start.Byte])
	b.WriteString(change.Text)

	endLine := lines[r.End.Line]
	if r.End.Byte > len(endLine) {
		return change.Text
	}
	b.WriteString(endLine[r.End.Byte:])
	for i := r.End.Line + 1; i < len(lines); i++ {
		b.WriteByte('\n')
		b.WriteString(lines[i])
	}
	return b.String()
}
