// Package textdoc is a minimal in-memory text document: a slice of
// byte lines plus a version counter and an observer list. It exists so
// internal/changerec has something concrete driving its Observer
// interface, and so internal/lspclient has a local copy of each open
// document onto which it replays the incremental didChange
// content-change events it sends.
//
// spec.md §1 treats text storage as "assumed" and only specifies the
// notification interface; this package is the supplementary concrete
// implementation called for by SPEC_FULL.md §4's "Supplementary
// modules" section, grounded on the observer callback shape implied by
// original_source/td-obs-recorder.h's TextDocumentObserver methods.
package textdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/conduit-lang/lspclient/internal/textcoord"
)

// Observer receives notifications for every mutation applied to a
// Document, mirroring the five TextDocumentObserver callbacks in the
// original editor (insert-line, delete-line, insert-text, delete-text,
// total-change).
type Observer interface {
	ObserveInsertLine(doc *Document, line int)
	ObserveDeleteLine(doc *Document, line int)
	ObserveInsertText(doc *Document, tc textcoord.Coordinate, text []byte)
	ObserveDeleteText(doc *Document, tc textcoord.Coordinate, lengthBytes int)
	ObserveTotalChange(doc *Document)
}

// Document holds document text as a slice of lines, each stored
// without its trailing newline.
type Document struct {
	lines     [][]byte
	version   textcoord.DocumentVersion
	observers []Observer
}

// New creates a document with a single empty line, matching a brand
// new buffer in most editors.
func New() *Document {
	return &Document{lines: [][]byte{{}}}
}

// NewFromLines creates a document from a pre-split list of lines. The
// slice is copied; callers retain ownership of the original.
func NewFromLines(lines []string) *Document {
	if len(lines) == 0 {
		return New()
	}
	d := &Document{lines: make([][]byte, len(lines))}
	for i, l := range lines {
		d.lines[i] = []byte(l)
	}
	return d
}

func (d *Document) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Document) Version() textcoord.DocumentVersion { return d.version }

// NumLines satisfies rangemap.DocumentShape.
func (d *Document) NumLines() int { return len(d.lines) }

// LineLengthBytes satisfies rangemap.DocumentShape.
func (d *Document) LineLengthBytes(line int) int {
	if line < 0 || line >= len(d.lines) {
		panic(fmt.Sprintf("textdoc: line %d out of range [0,%d)", line, len(d.lines)))
	}
	return len(d.lines[line])
}

func (d *Document) LineBytes(line int) []byte {
	return d.lines[line]
}

// FullText joins every line with '\n', giving the document's contents
// as a single string (the shape LSP's didOpen/full-sync didChange
// payloads use).
func (d *Document) FullText() string {
	lines := make([]string, len(d.lines))
	for i, l := range d.lines {
		lines[i] = string(l)
	}
	return strings.Join(lines, "\n")
}

// ApplyRangeEdit replaces the text spanning r with newText, decomposing
// the edit into the primitive InsertLine/DeleteLine/InsertText/DeleteText
// operations so registered observers (internal/changerec) see the same
// sequence of low-level mutations a real line-oriented text buffer would
// produce for an LSP incremental textDocument/didChange event.
//
// The edit is applied in two passes: first the span from r.Start to
// r.End is collapsed down onto r.Start.Line (capturing the text after
// r.End as tail before anything is removed), then newText is spliced in
// at r.Start followed by tail, splitting across new lines as needed.
func (d *Document) ApplyRangeEdit(r textcoord.Range, newText []byte) {
	start, end := r.Start, r.End

	var tail []byte
	if start.Line == end.Line {
		line := d.lines[start.Line]
		tail = append([]byte(nil), line[end.Byte:]...)
		if trim := len(line) - start.Byte; trim > 0 {
			d.DeleteText(start, trim)
		}
	} else {
		endLine := d.lines[end.Line]
		tail = append([]byte(nil), endLine[end.Byte:]...)

		for line := end.Line; line > start.Line; line-- {
			if n := len(d.lines[line]); n > 0 {
				d.DeleteText(textcoord.Coordinate{Line: line, Byte: 0}, n)
			}
			d.DeleteLine(line)
		}
		if trim := len(d.lines[start.Line]) - start.Byte; trim > 0 {
			d.DeleteText(textcoord.Coordinate{Line: start.Line, Byte: start.Byte}, trim)
		}
	}

	d.insertTextWithTrailingTail(start, newText, tail)
}

// insertTextWithTrailingTail inserts text at pos, splitting on '\n' into
// separate InsertLine/InsertText calls, then appends tail immediately
// after the inserted text (on whichever line the insertion ended on).
func (d *Document) insertTextWithTrailingTail(pos textcoord.Coordinate, text, tail []byte) {
	segments := bytes.Split(text, []byte{'\n'})
	cur := pos
	for i, seg := range segments {
		if i > 0 {
			d.InsertLine(cur.Line + 1)
			cur = textcoord.Coordinate{Line: cur.Line + 1, Byte: 0}
		}
		if len(seg) > 0 {
			d.InsertText(cur, seg)
			cur.Byte += len(seg)
		}
	}
	if len(tail) > 0 {
		d.InsertText(cur, tail)
	}
}

func (d *Document) bumpVersion() {
	d.version++
}

// InsertLine inserts a new empty line at index line, pushing the
// former line (and everything below it) down by one.
func (d *Document) InsertLine(line int) {
	d.lines = append(d.lines, nil)
	copy(d.lines[line+1:], d.lines[line:])
	d.lines[line] = []byte{}
	d.bumpVersion()
	for _, o := range d.observers {
		o.ObserveInsertLine(d, line)
	}
}

// DeleteLine removes line, which must be empty (matching the original
// editor's invariant that a line can only be removed once its text has
// been deleted down to nothing).
func (d *Document) DeleteLine(line int) {
	if len(d.lines[line]) != 0 {
		panic("textdoc: DeleteLine requires an empty line")
	}
	d.lines = append(d.lines[:line], d.lines[line+1:]...)
	d.bumpVersion()
	for _, o := range d.observers {
		o.ObserveDeleteLine(d, line)
	}
}

// InsertText inserts text at tc, which must not itself contain a
// newline (multi-line insertion is expressed as InsertLine plus
// InsertText, exactly as the original editor's core text buffer
// requires).
func (d *Document) InsertText(tc textcoord.Coordinate, text []byte) {
	line := d.lines[tc.Line]
	next := make([]byte, 0, len(line)+len(text))
	next = append(next, line[:tc.Byte]...)
	next = append(next, text...)
	next = append(next, line[tc.Byte:]...)
	d.lines[tc.Line] = next
	d.bumpVersion()
	for _, o := range d.observers {
		o.ObserveInsertText(d, tc, text)
	}
}

// DeleteText deletes lengthBytes bytes starting at tc on a single
// line.
func (d *Document) DeleteText(tc textcoord.Coordinate, lengthBytes int) {
	line := d.lines[tc.Line]
	next := make([]byte, 0, len(line)-lengthBytes)
	next = append(next, line[:tc.Byte]...)
	next = append(next, line[tc.Byte+lengthBytes:]...)
	d.lines[tc.Line] = next
	d.bumpVersion()
	for _, o := range d.observers {
		o.ObserveDeleteText(d, tc, lengthBytes)
	}
}

// ReplaceAll discards the current content wholesale and replaces it
// with lines, firing ObserveTotalChange rather than a sequence of
// incremental events. Used when an external edit (e.g. reverting to
// disk) can't be expressed incrementally.
func (d *Document) ReplaceAll(lines []string) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	d.lines = make([][]byte, len(lines))
	for i, l := range lines {
		d.lines[i] = []byte(l)
	}
	d.bumpVersion()
	for _, o := range d.observers {
		o.ObserveTotalChange(d)
	}
}
