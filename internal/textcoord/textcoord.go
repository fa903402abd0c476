// Package textcoord defines the coordinate and range types shared by the
// range map, change recorder, diagnostic store and LSP client.
//
// The original editor this module is modeled on (smcpeak/editor) backs
// these with a hierarchy of newtypes (ByteIndex, LineIndex, ...) to catch
// index-vs-number mistakes at compile time. That hierarchy is explicitly
// out of scope here (see SPEC_FULL.md §1) as an implementation
// convenience of the original, so plain ints are used instead; the
// 0-based/1-based distinction it existed to protect is called out in
// doc comments instead.
package textcoord

import "fmt"

// Coordinate is a (line, byte) location in a document. Both fields are
// 0-based. Byte may equal the byte length of the line, denoting the
// insertion point just past the last byte.
type Coordinate struct {
	Line int
	Byte int
}

// Compare returns -1, 0 or 1 using lexicographic (line, then byte) order.
func (c Coordinate) Compare(other Coordinate) int {
	if c.Line != other.Line {
		if c.Line < other.Line {
			return -1
		}
		return 1
	}
	if c.Byte != other.Byte {
		if c.Byte < other.Byte {
			return -1
		}
		return 1
	}
	return 0
}

func (c Coordinate) Less(other Coordinate) bool {
	return c.Compare(other) < 0
}

func (c Coordinate) LessEq(other Coordinate) bool {
	return c.Compare(other) <= 0
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Line, c.Byte)
}

// Range is a pair of coordinates. It is "normalized" (or "rectified")
// when Start <= End. The end coordinate is exclusive at the byte level
// but inclusive at the line level: if Start.Line < End.Line, line
// Start.Line from Start.Byte to its end is included, all lines strictly
// between are included in full, and line End.Line is included only up to
// (not including) End.Byte.
type Range struct {
	Start Coordinate
	End   Coordinate
}

// IsRectified reports whether Start <= End.
func (r Range) IsRectified() bool {
	return r.Start.LessEq(r.End)
}

// IsSingleLine reports whether the range's start and end are on the same
// line.
func (r Range) IsSingleLine() bool {
	return r.Start.Line == r.End.Line
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// DocumentVersion is a monotonically increasing, non-negative version
// number issued by a document after every mutation. It is persisted
// across the LSP wire as a 32-bit signed integer (the LSP limit) but
// kept as a 64-bit value internally; callers that cross the wire are
// responsible for range-checking via AsLSPVersion.
type DocumentVersion int64

// AsLSPVersion narrows v to the int32 the LSP wire format requires.
// It panics if v is out of range, which would indicate a misuse
// (spec.md §7 "Misuse" category) rather than a recoverable condition:
// a document cannot have sent more than 2^31-1 versions to a
// conforming client in one process lifetime.
func (v DocumentVersion) AsLSPVersion() int32 {
	if v < 0 || v > DocumentVersion(1<<31-1) {
		panic(fmt.Sprintf("document version %d out of LSP int32 range", v))
	}
	return int32(v)
}
