// Package rangemap implements an associative map from ranges of a text
// document to opaque integer values, where range endpoints are updated
// in response to line- and byte-level edits performed on the document.
//
// Most ranges are expected to be single-line (diagnostics usually are),
// so each line holds three small sets: single-line spans, boundaries
// that start or end a multi-line range on that line, and a plain value
// set recording which multi-line ranges merely pass through the line as
// a continuation. This mirrors the per-line decomposition of
// TextMCoordMap in the original editor (original_source/textmcoord-map.h),
// adapted from its gap-array-of-LineData representation to a plain Go
// map keyed by line index, which is the idiomatic equivalent for a
// structure whose occupied lines are sparse relative to the document.
package rangemap

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/lspclient/internal/textcoord"
)

// Value is the opaque, non-negative integer a Range is associated with.
// Callers index their own parallel array with it.
type Value = int

// DocEntry is a (Range, Value) pair as seen from outside the map.
type DocEntry struct {
	Range textcoord.Range
	Value Value
}

// LineEntry describes the portion of some range that intersects one
// line, as returned by GetLineEntries. A nil StartByte means the range
// began on an earlier line; a nil EndByte means it ends on a later line.
type LineEntry struct {
	StartByte *int
	EndByte   *int
	Value     Value
}

type span struct {
	start, end int
}

// lineData holds every range fragment that intersects one line. It is
// only allocated for a line that has at least one intersecting entry.
type lineData struct {
	singleLine map[Value]span
	starts     map[Value]int
	continues  map[Value]struct{}
	ends       map[Value]int
}

func newLineData() *lineData {
	return &lineData{
		singleLine: make(map[Value]span),
		starts:     make(map[Value]int),
		continues:  make(map[Value]struct{}),
		ends:       make(map[Value]int),
	}
}

func (ld *lineData) empty() bool {
	return len(ld.singleLine) == 0 && len(ld.starts) == 0 &&
		len(ld.continues) == 0 && len(ld.ends) == 0
}

// RangeMap is the map described in the package doc comment.
//
// Invariant (I3 in SPEC_FULL.md): for every value v in values, either it
// is the key of exactly one singleLine span, or it is the key of
// exactly one start boundary, exactly one end boundary on a strictly
// later line, and a continues entry on every line strictly between.
type RangeMap struct {
	values   map[Value]struct{}
	lines    map[int]*lineData
	hasLines bool
	numLines int
}

// New creates an empty map. If numLines is non-nil, the map can track
// document edits (CanTrackUpdates reports true); numLines must be > 0.
func New(numLines *int) *RangeMap {
	rm := &RangeMap{
		values: make(map[Value]struct{}),
		lines:  make(map[int]*lineData),
	}
	if numLines != nil {
		if *numLines <= 0 {
			panic("rangemap.New: numLines must be positive when given")
		}
		rm.hasLines = true
		rm.numLines = *numLines
	}
	return rm
}

func (rm *RangeMap) getOrCreateLine(line int) *lineData {
	ld, ok := rm.lines[line]
	if !ok {
		ld = newLineData()
		rm.lines[line] = ld
	}
	return ld
}

func (rm *RangeMap) pruneLine(line int) {
	if ld, ok := rm.lines[line]; ok && ld.empty() {
		delete(rm.lines, line)
	}
}

// ---- queries ----

func (rm *RangeMap) Empty() bool { return len(rm.values) == 0 }

func (rm *RangeMap) NumEntries() int { return len(rm.values) }

// MaxEntryLine returns the largest line index with an intersecting
// entry, or -1 if the map is empty.
func (rm *RangeMap) MaxEntryLine() int {
	max := -1
	for line := range rm.lines {
		if line > max {
			max = line
		}
	}
	return max
}

func (rm *RangeMap) NumLinesWithData() int {
	return rm.MaxEntryLine() + 1
}

func (rm *RangeMap) GetNumLinesOpt() (int, bool) {
	return rm.numLines, rm.hasLines
}

func (rm *RangeMap) CanTrackUpdates() bool { return rm.hasLines }

func (rm *RangeMap) GetNumLines() int {
	if !rm.hasLines {
		panic("rangemap: GetNumLines called without CanTrackUpdates")
	}
	return rm.numLines
}

func (rm *RangeMap) ValidCoord(tc textcoord.Coordinate) bool {
	if tc.Line < 0 {
		return false
	}
	if rm.hasLines && tc.Line >= rm.numLines {
		return false
	}
	return true
}

func (rm *RangeMap) ValidRange(r textcoord.Range) bool {
	return rm.ValidCoord(r.Start) && rm.ValidCoord(r.End) && r.IsRectified()
}

func (rm *RangeMap) GetMappedValues() []Value {
	out := make([]Value, 0, len(rm.values))
	for v := range rm.values {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ---- direct manipulation ----

// Insert adds entry.Range -> entry.Value. entry.Value must not already
// be mapped, and entry.Range must be rectified and valid for the
// currently known document shape.
func (rm *RangeMap) Insert(entry DocEntry) error {
	if _, exists := rm.values[entry.Value]; exists {
		return fmt.Errorf("rangemap: value %d is already mapped", entry.Value)
	}
	if !rm.ValidRange(entry.Range) {
		return fmt.Errorf("rangemap: range %s is not valid for this document", entry.Range)
	}

	r := entry.Range
	if r.IsSingleLine() {
		ld := rm.getOrCreateLine(r.Start.Line)
		ld.singleLine[entry.Value] = span{r.Start.Byte, r.End.Byte}
	} else {
		rm.getOrCreateLine(r.Start.Line).starts[entry.Value] = r.Start.Byte
		for l := r.Start.Line + 1; l < r.End.Line; l++ {
			rm.getOrCreateLine(l).continues[entry.Value] = struct{}{}
		}
		rm.getOrCreateLine(r.End.Line).ends[entry.Value] = r.End.Byte
	}
	rm.values[entry.Value] = struct{}{}
	return nil
}

// ClearEntries removes all entries but keeps the known document shape.
func (rm *RangeMap) ClearEntries() {
	rm.values = make(map[Value]struct{})
	rm.lines = make(map[int]*lineData)
}

// ClearEverything removes all entries and sets a new document shape.
func (rm *RangeMap) ClearEverything(numLines *int) {
	rm.ClearEntries()
	rm.hasLines = false
	rm.numLines = 0
	if numLines != nil {
		if *numLines <= 0 {
			panic("rangemap.ClearEverything: numLines must be positive when given")
		}
		rm.hasLines = true
		rm.numLines = *numLines
	}
}

// SetNumLinesAndConfine sets the line count and clamps every stored line
// index down into [0, n-1].
func (rm *RangeMap) SetNumLinesAndConfine(n int) {
	if n <= 0 {
		panic("rangemap.SetNumLinesAndConfine: n must be positive")
	}
	rm.hasLines = true
	rm.numLines = n

	last := n - 1
	moved := make(map[int]*lineData)
	for line, ld := range rm.lines {
		target := line
		if target > last {
			target = last
		}
		if dst, ok := moved[target]; ok {
			mergeLineDataInto(dst, ld)
		} else {
			moved[target] = ld
		}
	}
	rm.lines = moved
}

func mergeLineDataInto(dst, src *lineData) {
	for v, s := range src.singleLine {
		dst.singleLine[v] = s
	}
	for v, b := range src.starts {
		dst.starts[v] = b
	}
	for v := range src.continues {
		dst.continues[v] = struct{}{}
	}
	for v, b := range src.ends {
		dst.ends[v] = b
	}
}

// DocumentShape is the minimal view of a document AdjustForDocument
// needs: the current line count and the byte length of each line.
type DocumentShape interface {
	NumLines() int
	LineLengthBytes(line int) int
}

// AdjustForDocument forcibly confines every stored range so both
// endpoints are valid coordinates in doc and start <= end. This is used
// when ranges were produced against a document shape that may now be
// stale (e.g. diagnostics computed for an older version).
func (rm *RangeMap) AdjustForDocument(doc DocumentShape) {
	entries := rm.GetAllEntries()
	rm.ClearEverything(intPtr(doc.NumLines()))
	for _, e := range entries {
		e.Range = clampRangeToDocument(e.Range, doc)
		if err := rm.Insert(e); err != nil {
			// Values are unique by construction (they came from
			// GetAllEntries on this same map), so this cannot happen.
			panic(fmt.Sprintf("rangemap.AdjustForDocument: %v", err))
		}
	}
}

func clampRangeToDocument(r textcoord.Range, doc DocumentShape) textcoord.Range {
	start := clampCoordToDocument(r.Start, doc)
	end := clampCoordToDocument(r.End, doc)
	if end.Less(start) {
		end = start
	}
	return textcoord.Range{Start: start, End: end}
}

func clampCoordToDocument(tc textcoord.Coordinate, doc DocumentShape) textcoord.Coordinate {
	numLines := doc.NumLines()
	line := tc.Line
	if line < 0 {
		line = 0
	}
	if numLines > 0 && line > numLines-1 {
		line = numLines - 1
	}
	byteIdx := tc.Byte
	if byteIdx < 0 {
		byteIdx = 0
	}
	maxByte := doc.LineLengthBytes(line)
	if byteIdx > maxByte {
		byteIdx = maxByte
	}
	return textcoord.Coordinate{Line: line, Byte: byteIdx}
}

func intPtr(n int) *int { return &n }

// ---- indirect manipulation via text edits ----

// InsertLines inserts count lines starting at line, shifting every
// boundary at or below line down by count. A line that was already a
// continuation of some multi-line range at the insertion point remains
// a continuation of that range after the lines are inserted, and the
// inserted lines become continuations of every multi-line range that
// continues through, or ends on, line.
func (rm *RangeMap) InsertLines(line int, count int) {
	if !rm.hasLines {
		panic("rangemap.InsertLines: requires CanTrackUpdates")
	}
	if count <= 0 {
		return
	}

	var passThrough map[Value]struct{}
	if ld, ok := rm.lines[line]; ok {
		passThrough = make(map[Value]struct{}, len(ld.continues))
		for v := range ld.continues {
			passThrough[v] = struct{}{}
		}
		// A range ending on line also spans the inserted lines, since
		// its end boundary moves down below them.
		for v := range ld.ends {
			passThrough[v] = struct{}{}
		}
	}

	keys := make([]int, 0, len(rm.lines))
	for l := range rm.lines {
		if l >= line {
			keys = append(keys, l)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	for _, l := range keys {
		ld := rm.lines[l]
		delete(rm.lines, l)
		rm.lines[l+count] = ld
	}

	for v := range passThrough {
		for l := line; l < line+count; l++ {
			rm.getOrCreateLine(l).continues[v] = struct{}{}
		}
	}

	rm.numLines += count
}

// DeleteLines removes count lines starting at line, shifting later
// boundaries up by count. A boundary that was on a removed line
// collapses onto the line that now occupies position line. A value
// whose entire range lay on removed lines becomes a zero-length span at
// (line, 0); it is not removed from the map.
func (rm *RangeMap) DeleteLines(line int, count int) {
	if !rm.hasLines {
		panic("rangemap.DeleteLines: requires CanTrackUpdates")
	}
	if count <= 0 {
		return
	}

	collapsedSingle := make(map[Value]struct{})
	collapsedStart := make(map[Value]struct{})
	collapsedEnd := make(map[Value]struct{})

	for l := line; l < line+count; l++ {
		ld, ok := rm.lines[l]
		if !ok {
			continue
		}
		for v := range ld.singleLine {
			collapsedSingle[v] = struct{}{}
		}
		for v := range ld.starts {
			collapsedStart[v] = struct{}{}
		}
		for v := range ld.ends {
			collapsedEnd[v] = struct{}{}
		}
		delete(rm.lines, l)
	}

	keys := make([]int, 0, len(rm.lines))
	for l := range rm.lines {
		if l >= line+count {
			keys = append(keys, l)
		}
	}
	sort.Ints(keys)
	for _, l := range keys {
		ld := rm.lines[l]
		delete(rm.lines, l)
		rm.lines[l-count] = ld
	}

	for v := range collapsedSingle {
		rm.getOrCreateLine(line).singleLine[v] = span{0, 0}
	}
	for v := range collapsedStart {
		ld := rm.getOrCreateLine(line)
		if _, alsoEnd := collapsedEnd[v]; alsoEnd {
			ld.singleLine[v] = span{0, 0}
			continue
		}
		if endByte, endHere := ld.ends[v]; endHere {
			// The end shifted up onto the collapse line, so the range
			// is now single-line.
			delete(ld.ends, v)
			ld.singleLine[v] = span{0, endByte}
			continue
		}
		delete(ld.continues, v)
		ld.starts[v] = 0
	}
	for v := range collapsedEnd {
		if _, alsoStart := collapsedStart[v]; alsoStart {
			continue // already handled above
		}
		rm.getOrCreateLine(line).ends[v] = 0
	}

	rm.numLines -= count
	if rm.numLines < 1 {
		rm.numLines = 1
	}
}

func shiftInsert(b, tc, n int) int {
	if b >= tc {
		return b + n
	}
	return b
}

func shiftDelete(b, tc, n int) int {
	switch {
	case b < tc:
		return b
	case b < tc+n:
		return tc
	default:
		return b - n
	}
}

// InsertLineBytes inserts lengthBytes bytes at tc, shifting every
// boundary at or after tc.Byte on tc.Line to the right.
func (rm *RangeMap) InsertLineBytes(tc textcoord.Coordinate, lengthBytes int) {
	if !rm.hasLines {
		panic("rangemap.InsertLineBytes: requires CanTrackUpdates")
	}
	ld, ok := rm.lines[tc.Line]
	if !ok || lengthBytes <= 0 {
		return
	}
	for v, s := range ld.singleLine {
		ld.singleLine[v] = span{
			shiftInsert(s.start, tc.Byte, lengthBytes),
			shiftInsert(s.end, tc.Byte, lengthBytes),
		}
	}
	for v, b := range ld.starts {
		ld.starts[v] = shiftInsert(b, tc.Byte, lengthBytes)
	}
	for v, b := range ld.ends {
		ld.ends[v] = shiftInsert(b, tc.Byte, lengthBytes)
	}
}

// DeleteLineBytes deletes lengthBytes bytes starting at tc on a single
// line. A boundary exactly at tc is unaffected; one strictly inside the
// deleted region collapses to tc; one at or beyond the deletion's end
// shifts left by lengthBytes.
func (rm *RangeMap) DeleteLineBytes(tc textcoord.Coordinate, lengthBytes int) {
	if !rm.hasLines {
		panic("rangemap.DeleteLineBytes: requires CanTrackUpdates")
	}
	ld, ok := rm.lines[tc.Line]
	if !ok || lengthBytes <= 0 {
		return
	}
	for v, s := range ld.singleLine {
		ld.singleLine[v] = span{
			shiftDelete(s.start, tc.Byte, lengthBytes),
			shiftDelete(s.end, tc.Byte, lengthBytes),
		}
	}
	for v, b := range ld.starts {
		ld.starts[v] = shiftDelete(b, tc.Byte, lengthBytes)
	}
	for v, b := range ld.ends {
		ld.ends[v] = shiftDelete(b, tc.Byte, lengthBytes)
	}
}

// ---- reading entries back out ----

// GetLineEntries returns every entry intersecting line.
func (rm *RangeMap) GetLineEntries(line int) []LineEntry {
	ld, ok := rm.lines[line]
	if !ok {
		return nil
	}
	out := make([]LineEntry, 0, len(ld.singleLine)+len(ld.starts)+len(ld.continues)+len(ld.ends))
	for v, s := range ld.singleLine {
		start, end := s.start, s.end
		out = append(out, LineEntry{StartByte: &start, EndByte: &end, Value: v})
	}
	for v, b := range ld.starts {
		byteIdx := b
		out = append(out, LineEntry{StartByte: &byteIdx, Value: v})
	}
	for v := range ld.continues {
		out = append(out, LineEntry{Value: v})
	}
	for v, b := range ld.ends {
		byteIdx := b
		out = append(out, LineEntry{EndByte: &byteIdx, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// GetAllEntries reconstructs the full (Range, Value) set.
func (rm *RangeMap) GetAllEntries() []DocEntry {
	type partial struct {
		startLine, startByte int
		endLine, endByte     int
		haveStart, haveEnd   bool
	}
	parts := make(map[Value]*partial)

	for line, ld := range rm.lines {
		for v, s := range ld.singleLine {
			parts[v] = &partial{
				startLine: line, startByte: s.start,
				endLine: line, endByte: s.end,
				haveStart: true, haveEnd: true,
			}
		}
		for v, b := range ld.starts {
			p, ok := parts[v]
			if !ok {
				p = &partial{}
				parts[v] = p
			}
			p.startLine, p.startByte, p.haveStart = line, b, true
		}
		for v, b := range ld.ends {
			p, ok := parts[v]
			if !ok {
				p = &partial{}
				parts[v] = p
			}
			p.endLine, p.endByte, p.haveEnd = line, b, true
		}
	}

	out := make([]DocEntry, 0, len(parts))
	for v, p := range parts {
		if !p.haveStart || !p.haveEnd {
			panic(fmt.Sprintf("rangemap: value %d has an incomplete boundary pair", v))
		}
		out = append(out, DocEntry{
			Range: textcoord.Range{
				Start: textcoord.Coordinate{Line: p.startLine, Byte: p.startByte},
				End:   textcoord.Coordinate{Line: p.endLine, Byte: p.endByte},
			},
			Value: v,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// SelfCheck verifies invariant I3: every value is either exactly one
// single-line span, or exactly one start boundary plus exactly one end
// boundary on a strictly later line plus a continues entry on every
// intervening line, and these roles are mutually exclusive.
func (rm *RangeMap) SelfCheck() error {
	starts := make(map[Value]int)
	ends := make(map[Value]int)
	singles := make(map[Value]int)
	continuesCount := make(map[Value]int)
	startLine := make(map[Value]int)
	endLine := make(map[Value]int)

	for line, ld := range rm.lines {
		if ld.empty() {
			return fmt.Errorf("rangemap: line %d has an empty lineData entry", line)
		}
		for v := range ld.singleLine {
			singles[v]++
			if _, dup := rm.values[v]; !dup {
				return fmt.Errorf("rangemap: value %d present in line data but not in values set", v)
			}
		}
		for v := range ld.starts {
			starts[v]++
			startLine[v] = line
		}
		for v := range ld.ends {
			ends[v]++
			endLine[v] = line
		}
		for v := range ld.continues {
			continuesCount[v]++
		}
	}

	for v := range rm.values {
		isSingle := singles[v] == 1
		isMulti := starts[v] == 1 && ends[v] == 1
		if isSingle == isMulti {
			return fmt.Errorf("rangemap: value %d must be exactly one of single-line or start+end, got single=%d starts=%d ends=%d", v, singles[v], starts[v], ends[v])
		}
		if isSingle && continuesCount[v] != 0 {
			return fmt.Errorf("rangemap: single-line value %d unexpectedly has continuation markers", v)
		}
		if isMulti && endLine[v] <= startLine[v] {
			return fmt.Errorf("rangemap: value %d ends on line %d, not after its start line %d", v, endLine[v], startLine[v])
		}
		if isMulti && continuesCount[v] != endLine[v]-startLine[v]-1 {
			return fmt.Errorf("rangemap: value %d has %d continuation markers, want %d", v, continuesCount[v], endLine[v]-startLine[v]-1)
		}
	}
	for v := range singles {
		if singles[v] > 1 {
			return fmt.Errorf("rangemap: value %d has %d single-line spans", v, singles[v])
		}
	}
	for v := range starts {
		if starts[v] > 1 {
			return fmt.Errorf("rangemap: value %d has %d start boundaries", v, starts[v])
		}
	}
	for v := range ends {
		if ends[v] > 1 {
			return fmt.Errorf("rangemap: value %d has %d end boundaries", v, ends[v])
		}
	}
	return nil
}
