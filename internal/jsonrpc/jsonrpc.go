// Package jsonrpc implements the framed JSON-RPC 2.0 transport that
// carries LSP traffic to and from a child server process: it frames
// and deframes Content-Length-delimited messages, allocates and
// tracks request IDs, and classifies inbound traffic into replies and
// notifications.
//
// Grounded on original_source/json-rpc-client.h's JSON_RPC_Client:
// m_nextRequestID/getNextRequestID becomes allocateID, m_outstandingRequests/
// m_pendingReplies/m_canceledRequests become the three maps on
// Transport, m_pendingNotifications becomes the notifications queue,
// m_protocolError becomes the latched ProtocolError. The header/body
// framing and MessageParseResult enum (innerProcessOutputData) are
// reproduced directly in decodeOneMessage below.
//
// We hand-roll the framing and state machine because spec.md §4.D
// requires the exact has-reply/take-reply/cancel/protocol-error-latch
// contract, which go.lsp.dev/jsonrpc2's Conn does not expose in this
// shape. We do reuse that package's Code and Error types so a
// JSON-RPC error value constructed here round-trips through the same
// wire representation the teacher's internal/lsp/server.go produces
// when it replies with a jsonrpc2.Error.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// MaxRequestID is the largest legal JSON-RPC ID this transport will
// allocate: LSP requires IDs fit in a 32-bit signed integer.
const MaxRequestID = int32(1)<<31 - 1

// ParseResult enumerates the outcomes of attempting to extract one
// message from a receive buffer, mirroring MessageParseResult in
// original_source/json-rpc-client.h.
type ParseResult int

const (
	ParseOneMessage ParseResult = iota
	ParseEmpty
	ParseUnterminatedHeaders
	ParseUnterminatedHeaderLine
	ParseIncompleteBody
	ParsePriorError
)

func (r ParseResult) String() string {
	switch r {
	case ParseOneMessage:
		return "one message"
	case ParseEmpty:
		return "empty"
	case ParseUnterminatedHeaders:
		return "unterminated headers"
	case ParseUnterminatedHeaderLine:
		return "unterminated header line"
	case ParseIncompleteBody:
		return "incomplete body"
	case ParsePriorError:
		return "prior error"
	default:
		return "unknown"
	}
}

// wireRequest is the JSON shape of an outbound request.
type wireRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int32       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// wireNotification is the JSON shape of an outbound notification.
type wireNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// inboundMessage is used to classify an arbitrary decoded message: it
// has an ID iff it is a request or a reply, a Method iff it is a
// request or notification, and Result/Error iff it is a reply.
type inboundMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *jsonrpc2.Error  `json:"error,omitempty"`
}

// Notification is a received server->client notification awaiting
// consumption.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Reply is a taken reply: exactly one of Result or Err is set.
type Reply struct {
	Result json.RawMessage
	Err    *jsonrpc2.Error
}

// Success reports whether the reply represents a successful result.
func (r Reply) Success() bool { return r.Err == nil }

// Transport implements the framed JSON-RPC 2.0 protocol described in
// spec.md §4.D. It is not safe for concurrent use: like the rest of
// this module, it is meant to run on a single cooperative event loop
// (spec.md §5).
type Transport struct {
	logger *zap.Logger
	out    io.Writer

	nextID int32

	outstanding map[int32]struct{}
	pending     map[int32]Reply
	cancelled   map[int32]struct{}

	notifications []Notification

	recvBuf bytes.Buffer

	protocolErr *string

	// sendLogDir, if non-empty, mirrors JSON_RPC_CLIENT_SEND_LOG_DIR
	// (spec.md §6): every outbound message is additionally written to
	// msg<NNNN>.bin there.
	sendLogDir string
	sendLogSeq int
	sendLogger func(seq int, data []byte)
}

// New creates a Transport that writes framed outbound messages to out
// and expects Feed to be called with inbound bytes as they arrive.
func New(out io.Writer, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		logger:      logger,
		out:         out,
		nextID:      1,
		outstanding: make(map[int32]struct{}),
		pending:     make(map[int32]Reply),
		cancelled:   make(map[int32]struct{}),
	}
}

// SetSendLogger installs a callback invoked with every outbound
// message's raw bytes (header included), in send order, used by
// internal/lspclient to implement the JSON_RPC_CLIENT_SEND_LOG_DIR
// debugging hook from spec.md §6.
func (t *Transport) SetSendLogger(f func(seq int, data []byte)) {
	t.sendLogger = f
}

func (t *Transport) idInUse(id int32) bool {
	if _, ok := t.outstanding[id]; ok {
		return true
	}
	if _, ok := t.pending[id]; ok {
		return true
	}
	if _, ok := t.cancelled[id]; ok {
		return true
	}
	return false
}

// nextCandidateID returns id+1, wrapping to 1 once id reaches
// MaxRequestID instead of incrementing past it — MaxRequestID is
// 2^31-1, so a plain id+1 at that value overflows int32 to a negative
// number, which would violate invariant I5 ("IDs are positive").
func nextCandidateID(id int32) int32 {
	if id >= MaxRequestID {
		return 1
	}
	return id + 1
}

// allocateID returns the next unused positive ID, wrapping at
// MaxRequestID back to 1 and skipping any ID still live in one of the
// three disjoint sets (invariant I5).
func (t *Transport) allocateID() int32 {
	id := t.nextID
	if id < 1 {
		id = 1
	}
	for t.idInUse(id) {
		id = nextCandidateID(id)
	}
	t.nextID = nextCandidateID(id)
	return id
}

func frame(body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return buf.Bytes()
}

func (t *Transport) send(body []byte) error {
	data := frame(body)
	if t.sendLogger != nil {
		t.sendLogSeq++
		t.sendLogger(t.sendLogSeq, data)
	}
	_, err := t.out.Write(data)
	if err != nil {
		return fmt.Errorf("jsonrpc: write: %w", err)
	}
	return nil
}

// ProtocolError reports whether this transport has latched a protocol
// error, and if so, its diagnostic string.
func (t *Transport) ProtocolError() (string, bool) {
	if t.protocolErr == nil {
		return "", false
	}
	return *t.protocolErr, true
}

func (t *Transport) setProtocolError(msg string) {
	if t.protocolErr != nil {
		return
	}
	t.logger.Warn("jsonrpc protocol error", zap.String("message", msg))
	t.protocolErr = &msg
}

// SendRequest allocates a fresh ID, serializes and frames method/params
// as a request, and writes it to the child. It fails when a protocol
// error has already been latched, or when marshalling or writing the
// message fails.
func (t *Transport) SendRequest(method string, params interface{}) (int32, error) {
	if msg, broken := t.ProtocolError(); broken {
		return 0, fmt.Errorf("jsonrpc: cannot send request: protocol error: %s", msg)
	}
	id := t.allocateID()
	body, err := json.Marshal(wireRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return 0, fmt.Errorf("jsonrpc: marshal request %s: %w", method, err)
	}
	if err := t.send(body); err != nil {
		return 0, err
	}
	t.outstanding[id] = struct{}{}
	return id, nil
}

// SendNotification serializes and frames method/params as a
// notification; no ID is allocated and no reply is ever expected.
func (t *Transport) SendNotification(method string, params interface{}) error {
	if msg, broken := t.ProtocolError(); broken {
		return fmt.Errorf("jsonrpc: cannot send notification: protocol error: %s", msg)
	}
	body, err := json.Marshal(wireNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("jsonrpc: marshal notification %s: %w", method, err)
	}
	return t.send(body)
}

// HasReply reports whether a reply for id has been received and not
// yet taken.
func (t *Transport) HasReply(id int32) bool {
	_, ok := t.pending[id]
	return ok
}

// TakeReply consumes and returns the reply for id, fully retiring the
// ID (it becomes legal to reuse after this call). Requires
// HasReply(id).
func (t *Transport) TakeReply(id int32) (Reply, error) {
	reply, ok := t.pending[id]
	if !ok {
		return Reply{}, fmt.Errorf("jsonrpc: no pending reply for id %d", id)
	}
	delete(t.pending, id)
	return reply, nil
}

// OutstandingIDs returns the IDs of requests sent but not yet replied
// to.
func (t *Transport) OutstandingIDs() []int32 {
	return keysOf(t.outstanding)
}

// PendingReplyIDs returns the IDs of replies received but not yet
// taken.
func (t *Transport) PendingReplyIDs() []int32 {
	return keysOf(t.pending)
}

// CancelledIDs returns the IDs cancelled while still outstanding, for
// which an eventual reply will be silently discarded.
func (t *Transport) CancelledIDs() []int32 {
	return keysOf(t.cancelled)
}

func keysOf(m map[int32]struct{}) []int32 {
	out := make([]int32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Cancel moves an outstanding request's ID to the cancelled set (so
// its eventual reply is discarded on arrival) or, if the reply already
// arrived, discards it immediately.
func (t *Transport) Cancel(id int32) {
	if _, ok := t.pending[id]; ok {
		delete(t.pending, id)
		return
	}
	if _, ok := t.outstanding[id]; ok {
		delete(t.outstanding, id)
		t.cancelled[id] = struct{}{}
	}
}

// HasPendingNotifications reports whether any inbound notifications
// are waiting to be consumed.
func (t *Transport) HasPendingNotifications() bool {
	return len(t.notifications) > 0
}

// TakeNextNotification returns and removes the oldest pending
// notification. Requires HasPendingNotifications().
func (t *Transport) TakeNextNotification() (Notification, error) {
	if len(t.notifications) == 0 {
		return Notification{}, fmt.Errorf("jsonrpc: no pending notifications")
	}
	n := t.notifications[0]
	t.notifications = t.notifications[1:]
	return n, nil
}

// Feed appends newly-received bytes to the internal receive buffer and
// extracts as many complete messages as it can, dispatching each one
// to the pending-reply map or the notification queue, in arrival
// order. It stops (without error) once the buffer holds an incomplete
// message, or immediately if a protocol error is already latched.
func (t *Transport) Feed(data []byte) {
	if t.protocolErr != nil {
		return
	}
	t.recvBuf.Write(data)
	for {
		body, result, err := decodeOneMessage(&t.recvBuf)
		if err != nil {
			t.setProtocolError(err.Error())
			return
		}
		if result != ParseOneMessage {
			return
		}
		t.dispatch(body)
	}
}

// HandleChildTerminated must be called when the child process exits.
// If the receive buffer holds a partial message, that is itself a
// protocol error (per spec.md §4.D).
func (t *Transport) HandleChildTerminated() {
	if t.protocolErr != nil {
		return
	}
	if t.recvBuf.Len() == 0 {
		return
	}
	_, result, err := decodeOneMessage(&t.recvBuf)
	if err != nil {
		t.setProtocolError(err.Error())
		return
	}
	if result != ParseOneMessage {
		t.setProtocolError(fmt.Sprintf("child process terminated with a partial message in flight (%s)", result))
	}
}

func (t *Transport) dispatch(body []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.setProtocolError(fmt.Sprintf("malformed JSON-RPC message body: %v", err))
		return
	}
	if msg.ID == nil {
		if msg.Method == "" {
			t.setProtocolError("message has neither id nor method")
			return
		}
		t.notifications = append(t.notifications, Notification{Method: msg.Method, Params: msg.Params})
		return
	}

	id, err := parseMessageID(*msg.ID)
	if err != nil {
		t.setProtocolError(fmt.Sprintf("invalid id in reply: %v", err))
		return
	}

	if msg.Method != "" {
		// A request from the server back to us; out of scope per
		// spec.md §6 ("any other inbound method is kept as a pending
		// error message"). It is queued with the notifications so
		// internal/lspclient surfaces it as one; no reply is sent.
		t.notifications = append(t.notifications, Notification{Method: msg.Method, Params: msg.Params})
		return
	}

	if _, wasCancelled := t.cancelled[id]; wasCancelled {
		delete(t.cancelled, id)
		return
	}
	if _, wasOutstanding := t.outstanding[id]; !wasOutstanding {
		t.setProtocolError(fmt.Sprintf("received reply for id %d that was never sent", id))
		return
	}
	delete(t.outstanding, id)
	t.pending[id] = Reply{Result: msg.Result, Err: msg.Error}
}

func parseMessageID(raw json.RawMessage) (int32, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("id is not an integer: %s", string(raw))
	}
	if n <= 0 || n > int64(MaxRequestID) {
		return 0, fmt.Errorf("id %d is not a positive 32-bit integer", n)
	}
	return int32(n), nil
}

// decodeOneMessage attempts to extract one Content-Length-framed
// message from buf. On ParseOneMessage, the message (headers and body)
// is consumed from buf and the body is returned. On any other result,
// buf is left untouched so a later call (once more data has arrived)
// can retry from the same point. A structural problem with data that
// *has* arrived (bad header line, bad/zero Content-Length) is reported
// as an error, distinct from "not enough data yet".
func decodeOneMessage(buf *bytes.Buffer) ([]byte, ParseResult, error) {
	data := buf.Bytes()
	if len(data) == 0 {
		return nil, ParseEmpty, nil
	}

	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		// Could be an unterminated header block, or (more commonly)
		// just not enough data yet. We only call this an error once
		// we've seen a header line that itself lacks a terminator
		// within what we do have.
		if hasUnterminatedHeaderLine(data) {
			return nil, ParseUnterminatedHeaderLine, fmt.Errorf("header line is not terminated by CRLF")
		}
		return nil, ParseUnterminatedHeaders, nil
	}

	headerBlock := data[:headerEnd]
	contentLength := -1
	for _, line := range strings.Split(string(headerBlock), "\r\n") {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ParseUnterminatedHeaderLine, fmt.Errorf("malformed header line %q", line)
		}
		if !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue // other headers are ignored per spec.md §4.D
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, ParseUnterminatedHeaderLine, fmt.Errorf("invalid Content-Length value %q", value)
		}
		contentLength = n
	}
	if contentLength < 0 {
		return nil, ParseUnterminatedHeaderLine, fmt.Errorf("message is missing a Content-Length header")
	}
	if contentLength == 0 {
		return nil, ParseUnterminatedHeaderLine, fmt.Errorf("Content-Length: 0 is not a valid message")
	}

	bodyStart := headerEnd + 4
	if len(data) < bodyStart+contentLength {
		return nil, ParseIncompleteBody, nil
	}

	body := make([]byte, contentLength)
	copy(body, data[bodyStart:bodyStart+contentLength])
	buf.Next(bodyStart + contentLength)
	return body, ParseOneMessage, nil
}

// hasUnterminatedHeaderLine reports whether data contains a header
// line (terminated by \n) that itself is not terminated by \r\n,
// which would indicate a malformed stream rather than simply
// not-yet-arrived data.
func hasUnterminatedHeaderLine(data []byte) bool {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return false
	}
	return idx == 0 || data[idx-1] != '\r'
}

// NewInvalidParamsError constructs a jsonrpc2.Error with the standard
// InvalidParams code, used by internal/lspclient when surfacing a
// locally-detected validation failure in the same shape as errors
// that arrive over the wire.
func NewInvalidParamsError(message string) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: message}
}
