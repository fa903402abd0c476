// Package lspclient implements the LSP client lifecycle described in
// spec.md §4.E: an initialize/normal/shutdown state machine layered on
// internal/jsonrpc, per-document version bookkeeping, incremental
// didChange delivery, and diagnostic acceptance filtering.
//
// Grounded on original_source/lsp-client.h's LSPClient /
// LSPClientDocumentState (the state machine, DocumentRecord
// lifecycle, request/notification surface) mirrored against the
// teacher's internal/lsp/server.go, which speaks the same
// go.lsp.dev/protocol wire shapes from the server side.
package lspclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/conduit-lang/lspclient/internal/changerec"
	"github.com/conduit-lang/lspclient/internal/diagstore"
	"github.com/conduit-lang/lspclient/internal/jsonrpc"
	"github.com/conduit-lang/lspclient/internal/lspuri"
	"github.com/conduit-lang/lspclient/internal/procrunner"
	"github.com/conduit-lang/lspclient/internal/rangemap"
	"github.com/conduit-lang/lspclient/internal/textcoord"
	"github.com/conduit-lang/lspclient/internal/textdoc"
)

// SymbolRequestKind selects which "related location" request to issue,
// mirroring original_source/lsp-symbol-request-kind.h.
type SymbolRequestKind int

const (
	RequestDeclaration SymbolRequestKind = iota
	RequestDefinition
)

func (k SymbolRequestKind) method() string {
	switch k {
	case RequestDeclaration:
		return string(protocol.MethodTextDocumentDeclaration)
	default:
		return string(protocol.MethodTextDocumentDefinition)
	}
}

// Options configures a Client's server process and protocol behavior.
type Options struct {
	Program string
	Args    []string
	Dir     string
	Env     []string

	// URISemantics selects how file:// URIs are formed/parsed; see
	// internal/lspuri. Bound from SM_EDITOR_PYLSP_IS_CYGWIN (spec.md
	// §6) by internal/config.
	URISemantics lspuri.PathSemantics

	// StderrLogDir, if non-empty, is the directory in which the
	// server's stderr is captured to a per-instance log file (spec.md
	// §5/§6). If empty, stderr is discarded.
	StderrLogDir string

	// StderrLogBaseName names the log file (a disambiguating suffix is
	// appended if that name is already locked by another instance,
	// mirroring original_source/lsp-client.h's ExclusiveWriteFile
	// fallback).
	StderrLogBaseName string

	// SendLogDir mirrors JSON_RPC_CLIENT_SEND_LOG_DIR (spec.md §6): if
	// set, every outbound message is copied to msgNNNN.bin there.
	SendLogDir string

	// ShutdownTimeout bounds how long StopServer waits for a clean
	// shutdown sequence before forcibly killing the child.
	ShutdownTimeout time.Duration
}

func (o Options) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout > 0 {
		return o.ShutdownTimeout
	}
	return 5 * time.Second
}

// Client is the central interface between an editor and one LSP
// server child process. It is not safe for concurrent use: per
// spec.md §5, everything here runs on a single cooperative event
// loop.
type Client struct {
	logger  *zap.Logger
	opts    Options
	runner  *procrunner.Runner
	transport *jsonrpc.Transport

	state State

	documents map[string]*DocumentRecord

	initializeID int32
	shutdownID   int32

	serverCapabilities json.RawMessage
	lspError           string

	pendingErrorMessages []string

	stderrLogFile *os.File
	stderrLogPath string

	// Callbacks mirror the original's Qt signals. Each is nil-checked
	// before being invoked, so a caller only wires up the ones it
	// cares about.
	OnProtocolStateChanged func(old, new State)
	OnNumOpenFilesChanged  func(count int)
	OnPendingDiagnostics   func(path string)
	OnPendingErrorMessages func()
	OnReplyForID           func(id int32)
}

// New creates an inactive client. StartServer must be called to make
// it do anything.
func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:    logger,
		opts:      opts,
		documents: make(map[string]*DocumentRecord),
		state:     StateInactive,
	}
}

// State returns the client's current protocol state.
func (c *Client) State() State { return c.state }

func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	if c.OnProtocolStateChanged != nil {
		c.OnProtocolStateChanged(old, s)
	}
}

// CheckStatus returns a single human-readable string combining the
// protocol state, a description, pending error messages, outstanding
// and pending ID sets, and the stderr log path, per spec.md §7.
func (c *Client) CheckStatus() string {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol state: %s (%s)\n", c.state, c.state.Describe())
	if c.lspError != "" {
		fmt.Fprintf(&b, "error: %s\n", c.lspError)
	}
	if len(c.pendingErrorMessages) > 0 {
		fmt.Fprintf(&b, "%d pending error message(s):\n", len(c.pendingErrorMessages))
		for _, m := range c.pendingErrorMessages {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}
	if c.transport != nil {
		fmt.Fprintf(&b, "outstanding request IDs: %v\n", c.transport.OutstandingIDs())
		fmt.Fprintf(&b, "pending reply IDs: %v\n", c.transport.PendingReplyIDs())
		fmt.Fprintf(&b, "cancelled IDs: %v\n", c.transport.CancelledIDs())
	}
	if c.stderrLogPath != "" {
		fmt.Fprintf(&b, "stderr log: %s\n", c.stderrLogPath)
	} else {
		fmt.Fprintf(&b, "stderr log: (none)\n")
	}
	return b.String()
}

// NumOpenFiles returns the number of documents currently open w.r.t.
// the LSP protocol.
func (c *Client) NumOpenFiles() int { return len(c.documents) }

// IsFileOpen reports whether fname is open.
func (c *Client) IsFileOpen(fname string) bool {
	_, ok := c.documents[fname]
	return ok
}

// OpenFileNames returns the names of every open document.
func (c *Client) OpenFileNames() []string {
	out := make([]string, 0, len(c.documents))
	for k := range c.documents {
		out = append(out, k)
	}
	return out
}

// GetDocInfo returns the DocumentRecord for fname, if open.
func (c *Client) GetDocInfo(fname string) (*DocumentRecord, bool) {
	d, ok := c.documents[fname]
	return d, ok
}

type runnerWriter struct{ r *procrunner.Runner }

func (w runnerWriter) Write(p []byte) (int, error) {
	if err := w.r.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

var _ io.Writer = runnerWriter{}

// StartServer spawns the configured server program and begins the
// initialize handshake. It returns once the process has started and
// the initialize request has been sent; the transition to StateNormal
// (or StateLSPError, on failure) happens asynchronously as Pump/Run
// observes the reply.
func (c *Client) StartServer(ctx context.Context) error {
	if c.state != StateInactive {
		return fmt.Errorf("lspclient: StartServer requires StateInactive, got %s", c.state)
	}

	c.runner = procrunner.New(c.logger, c.opts.Program, c.opts.Args)
	if c.opts.Env != nil {
		c.runner.SetEnv(c.opts.Env)
	}
	if c.opts.Dir != "" {
		c.runner.SetWorkingDirectory(c.opts.Dir)
	}
	if err := c.runner.StartAsync(); err != nil {
		return fmt.Errorf("lspclient: failed to start %s: %w", c.opts.Program, err)
	}

	c.openStderrLog()

	c.transport = jsonrpc.New(runnerWriter{c.runner}, c.logger)
	if c.opts.SendLogDir != "" {
		dir := c.opts.SendLogDir
		c.transport.SetSendLogger(func(seq int, data []byte) {
			path := filepath.Join(dir, fmt.Sprintf("msg%04d.bin", seq))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				c.logger.Warn("failed to write JSON-RPC send log", zap.String("path", path), zap.Error(err))
			}
		})
	}

	params := initializeParams{
		ProcessID: nil,
		RootURI:   nil,
		Capabilities: clientCapabilities{
			TextDocument: &textDocumentClientCapabilities{
				PublishDiagnostics: &publishDiagnosticsClientCapabilities{
					RelatedInformation: true,
				},
			},
		},
	}
	id, err := c.transport.SendRequest(string(protocol.MethodInitialize), params)
	if err != nil {
		return fmt.Errorf("lspclient: failed to send initialize: %w", err)
	}
	c.initializeID = id
	c.setState(StateInitializing)
	return nil
}

func (c *Client) openStderrLog() {
	if c.opts.StderrLogDir == "" {
		return
	}
	base := c.opts.StderrLogBaseName
	if base == "" {
		base = "lsp-stderr.log"
	}
	path := filepath.Join(c.opts.StderrLogDir, base)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		// Name already locked by another instance: mirror
		// ExclusiveWriteFile's "choose a different name" fallback by
		// disambiguating with a short UUID suffix.
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		path = filepath.Join(c.opts.StderrLogDir, fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext))
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			c.logger.Warn("could not open a stderr log file", zap.Error(err))
			return
		}
	}
	c.stderrLogFile = f
	c.stderrLogPath = path
	fmt.Fprintf(f, "=== started %s ===\n", time.Now().UTC().Format(time.RFC3339))
}

func (c *Client) logToStderrFile(data []byte) {
	if c.stderrLogFile == nil || len(data) == 0 {
		return
	}
	if _, err := c.stderrLogFile.Write(data); err != nil {
		c.logger.Warn("failed writing to stderr log", zap.Error(err))
	}
}

// StderrLogPath returns the actual path the server's stderr is being
// logged to, which may differ from Options.StderrLogBaseName if that
// name was already in use, or be empty if no logging is configured.
func (c *Client) StderrLogPath() (string, bool) {
	return c.stderrLogPath, c.stderrLogPath != ""
}

// pump drains whatever is currently buffered from the child and feeds
// it through the transport and then the LSP-level dispatch. It is the
// one place spec.md §5's "suspension points" (I/O readiness) get
// translated into state transitions.
func (c *Client) pump() {
	if c.runner == nil {
		return
	}
	if c.runner.HasOutputData() {
		c.transport.Feed(c.runner.TakeOutputData())
	}
	if c.runner.HasErrorData() {
		c.logToStderrFile(c.runner.TakeErrorData())
	}

	if msg, broken := c.transport.ProtocolError(); broken && c.state != StateLSPError {
		c.lspError = msg
		c.setState(StateLSPError)
		return
	}

	for c.transport.HasPendingNotifications() {
		n, err := c.transport.TakeNextNotification()
		if err != nil {
			break
		}
		c.handleNotification(n.Method, n.Params)
	}

	c.checkNamedReply(&c.initializeID, c.handleInitializeReply)
	c.checkNamedReply(&c.shutdownID, c.handleShutdownReply)

	for _, id := range c.transport.PendingReplyIDs() {
		if id == c.initializeID || id == c.shutdownID {
			continue
		}
		if c.OnReplyForID != nil {
			c.OnReplyForID(id)
		}
	}
}

func (c *Client) checkNamedReply(id *int32, handle func(jsonrpc.Reply)) {
	if *id == 0 || !c.transport.HasReply(*id) {
		return
	}
	reply, err := c.transport.TakeReply(*id)
	if err != nil {
		return
	}
	*id = 0
	handle(reply)
}

func (c *Client) handleInitializeReply(reply jsonrpc.Reply) {
	if !reply.Success() {
		c.lspError = fmt.Sprintf("initialize failed: %s", reply.Err.Message)
		c.setState(StateLSPError)
		return
	}
	c.serverCapabilities = reply.Result
	if err := c.transport.SendNotification(string(protocol.MethodInitialized), struct{}{}); err != nil {
		c.lspError = fmt.Sprintf("failed to send initialized notification: %v", err)
		c.setState(StateLSPError)
		return
	}
	c.setState(StateNormal)
}

func (c *Client) handleShutdownReply(reply jsonrpc.Reply) {
	if !reply.Success() {
		c.lspError = fmt.Sprintf("shutdown failed: %s", reply.Err.Message)
		c.setState(StateLSPError)
		return
	}
	if err := c.transport.SendNotification(string(protocol.MethodExit), nil); err != nil {
		c.lspError = fmt.Sprintf("failed to send exit notification: %v", err)
		c.setState(StateLSPError)
		return
	}
	c.resetDocumentState()
	c.setState(StateShutdown2)
}

func (c *Client) resetDocumentState() {
	had := len(c.documents) > 0
	c.documents = make(map[string]*DocumentRecord)
	if had && c.OnNumOpenFilesChanged != nil {
		c.OnNumOpenFilesChanged(0)
	}
}

// ServerCapabilities returns the raw "capabilities" result of the
// initialize reply, or false if the handshake hasn't completed.
func (c *Client) ServerCapabilities() (json.RawMessage, bool) {
	return c.serverCapabilities, c.serverCapabilities != nil
}

// Run drives the client's event loop: it pumps whenever the child
// process reports new output/error data, until ctx is cancelled or
// the child terminates. Use StopServer (which internally pumps the
// same way) to perform a clean shutdown instead of cancelling ctx.
func (c *Client) Run(ctx context.Context) error {
	if c.runner == nil {
		return fmt.Errorf("lspclient: Run called before StartServer")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.runner.Done():
			c.handleChildTerminated()
			return nil
		case <-c.runner.Changed():
			c.pump()
		}
	}
}

func (c *Client) handleChildTerminated() {
	c.transport.HandleChildTerminated()
	if msg, broken := c.transport.ProtocolError(); broken && c.state != StateLSPError {
		c.lspError = msg
		c.setState(StateLSPError)
		return
	}
	c.resetDocumentState()
	c.setState(StateInactive)
}

// StopServer sends "shutdown", then drives the event loop forward
// (exactly as Run does) until the full shutdown sequence completes or
// ctx's deadline (default Options.ShutdownTimeout) expires, in which
// case the child is killed forcibly. Requires StateNormal.
func (c *Client) StopServer(ctx context.Context) error {
	if c.state != StateNormal {
		return fmt.Errorf("lspclient: StopServer requires StateNormal, got %s", c.state)
	}

	id, err := c.transport.SendRequest(string(protocol.MethodShutdown), nil)
	if err != nil {
		return fmt.Errorf("lspclient: failed to send shutdown: %w", err)
	}
	c.shutdownID = id
	c.setState(StateShutdown1)

	deadline := time.After(c.opts.shutdownTimeout())
	for {
		select {
		case <-ctx.Done():
			c.forciblyShutDown()
			return ctx.Err()
		case <-deadline:
			c.forciblyShutDown()
			return fmt.Errorf("lspclient: shutdown timed out after %s", c.opts.shutdownTimeout())
		case <-c.runner.Done():
			c.handleChildTerminated()
			return nil
		case <-c.runner.Changed():
			c.pump()
			if c.state == StateInactive {
				return nil
			}
		}
	}
}

// forciblyShutDown kills the child immediately and resets to
// StateInactive, used when an orderly shutdown doesn't complete in
// time or a latched error leaves no other recovery path.
func (c *Client) forciblyShutDown() {
	if c.runner != nil {
		_ = c.runner.KillSync(2 * time.Second)
	}
	c.resetDocumentState()
	c.setState(StateInactive)
}

// ForceShutdown is the public entry point for abandoning the server
// outside of the orderly StopServer sequence (e.g. after StateLSPError).
func (c *Client) ForceShutdown() {
	c.forciblyShutDown()
}

// ---- document notifications ----

// DidOpen sends "textDocument/didOpen" and registers a DocumentRecord.
// Requires StateNormal, an absolute/normalized path, and that the
// document is not already open.
func (c *Client) DidOpen(path, languageID string, version textcoord.DocumentVersion, contents string) error {
	if !c.state.IsRunningNormally() {
		return fmt.Errorf("lspclient: DidOpen requires StateNormal, got %s", c.state)
	}
	if !lspuri.IsValidLSPPath(path) {
		return fmt.Errorf("lspclient: %q is not a valid absolute forward-slash path", path)
	}
	if c.IsFileOpen(path) {
		return fmt.Errorf("lspclient: %q is already open", path)
	}

	u, err := lspuri.ToURI(path, c.opts.URISemantics)
	if err != nil {
		return fmt.Errorf("lspclient: DidOpen: %w", err)
	}

	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        protocol.DocumentURI(u),
			LanguageID: protocol.LanguageIdentifier(languageID),
			Version:    version.AsLSPVersion(),
			Text:       contents,
		},
	}
	if err := c.transport.SendNotification(string(protocol.MethodTextDocumentDidOpen), params); err != nil {
		return fmt.Errorf("lspclient: DidOpen: %w", err)
	}

	doc := textdoc.NewFromLines(strings.Split(contents, "\n"))
	rec := changerec.New(doc)
	diags := diagstore.New(doc.NumLines())
	doc.AddObserver(rec)
	doc.AddObserver(diags)
	rec.BeginTracking(version, doc.NumLines())

	c.documents[path] = &DocumentRecord{
		Path:                  path,
		LastSentVersion:       version,
		LastSentContents:      contents,
		WaitingForDiagnostics: true,
		doc:                   doc,
		recorder:              rec,
		diagnostics:           diags,
	}
	if c.OnNumOpenFilesChanged != nil {
		c.OnNumOpenFilesChanged(len(c.documents))
	}
	return nil
}

// DidChange sends "textDocument/didChange" with an incremental change
// set and replays the same changes onto the DocumentRecord's local
// copy of the contents. Requires the document be open.
func (c *Client) DidChange(path string, version textcoord.DocumentVersion, changes []ContentChange) error {
	if !c.state.IsRunningNormally() {
		return fmt.Errorf("lspclient: DidChange requires StateNormal, got %s", c.state)
	}
	doc, ok := c.documents[path]
	if !ok {
		return fmt.Errorf("lspclient: DidChange: %q is not open", path)
	}

	u, err := lspuri.ToURI(path, c.opts.URISemantics)
	if err != nil {
		return fmt.Errorf("lspclient: DidChange: %w", err)
	}

	wireChanges := make([]protocol.TextDocumentContentChangeEvent, 0, len(changes))
	for _, ch := range changes {
		event := protocol.TextDocumentContentChangeEvent{Text: ch.Text}
		if ch.Range != nil {
			event.Range = &protocol.Range{
				Start: protocol.Position{Line: uint32(ch.Range.Start.Line), Character: uint32(ch.Range.Start.Byte)},
				End:   protocol.Position{Line: uint32(ch.Range.End.Line), Character: uint32(ch.Range.End.Byte)},
			}
		}
		wireChanges = append(wireChanges, event)
		doc.LastSentContents = applyContentChange(doc.LastSentContents, ch)

		if doc.doc != nil {
			if ch.Range == nil {
				doc.doc.ReplaceAll(strings.Split(ch.Text, "\n"))
			} else {
				doc.doc.ApplyRangeEdit(*ch.Range, []byte(ch.Text))
			}
		}
	}
	if doc.doc != nil && doc.recorder != nil {
		doc.recorder.BeginTracking(version, doc.doc.NumLines())
	}

	params := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(u)},
			Version:                version.AsLSPVersion(),
		},
		ContentChanges: wireChanges,
	}
	if err := c.transport.SendNotification(string(protocol.MethodTextDocumentDidChange), params); err != nil {
		return fmt.Errorf("lspclient: DidChange: %w", err)
	}

	doc.LastSentVersion = version
	doc.WaitingForDiagnostics = true
	return nil
}

// DidClose sends "textDocument/didClose" and forgets the document.
func (c *Client) DidClose(path string) error {
	if !c.state.IsRunningNormally() {
		return fmt.Errorf("lspclient: DidClose requires StateNormal, got %s", c.state)
	}
	if _, ok := c.documents[path]; !ok {
		return fmt.Errorf("lspclient: DidClose: %q is not open", path)
	}

	u, err := lspuri.ToURI(path, c.opts.URISemantics)
	if err != nil {
		return fmt.Errorf("lspclient: DidClose: %w", err)
	}
	params := protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(u)},
	}
	if err := c.transport.SendNotification(string(protocol.MethodTextDocumentDidClose), params); err != nil {
		return fmt.Errorf("lspclient: DidClose: %w", err)
	}

	delete(c.documents, path)
	if c.OnNumOpenFilesChanged != nil {
		c.OnNumOpenFilesChanged(len(c.documents))
	}
	return nil
}

// ---- diagnostics ----

// HasPendingDiagnostics reports whether any open document has
// diagnostics awaiting TakePendingDiagnosticsFor.
func (c *Client) HasPendingDiagnostics() bool {
	for _, d := range c.documents {
		if d.hasPending {
			return true
		}
	}
	return false
}

// FileWithPendingDiagnostics returns the path of some document with
// pending diagnostics, or false if none.
func (c *Client) FileWithPendingDiagnostics() (string, bool) {
	for path, d := range c.documents {
		if d.hasPending {
			return path, true
		}
	}
	return "", false
}

// TakePendingDiagnosticsFor returns and clears the pending diagnostics
// for path. Requires that path have pending diagnostics.
func (c *Client) TakePendingDiagnosticsFor(path string) ([]diagstore.Diagnostic, error) {
	doc, ok := c.documents[path]
	if !ok || !doc.hasPending {
		return nil, fmt.Errorf("lspclient: %q has no pending diagnostics", path)
	}
	diags := doc.pendingDiagnostics
	doc.pendingDiagnostics = nil
	doc.hasPending = false
	return diags, nil
}

// GetDiagnosticAt returns the diagnostic covering pos in path's live,
// edit-tracked diagnostic store, if any. Returns false if path is not
// open or has never had a publishDiagnostics installed.
func (c *Client) GetDiagnosticAt(path string, pos textcoord.Coordinate) (diagstore.Diagnostic, bool) {
	doc, ok := c.documents[path]
	if !ok || doc.diagnostics == nil {
		return diagstore.Diagnostic{}, false
	}
	return doc.diagnostics.GetDiagnosticAt(pos)
}

// GetAdjacentDiagnosticLocation returns the start coordinate of the
// next (forward=true) or previous (forward=false) diagnostic relative
// to pos in path's live diagnostic store, wrapping around the
// document. Returns false if path is not open or has no diagnostics.
func (c *Client) GetAdjacentDiagnosticLocation(path string, pos textcoord.Coordinate, forward bool) (textcoord.Coordinate, bool) {
	doc, ok := c.documents[path]
	if !ok || doc.diagnostics == nil {
		return textcoord.Coordinate{}, false
	}
	return doc.diagnostics.GetAdjacentDiagnosticLocation(pos, forward)
}

// GetDiagnosticLineEntries returns the raw range-map entries
// intersecting line in path's live diagnostic store, for callers (e.g.
// a gutter renderer) that want the low-level view rather than
// reconstructed Diagnostic values.
func (c *Client) GetDiagnosticLineEntries(path string, line int) []rangemap.LineEntry {
	doc, ok := c.documents[path]
	if !ok || doc.diagnostics == nil {
		return nil
	}
	return doc.diagnostics.GetLineEntries(line)
}

// ---- error messages ----

func (c *Client) addErrorMessage(msg string) {
	c.pendingErrorMessages = append(c.pendingErrorMessages, msg)
	if c.OnPendingErrorMessages != nil {
		c.OnPendingErrorMessages()
	}
}

func (c *Client) HasPendingErrorMessages() bool { return len(c.pendingErrorMessages) > 0 }

func (c *Client) NumPendingErrorMessages() int { return len(c.pendingErrorMessages) }

// TakePendingErrorMessage returns and removes the oldest pending error
// message. Requires HasPendingErrorMessages().
func (c *Client) TakePendingErrorMessage() (string, error) {
	if len(c.pendingErrorMessages) == 0 {
		return "", fmt.Errorf("lspclient: no pending error messages")
	}
	msg := c.pendingErrorMessages[0]
	c.pendingErrorMessages = c.pendingErrorMessages[1:]
	return msg, nil
}

// ---- requests ----

// RequestRelatedLocation sends a textDocument/declaration or
// textDocument/definition request and returns its ID.
func (c *Client) RequestRelatedLocation(kind SymbolRequestKind, path string, pos textcoord.Coordinate) (int32, error) {
	if !c.state.IsRunningNormally() {
		return 0, fmt.Errorf("lspclient: RequestRelatedLocation requires StateNormal, got %s", c.state)
	}
	if !c.IsFileOpen(path) {
		return 0, fmt.Errorf("lspclient: RequestRelatedLocation: %q is not open", path)
	}
	u, err := lspuri.ToURI(path, c.opts.URISemantics)
	if err != nil {
		return 0, fmt.Errorf("lspclient: RequestRelatedLocation: %w", err)
	}
	params := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(u)},
		Position:     protocol.Position{Line: uint32(pos.Line), Character: uint32(pos.Byte)},
	}
	return c.transport.SendRequest(kind.method(), params)
}

// RequestHover sends a textDocument/hover request.
func (c *Client) RequestHover(path string, pos textcoord.Coordinate) (int32, error) {
	return c.sendPositionRequest(string(protocol.MethodTextDocumentHover), path, pos)
}

// RequestCompletion sends a textDocument/completion request.
func (c *Client) RequestCompletion(path string, pos textcoord.Coordinate) (int32, error) {
	return c.sendPositionRequest(string(protocol.MethodTextDocumentCompletion), path, pos)
}

func (c *Client) sendPositionRequest(method, path string, pos textcoord.Coordinate) (int32, error) {
	if !c.state.IsRunningNormally() {
		return 0, fmt.Errorf("lspclient: %s requires StateNormal, got %s", method, c.state)
	}
	if !c.IsFileOpen(path) {
		return 0, fmt.Errorf("lspclient: %s: %q is not open", method, path)
	}
	u, err := lspuri.ToURI(path, c.opts.URISemantics)
	if err != nil {
		return 0, fmt.Errorf("lspclient: %s: %w", method, err)
	}
	params := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(u)},
		Position:     protocol.Position{Line: uint32(pos.Line), Character: uint32(pos.Byte)},
	}
	return c.transport.SendRequest(method, params)
}

// SendRequest forwards an arbitrary method/params pair, returning its
// ID. The reply (once it arrives) surfaces via OnReplyForID, unless
// method is "initialize" or "shutdown", which this client manages
// itself.
func (c *Client) SendRequest(method string, params interface{}) (int32, error) {
	if !c.state.IsRunningNormally() {
		return 0, fmt.Errorf("lspclient: SendRequest requires StateNormal, got %s", c.state)
	}
	return c.transport.SendRequest(method, params)
}

// HasReplyForID / TakeReplyForID / CancelRequestWithID proxy directly
// to the transport, refusing IDs this client manages internally.
func (c *Client) HasReplyForID(id int32) bool {
	if id == c.initializeID || id == c.shutdownID {
		return false
	}
	return c.transport.HasReply(id)
}

func (c *Client) TakeReplyForID(id int32) (jsonrpc.Reply, error) {
	if id == c.initializeID || id == c.shutdownID {
		return jsonrpc.Reply{}, fmt.Errorf("lspclient: id %d is reserved for internal handshake bookkeeping", id)
	}
	return c.transport.TakeReply(id)
}

func (c *Client) CancelRequestWithID(id int32) {
	c.transport.Cancel(id)
}

// ---- inbound notification dispatch ----

func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case string(protocol.MethodTextDocumentPublishDiagnostics):
		c.handlePublishDiagnostics(params)
	default:
		c.addErrorMessage(fmt.Sprintf("received unsupported notification method %q", method))
	}
}

type wirePublishDiagnosticsParams struct {
	URI         protocol.DocumentURI   `json:"uri"`
	Version     *int64                 `json:"version,omitempty"`
	Diagnostics []protocol.Diagnostic  `json:"diagnostics"`
}

// handlePublishDiagnostics implements spec.md §4.E's acceptance
// filter: the URI must resolve to a currently-open path, the version
// must be present and non-negative, and it must equal that document's
// last-sent version. Anything else is silently dropped (but logged),
// per spec.md §9's note that the alternative ("fall back to most
// recent matching version") is a deliberately unresolved open
// question — this implementation keeps the stricter behavior.
func (c *Client) handlePublishDiagnostics(raw json.RawMessage) {
	var params wirePublishDiagnosticsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		c.logger.Warn("dropping malformed publishDiagnostics", zap.Error(err))
		return
	}

	path, err := lspuri.FromURI(string(params.URI), c.opts.URISemantics)
	if err != nil {
		c.logger.Info("dropping publishDiagnostics with unparseable URI", zap.String("uri", string(params.URI)), zap.Error(err))
		return
	}
	doc, open := c.documents[path]
	if !open {
		c.logger.Info("dropping publishDiagnostics for a document that is not open", zap.String("path", path))
		return
	}
	if params.Version == nil || *params.Version < 0 {
		c.logger.Info("dropping publishDiagnostics with missing or negative version", zap.String("path", path))
		return
	}
	version := textcoord.DocumentVersion(*params.Version)
	if version != doc.LastSentVersion {
		c.logger.Info("dropping stale publishDiagnostics",
			zap.String("path", path),
			zap.Int64("got", int64(version)),
			zap.Int64("want", int64(doc.LastSentVersion)))
		return
	}

	diags := make([]diagstore.Diagnostic, 0, len(params.Diagnostics))
	for _, d := range params.Diagnostics {
		diags = append(diags, convertWireDiagnostic(d, c.opts.URISemantics))
	}

	if doc.recorder == nil || doc.diagnostics == nil {
		// DocumentRecord wasn't built by DidOpen (the live-tracking
		// fields were never installed); fall back to the plain
		// snapshot it has always supported.
		doc.pendingDiagnostics = diags
	} else {
		numLines, ok := doc.recorder.NumLinesAtVersion(version)
		if !ok {
			// The accepted version must have been begin-tracked at
			// DidOpen or DidChange time; if it wasn't (invariant
			// violation), fall back to the document's current shape
			// rather than drop diagnostics the editor is expecting.
			numLines = doc.doc.NumLines()
		}
		// Re-anchor the document's single live store in place (it
		// stays registered as an observer on doc.doc, so edits after
		// this point keep tracking it directly without waiting for
		// another publishDiagnostics).
		doc.diagnostics.ClearEverything(numLines)
		doc.diagnostics.SetOriginVersion(version)
		for _, diag := range diags {
			if _, err := doc.diagnostics.InsertDiagnostic(diag.Range, diag.Record); err != nil {
				c.logger.Info("dropping one diagnostic with an invalid or duplicate range",
					zap.String("path", path), zap.Error(err))
			}
		}
		if doc.recorder.IsTracking(version) {
			if err := doc.recorder.ApplyChangesToDiagnostics(doc.diagnostics); err != nil {
				c.logger.Warn("failed to roll diagnostics forward to current document state",
					zap.String("path", path), zap.Error(err))
			}
		}
		doc.pendingDiagnostics = doc.diagnostics.AllDiagnostics()
	}
	doc.hasPending = true
	doc.WaitingForDiagnostics = false

	if c.OnPendingDiagnostics != nil {
		c.OnPendingDiagnostics(path)
	}
}

func convertWireDiagnostic(d protocol.Diagnostic, semantics lspuri.PathSemantics) diagstore.Diagnostic {
	related := make([]diagstore.RelatedLocation, 0, len(d.RelatedInformation))
	for _, ri := range d.RelatedInformation {
		file, err := lspuri.FromURI(string(ri.Location.URI), semantics)
		if err != nil {
			file = string(ri.Location.URI)
		}
		related = append(related, diagstore.RelatedLocation{
			File:    file,
			Line:    int(ri.Location.Range.Start.Line),
			Message: ri.Message,
		})
	}

	var code string
	if d.Code != nil {
		code = fmt.Sprintf("%v", d.Code)
	}

	return diagstore.Diagnostic{
		Range: textcoord.Range{
			Start: textcoord.Coordinate{Line: int(d.Range.Start.Line), Byte: int(d.Range.Start.Character)},
			End:   textcoord.Coordinate{Line: int(d.Range.End.Line), Byte: int(d.Range.End.Character)},
		},
		Record: diagstore.DiagnosticRecord{
			Severity: convertWireSeverity(d.Severity),
			Message:  d.Message,
			Source:   d.Source,
			Code:     code,
			Related:  related,
		},
	}
}

func convertWireSeverity(s protocol.DiagnosticSeverity) diagstore.Severity {
	switch s {
	case protocol.DiagnosticSeverityWarning:
		return diagstore.SeverityWarning
	case protocol.DiagnosticSeverityInformation:
		return diagstore.SeverityInformation
	case protocol.DiagnosticSeverityHint:
		return diagstore.SeverityHint
	default:
		return diagstore.SeverityError
	}
}

// ---- outbound initialize envelope ----
//
// go.lsp.dev/protocol's ClientCapabilities is a large, deeply nested
// struct covering capabilities this client never needs to announce.
// Rather than populate it in full, these request-only local types
// model exactly the minimum envelope spec.md §4.E requires (null
// processId/rootUri, and
// textDocument.publishDiagnostics.relatedInformation = true); they
// are marshaled with the same encoding/json the rest of this package
// uses for every other LSP message.

type initializeParams struct {
	ProcessID    *int32             `json:"processId"`
	RootURI      *string            `json:"rootUri"`
	Capabilities clientCapabilities `json:"capabilities"`
}

type clientCapabilities struct {
	TextDocument *textDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type textDocumentClientCapabilities struct {
	PublishDiagnostics *publishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
}

type publishDiagnosticsClientCapabilities struct {
	RelatedInformation bool `json:"relatedInformation"`
}
