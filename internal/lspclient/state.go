package lspclient

// State enumerates the LSP client's protocol lifecycle, mirroring
// original_source/lsp-protocol-state.h's LSPProtocolState.
type State int

const (
	// StateInactive is the initial state, and the state returned to
	// once a server fully shuts down (or is forcibly killed).
	StateInactive State = iota

	// StateInitializing means the "initialize" request has been sent
	// but no reply has arrived yet.
	StateInitializing

	// StateNormal means the server is operating normally: the
	// "initialize" reply arrived, "initialized" was sent, and document
	// notifications/requests can be issued.
	StateNormal

	// StateShutdown1 means "shutdown" has been sent but not replied to.
	StateShutdown1

	// StateShutdown2 means "exit" has been sent but the child has not
	// yet terminated.
	StateShutdown2

	// StateLSPError is a latched error state: either the JSON-RPC
	// transport detected a protocol error, or the LSP layer itself did
	// (an unexpected reply shape, or an error reply to initialize or
	// shutdown). The only way out is a forced shutdown.
	StateLSPError

	// StateProtocolObjectMissing and StateServerNotRunning are
	// "broken" states per the original design: detectable
	// inconsistencies between the process runner and the transport
	// that this implementation's invariants should prevent from ever
	// actually being entered. CheckStatus reports them if observed.
	StateProtocolObjectMissing
	StateServerNotRunning
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateInitializing:
		return "INITIALIZING"
	case StateNormal:
		return "NORMAL"
	case StateShutdown1:
		return "SHUTDOWN1"
	case StateShutdown2:
		return "SHUTDOWN2"
	case StateLSPError:
		return "LSP_ERROR"
	case StateProtocolObjectMissing:
		return "PROTOCOL_OBJECT_MISSING"
	case StateServerNotRunning:
		return "SERVER_NOT_RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Describe returns a human-readable sentence for the state, used by
// CheckStatus.
func (s State) Describe() string {
	switch s {
	case StateInactive:
		return "the LSP server is not running"
	case StateInitializing:
		return "the LSP server is starting up"
	case StateNormal:
		return "the LSP server is running normally"
	case StateShutdown1:
		return "the LSP server is shutting down (waiting for shutdown reply)"
	case StateShutdown2:
		return "the LSP server is shutting down (waiting for process exit)"
	case StateLSPError:
		return "the LSP server has encountered a protocol error and must be restarted"
	case StateProtocolObjectMissing:
		return "internal inconsistency: the protocol object is missing"
	case StateServerNotRunning:
		return "internal inconsistency: the process runner reports the server is not running"
	default:
		return "unknown state"
	}
}

// IsRunningNormally reports whether requests/notifications may be
// issued.
func (s State) IsRunningNormally() bool { return s == StateNormal }
