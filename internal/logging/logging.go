// Package logging centralizes construction of the *zap.Logger every
// other package takes as a constructor argument, following
// internal/lsp/server.go's Run method: zap.NewDevelopment(), falling
// back to zap.NewNop() if that construction itself fails.
package logging

import "go.uber.org/zap"

// New builds a development-mode zap logger (human-readable console
// output, debug level enabled) and never returns nil: construction
// failure is swallowed in favor of a no-op logger, exactly as the
// teacher's server does, since a logger failing to initialize is not
// a reason to refuse to start the LSP client.
func New() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewProduction builds a JSON-structured production logger for
// non-interactive invocations, with the same construction-failure
// fallback as New. cmd/lspclient does not currently call it.
func NewProduction() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
