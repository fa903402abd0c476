// Package ui holds the cmd/lspclient CLI's output helpers: colorized
// error/success messages, a fuzzy-match suggester, a spinner, and
// simple tables — adapted from the teacher's generic CLI reporting
// helpers onto the lspclient domain (server names, protocol states,
// stderr log paths) instead of Conduit's resources/patterns/builds.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message.
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures a formatted CLI message.
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError builds a standardized multi-line CLI message.
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "✗"
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "!"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "i"
	}

	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   -> %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to w.
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message.
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("done %s", message)
}

// WriteSuccess writes a success message to w.
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ServerProgramNotFoundError reports that the requested server name
// (as passed to `lspclient attach <name>`) matches none of the
// configured SM_EDITOR_*_PROGRAM variables, with fuzzy-matched
// suggestions among the names that are configured.
func ServerProgramNotFoundError(name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "SERVER NOT CONFIGURED",
		Problem:     fmt.Sprintf("no configured server program named %q.", name),
		Suggestions: suggestions,
		HelpCommands: []string{
			"List configured servers: lspclient servers",
			"Get help: lspclient attach --help",
		},
		NoColor: noColor,
	})
}

// StartupError reports that the child server process failed to
// start or exited immediately.
func StartupError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "SERVER FAILED TO START",
		Problem: message,
		HelpCommands: []string{
			"Check the server program path and arguments",
			"Inspect the stderr log path printed above",
		},
		NoColor: noColor,
	})
}

// ProtocolErrorMessage reports a latched JSON-RPC or LSP protocol
// error, surfacing the client's CheckStatus text as the consequence.
func ProtocolErrorMessage(status string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "PROTOCOL ERROR",
		Problem:     "the LSP client has entered a latched error state and must be restarted.",
		Consequence: status,
		NoColor:     noColor,
	})
}

// ConfigError reports a configuration problem (e.g. no
// SM_EDITOR_*_PROGRAM variable set at all).
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "CONFIGURATION ERROR",
		Problem: message,
		HelpCommands: []string{
			"Set one of SM_EDITOR_CLANGD_PROGRAM, SM_EDITOR_PYLSP_PROGRAM, SM_EDITOR_ENV_PROGRAM, SM_EDITOR_PYTHON3_PROGRAM, SM_EDITOR_LSP_TEST_SERVER_PROGRAM",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message.
func Warning(message string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelWarning,
		Problem:     message,
		Suggestions: suggestions,
		NoColor:     noColor,
	})
}

// Info creates a standardized info message.
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	})
}
