package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/config"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The command ran but did not succeed (fetch failed, scenarios failed, run canceled)
	ExitCommandError = 2 // Command error (bad config, database cannot be opened, bad arguments)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the machine-readable code of err for JSON output.
func ErrorCode(err error) string {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code)
	}
	var fetchErr *registry.FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Code)
	}
	var cfgErr *config.LoadError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	if errors.Is(err, cache.ErrAlreadyRunning) {
		return "ALREADY_RUNNING"
	}
	return "ERROR"
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// Response is the JSON envelope of every command.
type Response struct {
	Status        string                `json:"status"`                  // "ok" or "error"
	Data          any                   `json:"data,omitempty"`          // success payload
	Error         *ResponseError        `json:"error,omitempty"`         // error details
	Notifications []engine.Notification `json:"notifications,omitempty"` // messages raised by the coordinator
}

// ResponseError is the error structure of a JSON response.
type ResponseError struct {
	Code    string `json:"code"`              // NOT_CACHED, NOT_FOUND, CONFIG_INVALID, ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a result in the configured format. In text mode render
// writes the human-readable form, after the notifications.
func (f *OutputFormatter) Success(data any, notes []engine.Notification, render func(w io.Writer)) error {
	if f.Format == "json" {
		return f.encode(Response{Status: "ok", Data: data, Notifications: notes})
	}

	for _, n := range notes {
		fmt.Fprintln(f.Writer, n)
	}
	if render != nil {
		render(f.Writer)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(err error, notes []engine.Notification) error {
	resp := Response{
		Status:        "error",
		Error:         &ResponseError{Code: ErrorCode(err), Message: err.Error()},
		Notifications: notes,
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) && len(engErr.IDs) > 0 {
		resp.Error.Details = engErr.IDs
	}
	if f.Format == "json" {
		return f.encode(resp)
	}

	for _, n := range notes {
		fmt.Fprintln(f.Writer, n)
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", resp.Error.Code, resp.Error.Message)
	if f.Verbose && resp.Error.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", resp.Error.Details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp Response) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
