// Package apierr defines the caller-facing error taxonomy shared by both
// transports. Every error that crosses a transport boundary is converted into
// an *Error so that the HTTP status and JSON-RPC code are decided in one place.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindAuth            Kind = "auth_error"
	KindUnknownTool     Kind = "unknown_tool"
	KindMissingArgument Kind = "missing_argument"
	KindToolExecution   Kind = "tool_execution_error"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal_error"
)

// Error is a classified, already-redacted error.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input field (validation, missing argument).
	Field string
	// Tool names the tool being dispatched, when there is one.
	Tool string
	// RemoteStatus is the upstream HTTP status for tool execution errors (0 if none).
	RemoteStatus int

	cause error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the kind onto a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindUnknownTool, KindMissingArgument:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode maps the kind onto a JSON-RPC error code.
func (e *Error) RPCCode() int {
	switch e.Kind {
	case KindValidation, KindUnknownTool, KindMissingArgument:
		return -32602
	case KindAuth:
		return -32001
	case KindNotFound:
		return -32004
	default:
		return -32603
	}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func Auth(msg string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: msg, cause: cause}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func UnknownTool(name string) *Error {
	return &Error{Kind: KindUnknownTool, Tool: name, Message: "unknown tool"}
}

func MissingArgument(tool, field string) *Error {
	return &Error{Kind: KindMissingArgument, Tool: tool, Field: field, Message: "missing required argument: " + field}
}

// ToolExecution wraps an upstream failure. msg must already be redacted.
func ToolExecution(tool, msg string, remoteStatus int, cause error) *Error {
	return &Error{Kind: KindToolExecution, Tool: tool, Message: msg, RemoteStatus: remoteStatus, cause: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// As extracts an *Error from err, wrapping anything unclassified as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

// Body is the JSON error envelope written by the HTTP transport.
type Body struct {
	Error   string `json:"error"`
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Details string `json:"details,omitempty"`
}

// ToBody converts e into its wire form.
func (e *Error) ToBody() Body {
	return Body{
		Error: e.Error(),
		Kind:  e.Kind,
		Field: e.Field,
		Tool:  e.Tool,
	}
}
