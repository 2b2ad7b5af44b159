// Package apperrors defines the typed failures used across the service.
// Every recoverable or user-facing failure is a value carrying a Kind and
// an HTTP status, so callers branch on Kind and the HTTP boundary renders
// a uniform envelope.
package apperrors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Kind classifies a failure for programmatic branching.
type Kind string

const (
	KindOriginRejected Kind = "origin_rejected"
	KindAuthCompare    Kind = "auth_compare_failed"
	KindHashing        Kind = "hashing_failed"
	KindInvalidInput   Kind = "invalid_data_type"
	KindUser           Kind = "user_error"
	KindDatabase       Kind = "database_failure"
	KindQueryTimeout   Kind = "query_timeout"
	KindInternal       Kind = "internal"
)

// Error is the typed failure value. Immutable after construction.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	// Origin is set only for origin-rejection failures.
	Origin string
	// Stack is captured at construction for diagnostics.
	Stack string
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  status,
		Stack:   string(debug.Stack()),
		Err:     cause,
	}
}

// OriginRejected reports a request origin outside the allow-list.
func OriginRejected(origin string) *Error {
	e := newError(KindOriginRejected, http.StatusForbidden, "origin is forbidden", nil)
	e.Origin = origin
	return e
}

// AuthCompare reports that the hash comparison primitive itself errored,
// not a password mismatch.
func AuthCompare(cause error) *Error {
	return newError(KindAuthCompare, http.StatusInternalServerError, "could not compare password hashes", cause)
}

// Hashing reports that the password hashing primitive errored.
func Hashing(cause error) *Error {
	return newError(KindHashing, http.StatusInternalServerError, "plain password could not be hashed", cause)
}

// InvalidInput reports a missing or malformed required field.
func InvalidInput(message string) *Error {
	if message == "" {
		message = "data type is invalid"
	}
	return newError(KindInvalidInput, http.StatusBadRequest, message, nil)
}

// User reports a user-domain violation with a caller-supplied status.
// Status 0 defaults to 400.
func User(message string, status int) *Error {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return newError(KindUser, status, message, nil)
}

// Database reports a failed query or driver error.
func Database(cause error) *Error {
	return newError(KindDatabase, http.StatusInternalServerError, "database query failed", cause)
}

// QueryTimeout reports a query that exceeded its deadline or a pool that
// could not serve a connection in time.
func QueryTimeout(cause error) *Error {
	return newError(KindQueryTimeout, http.StatusGatewayTimeout, "database query timed out", cause)
}

// Internal is the unclassified fallback.
func Internal(message string, cause error) *Error {
	if message == "" {
		message = "an error occurred"
	}
	return newError(KindInternal, http.StatusInternalServerError, message, cause)
}

// Envelope is the wire shape every failure renders to at the HTTP boundary.
type Envelope struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Origin  *string `json:"origin"`
	Stack   *string `json:"stack"`
}

// Envelope builds the transport view of the error. The stack is omitted
// in production.
func (e *Error) Envelope(production bool) Envelope {
	env := Envelope{
		Status:  "error",
		Message: e.Message,
	}
	if e.Origin != "" {
		env.Origin = &e.Origin
	}
	if !production && e.Stack != "" {
		env.Stack = &e.Stack
	}
	return env
}
