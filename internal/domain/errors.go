package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies one of the closed set of gateway error categories.
// The values double as the wire-level error codes, so a kind added here is
// immediately visible to clients.
type ErrorKind string

// The full set of error kinds produced by the gateway. No component may
// invent a kind outside this list.
const (
	KindRequestShape       ErrorKind = "REQUEST_SHAPE"
	KindSyntax             ErrorKind = "SYNTAX_ERROR"
	KindForbiddenStatement ErrorKind = "FORBIDDEN_STATEMENT"
	KindStackedQueries     ErrorKind = "STACKED_QUERIES"
	KindNamespaceViolation ErrorKind = "NAMESPACE_VIOLATION"
	KindParameter          ErrorKind = "PARAMETER_ERROR"
	KindPermissionDenied   ErrorKind = "PERMISSION_DENIED"
	KindTimeout            ErrorKind = "TIMEOUT"
	KindExecution          ErrorKind = "EXECUTION_ERROR"
	KindRateLimit          ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindUnknown            ErrorKind = "UNKNOWN_ERROR"
)

// Error is the gateway's tagged error type. Every failure crossing a
// component boundary is an *Error; the Kind tag is what callers dispatch on.
// Err holds the underlying cause for diagnostics and is never serialized
// toward clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair to the error's detail map and returns
// the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error without changing the client-visible
// message.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// AsError extracts a gateway *Error from an error chain. The second return
// is false when err carries no gateway error, in which case callers should
// treat it as KindUnknown.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the error kind for any error, mapping non-gateway errors
// to KindUnknown.
func KindOf(err error) ErrorKind {
	if ge, ok := AsError(err); ok {
		return ge.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrShape creates a RequestShapeError for a malformed request envelope.
func ErrShape(format string, args ...any) *Error {
	return newError(KindRequestShape, format, args...)
}

// ErrSyntax creates a SyntaxError.
func ErrSyntax(format string, args ...any) *Error {
	return newError(KindSyntax, format, args...)
}

// ErrForbidden creates a ForbiddenStatement error.
func ErrForbidden(format string, args ...any) *Error {
	return newError(KindForbiddenStatement, format, args...)
}

// ErrStacked creates a StackedQueries error, the named subtype of
// ForbiddenStatement raised when a request smuggles a second statement.
func ErrStacked(format string, args ...any) *Error {
	return newError(KindStackedQueries, format, args...)
}

// ErrNamespace creates a NamespaceViolation error.
func ErrNamespace(format string, args ...any) *Error {
	return newError(KindNamespaceViolation, format, args...)
}

// ErrParameter creates a ParameterError.
func ErrParameter(format string, args ...any) *Error {
	return newError(KindParameter, format, args...)
}

// ErrPermission creates a PermissionDenied error carrying the capability
// the caller was missing.
func ErrPermission(required string, format string, args ...any) *Error {
	return newError(KindPermissionDenied, format, args...).
		WithDetail("required_permission", required)
}

// ErrTimeout creates a Timeout error carrying the deadline that expired.
func ErrTimeout(timeoutMs int) *Error {
	return newError(KindTimeout, "query exceeded the %dms execution deadline", timeoutMs).
		WithDetail("timeout_ms", timeoutMs)
}

// ErrExecution creates an ExecutionError. The engine's raw message belongs in
// WithCause, not in the client-visible message.
func ErrExecution(format string, args ...any) *Error {
	return newError(KindExecution, format, args...)
}

// ErrRateLimited creates a RateLimitExceeded error carrying the retry hint.
func ErrRateLimited(tenant string, retryAfterMs int64) *Error {
	return newError(KindRateLimit, "tenant %q has exceeded its request quota", tenant).
		WithDetail("retry_after_ms", retryAfterMs)
}

// ErrUnknown creates an UnknownError, the catch-all for failures that escaped
// classification further down the pipeline.
func ErrUnknown(format string, args ...any) *Error {
	return newError(KindUnknown, format, args...)
}
