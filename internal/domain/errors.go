package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every failure that crosses the client boundary.
type Kind int

const (
	// KindConnection: backend unreachable or declared unavailable, or the breaker is open.
	KindConnection Kind = iota + 1
	// KindTimeout: a connect, read, pool or caller deadline was exceeded.
	KindTimeout
	// KindResponse: backend reachable but the payload or status is unusable.
	KindResponse
	// KindValidation: caller input rejected before any network call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindResponse:
		return "response"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen signals a call rejected by an open (or probing) circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrClientClosed signals a call on a closed client.
	ErrClientClosed = errors.New("client closed")
	// ErrEmptyQuery signals a blank query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrQueryTooLong signals a query over the configured maximum length.
	ErrQueryTooLong = errors.New("query too long")
	// ErrUnknownFilter signals a filter key the backend does not support.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrInvalidConfig signals a rejected configuration value.
	ErrInvalidConfig = errors.New("invalid config")
)

// maxPayloadBytes bounds the raw payload kept on Response errors.
const maxPayloadBytes = 2048

// Error is the tagged error returned by every client operation.
type Error struct {
	Kind Kind
	// Op names the stage that failed ("sanitize", "search", "parse", "pool", ...).
	Op string
	// StatusCode is the backend HTTP status, when one was received.
	StatusCode int
	// Payload holds the (bounded) raw backend body for Response errors.
	Payload []byte
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a Validation error.
func Validation(op string, err error) *Error {
	return NewError(KindValidation, op, err)
}

// ResponseError builds a Response error carrying the raw payload for diagnostics.
func ResponseError(op string, status int, payload []byte, err error) *Error {
	if len(payload) > maxPayloadBytes {
		payload = payload[:maxPayloadBytes]
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Error{Kind: KindResponse, Op: op, StatusCode: status, Payload: p, Err: err}
}

// CircuitOpen builds the fail-fast rejection returned while the breaker is open.
func CircuitOpen(op string) *Error {
	return NewError(KindConnection, op, ErrCircuitOpen)
}

// KindOf returns the Kind of err, or 0 when err is nil or untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
