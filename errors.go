package rhokp

import "github.com/kailas-cloud/rhokp/internal/domain"

// Error is the tagged error returned by every client operation.
type Error = domain.Error

// Kind classifies an Error.
type Kind = domain.Kind

// Error kinds.
const (
	KindConnection = domain.KindConnection
	KindTimeout    = domain.KindTimeout
	KindResponse   = domain.KindResponse
	KindValidation = domain.KindValidation
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrCircuitOpen   = domain.ErrCircuitOpen
	ErrClientClosed  = domain.ErrClientClosed
	ErrEmptyQuery    = domain.ErrEmptyQuery
	ErrQueryTooLong  = domain.ErrQueryTooLong
	ErrUnknownFilter = domain.ErrUnknownFilter
	ErrInvalidConfig = domain.ErrInvalidConfig
)

// KindOf returns the Kind of err, or 0 when err is nil or not an *Error.
func KindOf(err error) Kind { return domain.KindOf(err) }

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool { return domain.IsKind(err, kind) }
