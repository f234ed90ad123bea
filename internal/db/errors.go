package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get for a missing or expired key.
	ErrKeyNotFound = errors.New("cache store: key not found")
	// ErrInvalidTTL rejects writes that would never expire.
	ErrInvalidTTL = errors.New("cache store: ttl must be positive")
)

// Store operations, named after the commands they issue.
const (
	OpPing = "PING"
	OpGet  = "GET"
	OpSet  = "SET"
)

// Error tags a store failure with the command and key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "cache store " + e.Op + ": " + e.Err.Error()
	}
	return "cache store " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
