package db

import "errors"

// Sentinel errors returned by Store implementations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrNoTextSearch  = errors.New("db: text search not supported by server")
)

// Error is a failed server command. Key is the key or index the command
// addressed, when there is one.
type Error struct {
	Cmd string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Cmd + ": " + e.Err.Error()
	}
	return e.Cmd + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
