package db

import "errors"

var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	// ErrTxAborted means EXEC replied nil and nothing was written.
	ErrTxAborted = errors.New("db: transaction aborted")
)

// Operation names carried by Error; they are the Redis commands involved.
const (
	OpGet    = "GET"
	OpSet    = "SET"
	OpExists = "EXISTS"
	OpScan   = "SCAN"

	OpHSet    = "HSET"
	OpHGetAll = "HGETALL"
	OpExec    = "EXEC"

	OpLPush  = "LPUSH"
	OpLRange = "LRANGE"

	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
)

// Error records which command failed. Callers match causes with errors.Is / errors.As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
