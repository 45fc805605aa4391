package memory

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFact         = errors.New("fact text is empty")
	ErrRecordNotFound    = errors.New("memory record not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrBackendClosed     = errors.New("memory backend is closed")
)

// OpError is a fact store failure with the operation and user it hit
type OpError struct {
	Op     string
	UserID string
	Err    error
}

func (e *OpError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("memory %s [user=%s]: %v", e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("memory %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
