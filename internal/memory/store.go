// Package memory stores extracted facts per user and retrieves them by
// semantic similarity.
package memory

import (
	"context"
	"time"
)

// Backend is the vector memory store the pipeline writes facts into.
// Every operation is scoped by user id except Delete, which takes a
// record id.
type Backend interface {
	// Add may decide the text holds nothing new and create no records
	Add(ctx context.Context, text, userID string, metadata map[string]any) (*AddResult, error)
	Search(ctx context.Context, query, userID string, limit int) ([]Record, error)
	GetAll(ctx context.Context, userID string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Record is one stored fact
type Record struct {
	ID        string
	Text      string
	UserID    string
	CreatedAt time.Time
	Metadata  map[string]any
	Score     float64 // similarity to the query, Search only
}

// AddResult lists the records an Add created
type AddResult struct {
	Created []Record
}

// Added reports whether at least one record was created
func (r *AddResult) Added() bool {
	return r != nil && len(r.Created) > 0
}
