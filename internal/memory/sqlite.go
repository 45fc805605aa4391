package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hession/lifelog/internal/logger"
)

// SQLiteOptions tunes duplicate detection and search
type SQLiteOptions struct {
	// DedupSimilarity is the cosine similarity at or above which a new
	// fact counts as already known. Zero disables similarity dedup.
	DedupSimilarity float64
	// MinSimilarity drops search hits scoring below it
	MinSimilarity float64
}

// SQLiteBackend stores facts with their embeddings in SQLite and ranks
// them by cosine similarity at query time
type SQLiteBackend struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder Embedder
	opts     SQLiteOptions
	closed   bool
}

// NewSQLiteBackend opens (creating if needed) the fact database at dbPath
func NewSQLiteBackend(dbPath string, embedder Embedder, opts SQLiteOptions) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &SQLiteBackend{db: db, embedder: embedder, opts: opts}
	if err := b.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			normalized TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			vector BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user_created ON facts(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user_normalized ON facts(user_id, normalized)`,
	}
	for _, query := range queries {
		if _, err := b.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

// normalizeFact is the key for exact duplicate detection
func normalizeFact(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimRight(s, ".!?")
}

// Add stores text as a new fact unless it is blank or already known for
// the user, in which case the result has no created records.
func (b *SQLiteBackend) Add(ctx context.Context, text, userID string, metadata map[string]any) (*AddResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &AddResult{}, nil
	}
	normalized := normalizeFact(text)

	var existing string
	err := b.db.QueryRowContext(ctx,
		`SELECT id FROM facts WHERE user_id = ? AND normalized = ? LIMIT 1`,
		userID, normalized,
	).Scan(&existing)
	switch {
	case err == nil:
		logger.Debug("Skipping exact duplicate of %s", existing)
		return &AddResult{}, nil
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}

	vec, err := b.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if b.opts.DedupSimilarity > 0 {
		rows, err := b.loadUserRows(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if sim := CosineSimilarity(vec, r.vector); sim >= b.opts.DedupSimilarity {
				logger.Debug("Skipping near duplicate of %s (similarity %.3f)", r.ID, sim)
				return &AddResult{}, nil
			}
		}
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}

	rec := Record{
		ID:        uuid.New().String(),
		Text:      text,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO facts (id, user_id, text, normalized, metadata, vector, dimension, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Text, normalized, string(metaJSON), vectorToBlob(vec), len(vec), rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert fact: %w", err)
	}

	return &AddResult{Created: []Record{rec}}, nil
}

func (b *SQLiteBackend) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if want := b.embedder.Dimension(); want > 0 && len(vec) != want {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(vec))
	}
	return vec, nil
}

// Search ranks the user's facts by similarity to query, best first.
// limit <= 0 returns every hit.
func (b *SQLiteBackend) Search(ctx context.Context, query, userID string, limit int) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBackendClosed
	}

	qvec, err := b.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := b.loadUserRows(ctx, userID)
	if err != nil {
		return nil, err
	}

	hits := make([]Record, 0, len(rows))
	for _, r := range rows {
		if len(r.vector) != len(qvec) {
			logger.Warn("Fact %s has %d-dimensional vector, query has %d; skipped", r.ID, len(r.vector), len(qvec))
			continue
		}
		score := CosineSimilarity(qvec, r.vector)
		if score < b.opts.MinSimilarity {
			continue
		}
		rec := r.Record
		rec.Score = score
		hits = append(hits, rec)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetAll returns the user's facts, newest first
func (b *SQLiteBackend) GetAll(ctx context.Context, userID string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBackendClosed
	}

	rows, err := b.loadUserRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = r.Record
	}
	return records, nil
}

// Delete removes a fact by id
func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBackendClosed
	}

	result, err := b.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

type storedFact struct {
	Record
	vector []float32
}

func (b *SQLiteBackend) loadUserRows(ctx context.Context, userID string) ([]storedFact, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, user_id, text, metadata, vector, created_at
		 FROM facts WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	var facts []storedFact
	for rows.Next() {
		var (
			f        storedFact
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.Text, &metaJSON, &blob, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &f.Metadata); err != nil {
			logger.Warn("Fact %s has unreadable metadata: %v", f.ID, err)
		}
		f.vector = blobToVector(blob)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
