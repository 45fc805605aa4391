package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeBackend fails the first failAdds Add calls
type fakeBackend struct {
	failAdds    int
	created     int
	addCalls    int
	records     []Record
	searchErr   error
	failDeletes map[string]bool
	deleted     []string
}

func (f *fakeBackend) Add(ctx context.Context, text, userID string, metadata map[string]any) (*AddResult, error) {
	f.addCalls++
	if f.addCalls <= f.failAdds {
		return nil, errors.New("backend unavailable")
	}
	res := &AddResult{}
	for i := 0; i < f.created; i++ {
		res.Created = append(res.Created, Record{ID: "r", Text: text, UserID: userID, Metadata: metadata})
	}
	return res, nil
}

func (f *fakeBackend) Search(ctx context.Context, query, userID string, limit int) ([]Record, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.records, nil
}

func (f *fakeBackend) GetAll(ctx context.Context, userID string) ([]Record, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.records, nil
}

func (f *fakeBackend) Delete(ctx context.Context, id string) error {
	if f.failDeletes[id] {
		return errors.New("locked")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestFactStore(b Backend, maxRetries int) (*FactStore, *[]time.Duration) {
	var sleeps []time.Duration
	s := NewFactStore(b, RetryPolicy{MaxRetries: maxRetries, Delay: 2 * time.Second})
	s.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestFactStore_AddFactRetryBound(t *testing.T) {
	tests := []struct {
		name       string
		failAdds   int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{"first attempt succeeds", 0, 3, 1, false},
		{"succeeds on second", 1, 3, 2, false},
		{"succeeds on last", 2, 3, 3, false},
		{"exhausted", 5, 3, 3, true},
		{"single attempt policy", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{failAdds: tt.failAdds, created: 1}
			s, sleeps := newTestFactStore(b, tt.maxRetries)

			res, err := s.AddFact(context.Background(), "User loves pizza", "alice", nil)
			if b.addCalls != tt.wantCalls {
				t.Errorf("backend called %d times, want %d", b.addCalls, tt.wantCalls)
			}
			if len(*sleeps) != tt.wantCalls-1 {
				t.Errorf("slept %d times, want %d", len(*sleeps), tt.wantCalls-1)
			}
			for _, d := range *sleeps {
				if d != 2*time.Second {
					t.Errorf("slept %v, want 2s", d)
				}
			}
			if tt.wantErr {
				var opErr *OpError
				if !errors.As(err, &opErr) || opErr.Op != "add" || opErr.UserID != "alice" {
					t.Errorf("Expected OpError, got %v", err)
				}
				if res != nil {
					t.Errorf("Expected nil result on failure, got %+v", res)
				}
			} else if err != nil || !res.Added() {
				t.Errorf("Expected success, got %+v, %v", res, err)
			}
		})
	}
}

func TestFactStore_ZeroCreatedNotRetried(t *testing.T) {
	b := &fakeBackend{created: 0}
	s, sleeps := newTestFactStore(b, 3)

	res, err := s.AddFact(context.Background(), "hello there", "alice", nil)
	if err != nil {
		t.Fatalf("AddFact() error: %v", err)
	}
	if res == nil || res.Added() {
		t.Errorf("Expected empty non-nil result, got %+v", res)
	}
	if b.addCalls != 1 || len(*sleeps) != 0 {
		t.Errorf("Expected a single call without retry, got %d calls", b.addCalls)
	}
}

func TestFactStore_AddFactStopsOnCancel(t *testing.T) {
	b := &fakeBackend{failAdds: 10}
	s := NewFactStore(b, RetryPolicy{MaxRetries: 3, Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.AddFact(ctx, "fact", "alice", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if b.addCalls != 1 {
		t.Errorf("Expected 1 call before cancel stopped retries, got %d", b.addCalls)
	}
}

func TestFactStore_AddFactMetadataPassthrough(t *testing.T) {
	b := &fakeBackend{created: 1}
	s, _ := newTestFactStore(b, 3)

	meta := map[string]any{"timestamp": "2025-03-29T09:10:00"}
	res, _ := s.AddFact(context.Background(), "User loves pizza", "alice", meta)
	if res.Created[0].Metadata["timestamp"] != "2025-03-29T09:10:00" || res.Created[0].UserID != "alice" {
		t.Errorf("Metadata or user lost: %+v", res.Created[0])
	}
}

func TestFactStore_SearchAndListFailuresAreEmpty(t *testing.T) {
	b := &fakeBackend{searchErr: errors.New("index offline")}
	s, _ := newTestFactStore(b, 3)

	if got := s.Search(context.Background(), "q", "alice", 5); got != nil {
		t.Errorf("Search() = %+v, want nil", got)
	}
	if got := s.ListAll(context.Background(), "alice"); got != nil {
		t.Errorf("ListAll() = %+v, want nil", got)
	}
	if got := s.DeleteAll(context.Background(), "alice"); got != 0 {
		t.Errorf("DeleteAll() = %d, want 0", got)
	}
}

func TestFactStore_DeleteAllSkipsFailures(t *testing.T) {
	b := &fakeBackend{
		records:     []Record{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		failDeletes: map[string]bool{"b": true},
	}
	s, _ := newTestFactStore(b, 3)

	if got := s.DeleteAll(context.Background(), "alice"); got != 2 {
		t.Errorf("DeleteAll() = %d, want 2", got)
	}
	if len(b.deleted) != 2 || b.deleted[0] != "a" || b.deleted[1] != "c" {
		t.Errorf("deleted = %v", b.deleted)
	}
}

func TestFactStore_WithSQLiteBackend(t *testing.T) {
	backend := setupTestBackend(t, NewHashEmbedder(512), SQLiteOptions{DedupSimilarity: 0.95})
	s := NewFactStore(backend, DefaultRetryPolicy())
	ctx := context.Background()

	res, err := s.AddFact(ctx, "Alice adopted a cat named Miso", "alice", nil)
	if err != nil || !res.Added() {
		t.Fatalf("AddFact() = %+v, %v", res, err)
	}
	res, err = s.AddFact(ctx, "alice adopted a cat named miso.", "alice", nil)
	if err != nil || res.Added() {
		t.Errorf("Duplicate should create nothing: %+v, %v", res, err)
	}

	if got := s.Search(ctx, "cat Miso", "alice", 5); len(got) != 1 {
		t.Errorf("Search() returned %d records", len(got))
	}
	if got := s.DeleteAll(ctx, "alice"); got != 1 {
		t.Errorf("DeleteAll() = %d, want 1", got)
	}
	if got := s.ListAll(ctx, "alice"); len(got) != 0 {
		t.Errorf("ListAll() after reset = %d records", len(got))
	}
}
