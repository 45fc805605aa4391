package memory

import (
	"context"
	"time"

	"github.com/hession/lifelog/internal/logger"
)

// RetryPolicy bounds the attempts made for one fact write
type RetryPolicy struct {
	MaxRetries int           // total attempts, at least 1
	Delay      time.Duration // wait between attempts
}

// DefaultRetryPolicy is three attempts two seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: 2 * time.Second}
}

// FactStore wraps a Backend with per-fact retry and turns read failures
// into empty results, so one bad call never stops a run.
type FactStore struct {
	backend Backend
	policy  RetryPolicy

	// Sleep waits between attempts; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewFactStore creates a FactStore over backend
func NewFactStore(backend Backend, policy RetryPolicy) *FactStore {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	return &FactStore{backend: backend, policy: policy, Sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AddFact writes one fact, retrying failed calls up to the policy limit.
// A successful call that created nothing is returned as is, not retried.
// The error is non-nil only when every attempt failed.
func (s *FactStore) AddFact(ctx context.Context, text, userID string, metadata map[string]any) (*AddResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxRetries; attempt++ {
		start := time.Now()
		result, err := s.backend.Add(ctx, text, userID, metadata)
		if err == nil {
			if result == nil {
				result = &AddResult{}
			}
			logger.WithFields(map[string]interface{}{
				"user_id":  userID,
				"attempt":  attempt,
				"created":  len(result.Created),
				"duration": time.Since(start).String(),
			}).Debug("add_fact done")
			return result, nil
		}

		lastErr = err
		logger.Warn("add_fact attempt %d/%d failed for user %s: %v", attempt, s.policy.MaxRetries, userID, err)

		if attempt < s.policy.MaxRetries {
			if err := s.Sleep(ctx, s.policy.Delay); err != nil {
				lastErr = err
				break
			}
		}
	}

	logger.Error("Giving up on fact for user %s: %v", userID, lastErr)
	return nil, &OpError{Op: "add", UserID: userID, Err: lastErr}
}

// Search returns up to limit facts relevant to query; failures yield none
func (s *FactStore) Search(ctx context.Context, query, userID string, limit int) []Record {
	records, err := s.backend.Search(ctx, query, userID, limit)
	if err != nil {
		logger.Error("%v", &OpError{Op: "search", UserID: userID, Err: err})
		return nil
	}
	return records
}

// ListAll returns every fact of the user; failures yield none
func (s *FactStore) ListAll(ctx context.Context, userID string) []Record {
	records, err := s.backend.GetAll(ctx, userID)
	if err != nil {
		logger.Error("%v", &OpError{Op: "list", UserID: userID, Err: err})
		return nil
	}
	return records
}

// DeleteAll removes the user's facts one by one and returns how many
// deletes succeeded. Individual failures are logged and skipped.
func (s *FactStore) DeleteAll(ctx context.Context, userID string) int {
	records := s.ListAll(ctx, userID)
	deleted := 0
	for _, r := range records {
		if err := s.backend.Delete(ctx, r.ID); err != nil {
			logger.Warn("Failed to delete fact %s: %v", r.ID, err)
			continue
		}
		deleted++
	}
	logger.Info("Deleted %d of %d facts for user %s", deleted, len(records), userID)
	return deleted
}

// Close closes the backend
func (s *FactStore) Close() error {
	return s.backend.Close()
}
