package memory

import (
	"context"
	"sync"
	"time"

	"taxidispatch/pkg/models"
)

type actionLogStore struct {
	mu      sync.RWMutex
	entries []models.ActionLog
}

func (s *actionLogStore) Insert(_ context.Context, e *models.ActionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *actionLogStore) List(_ context.Context, limit int) ([]*models.ActionLog, error) {
	s.mu.RLock()
	entries := make([]*models.ActionLog, 0, len(s.entries))
	for i := range s.entries {
		e := s.entries[i]
		entries = append(entries, &e)
	}
	s.mu.RUnlock()

	newestFirst(entries, func(e *models.ActionLog) time.Time { return e.CreatedAt })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
