package store

import (
	"context"
	"sync"
	"time"
)

type memoryHooks struct {
	mu    sync.RWMutex
	hooks map[string]Hook // id -> hook
}

// NewMemoryHooks returns an in-process hook registry.
func NewMemoryHooks() HookStore {
	return &memoryHooks{hooks: map[string]Hook{}}
}

func (s *memoryHooks) Add(ctx context.Context, h Hook) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.hooks[h.ID] = h
	s.mu.Unlock()
	return nil
}

func (s *memoryHooks) ByProject(ctx context.Context, projectID string) ([]Hook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Hook
	for _, h := range s.hooks {
		if h.ProjectID == projectID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memoryHooks) DeleteByURL(ctx context.Context, url string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, h := range s.hooks {
		if h.URL == url {
			delete(s.hooks, id)
			n++
		}
	}
	return n, nil
}

func (s *memoryHooks) Close() error { return nil }
