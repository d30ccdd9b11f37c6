// Package taskstore keeps background task state, in memory or in Redis.
package taskstore

import (
	"context"
	"sync"

	"report_worker/core/domain"
	"report_worker/core/port/out"
)

// MemoryStore is a process-local TaskStore. List returns tasks in the order
// they were first put.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	order []string
}

var _ out.TaskStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]domain.Task)}
}

func (s *MemoryStore) Put(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		s.order = append(s.order, task.ID)
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, out.ErrTaskNotFound
	}
	return &t, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		tasks = append(tasks, &t)
	}
	return tasks, nil
}
