package taskstore

import (
	"context"
	"fmt"
	"time"

	"report_worker/core/domain"
	"report_worker/core/port/out"
	"report_worker/pkg/cache"

	"github.com/goccy/go-json"
)

const (
	taskKeyPrefix = "report_worker:task:"
	taskIndexKey  = "report_worker:tasks"
)

// RedisStore keeps each task as a JSON value with a TTL and indexes ids in a
// sorted set scored by creation time.
type RedisStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

var _ out.TaskStore = (*RedisStore)(nil)

func NewRedisStore(c *cache.RedisCache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, task *domain.Task) error {
	if err := s.cache.SetJSON(ctx, taskKeyPrefix+task.ID, task, s.ttl); err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	if err := s.cache.AddToIndex(ctx, taskIndexKey, task.ID, float64(task.CreatedAt.UnixNano())); err != nil {
		return fmt.Errorf("index task %s: %w", task.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	ok, err := s.cache.GetJSON(ctx, taskKeyPrefix+id, &t)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if !ok {
		return nil, out.ErrTaskNotFound
	}
	return &t, nil
}

// List drops index entries whose task has expired.
func (s *RedisStore) List(ctx context.Context) ([]*domain.Task, error) {
	ids, err := s.cache.IndexMembers(ctx, taskIndexKey)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKeyPrefix + id
	}
	values, err := s.cache.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(ids))
	var expired []string
	for i, id := range ids {
		raw, ok := values[keys[i]]
		if !ok {
			expired = append(expired, id)
			continue
		}
		var t domain.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", id, err)
		}
		tasks = append(tasks, &t)
	}
	if len(expired) > 0 {
		_ = s.cache.RemoveFromIndex(ctx, taskIndexKey, expired...)
	}
	return tasks, nil
}
