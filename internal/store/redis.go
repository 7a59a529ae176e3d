package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "blueprint:"

// RedisStore keeps each project as a JSON string under
// <prefix>project:<id> and indexes the ids in the set <prefix>projects.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis: ping %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) projectKey(id string) string { return s.prefix + "project:" + id }
func (s *RedisStore) indexKey() string            { return s.prefix + "projects" }

// Load fetches every indexed project in one MGET.
func (s *RedisStore) Load(ctx context.Context) ([]blueprint.Project, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, &ReadError{Backend: "redis", Err: fmt.Errorf("list projects: %w", err)}
	}
	if len(ids) == 0 {
		return []blueprint.Project{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.projectKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &ReadError{Backend: "redis", Err: fmt.Errorf("fetch projects: %w", err)}
	}

	projects := make([]blueprint.Project, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			// Indexed but deleted between SMEMBERS and MGET.
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, &ReadError{Backend: "redis", Err: fmt.Errorf("project %s: unexpected value type %T", ids[i], v)}
		}
		var r record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, &ReadError{Backend: "redis", Err: fmt.Errorf("project %s: %w", ids[i], err)}
		}
		p, err := r.project()
		if err != nil {
			return nil, &ReadError{Backend: "redis", Err: err}
		}
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

// Save writes the project and its index entry in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return &WriteError{Backend: "redis", ProjectID: p.ID, Err: err}
	}
	data, err := json.Marshal(toRecord(p))
	if err != nil {
		return &WriteError{Backend: "redis", ProjectID: p.ID, Err: fmt.Errorf("marshal: %w", err)}
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.projectKey(p.ID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), p.ID)
		return nil
	})
	if err != nil {
		return &WriteError{Backend: "redis", ProjectID: p.ID, Err: err}
	}
	return nil
}

// Delete removes the project and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.projectKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return &WriteError{Backend: "redis", ProjectID: id, Err: err}
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
