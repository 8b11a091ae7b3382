// Package redis keeps the task collection as a single Redis string.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
	"github.com/hiroki-koketsu/horizon-tasks/internal/persistence/codec"
)

// Storage reads and writes the collection under "<namespace>:<key>".
type Storage struct {
	client *goredis.Client
	key    string
	logger *slog.Logger
}

// New creates a Storage using client. The key never expires.
func New(client *goredis.Client, namespace, key string, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		key:    collectionKey(namespace, key),
		logger: logger,
	}
}

// Load fetches the collection. A missing or corrupt value yields an empty one.
func (s *Storage) Load(ctx context.Context) ([]model.Task, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []model.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}

	tasks, err := codec.Decode(data)
	if errors.Is(err, codec.ErrCorrupt) {
		s.logger.WarnContext(ctx, "discarding corrupt task collection",
			slog.String("key", s.key),
			slog.Any("error", err),
		)
		return []model.Task{}, nil
	}
	return tasks, err
}

// Save overwrites the stored collection.
func (s *Storage) Save(ctx context.Context, tasks []model.Task) error {
	data, err := codec.Encode(tasks)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}
	return nil
}

func collectionKey(namespace, key string) string {
	if key == "" {
		key = codec.DefaultKey
	}
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
