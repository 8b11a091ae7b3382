// Package file keeps the task collection in a JSON file on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
	"github.com/hiroki-koketsu/horizon-tasks/internal/persistence/codec"
)

// Storage stores the collection in <dir>/<key>.json.
type Storage struct {
	path   string
	logger *slog.Logger
}

// New creates a Storage rooted at dir, creating the directory if needed.
func New(dir, key string, logger *slog.Logger) (*Storage, error) {
	if key == "" {
		key = codec.DefaultKey
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Storage{
		path:   filepath.Join(dir, key+".json"),
		logger: logger,
	}, nil
}

// Path returns the file backing the collection.
func (s *Storage) Path() string {
	return s.path
}

// Load reads the collection. A missing or corrupt file yields an empty one.
func (s *Storage) Load(ctx context.Context) ([]model.Task, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	tasks, err := codec.Decode(data)
	if errors.Is(err, codec.ErrCorrupt) {
		s.logger.WarnContext(ctx, "discarding corrupt task file",
			slog.String("path", s.path),
			slog.Any("error", err),
		)
		return []model.Task{}, nil
	}
	return tasks, err
}

// Save replaces the file contents atomically.
func (s *Storage) Save(ctx context.Context, tasks []model.Task) error {
	data, err := codec.Encode(tasks)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
