// Package mysql keeps the task collection as one row of a MySQL table.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
	"github.com/hiroki-koketsu/horizon-tasks/internal/persistence/codec"
)

// Storage stores the collection blob in task_collections keyed by storage key.
type Storage struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

// Open connects to dsn, checks the connection and creates the table.
func Open(ctx context.Context, dsn, key string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	s := New(db, key, logger)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. The table must already exist.
func New(db *sql.DB, key string, logger *slog.Logger) *Storage {
	if key == "" {
		key = codec.DefaultKey
	}
	return &Storage{db: db, key: key, logger: logger}
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) migrate(ctx context.Context) error {
	create := `CREATE TABLE IF NOT EXISTS task_collections (
    storage_key VARCHAR(191) PRIMARY KEY,
    payload LONGTEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create task_collections: %w", err)
	}
	return nil
}

// Load reads the collection row. A missing or corrupt row yields an empty one.
func (s *Storage) Load(ctx context.Context) ([]model.Task, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM task_collections WHERE storage_key = ?`, s.key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.key, err)
	}

	tasks, err := codec.Decode(payload)
	if errors.Is(err, codec.ErrCorrupt) {
		s.logger.WarnContext(ctx, "discarding corrupt task collection",
			slog.String("key", s.key),
			slog.Any("error", err),
		)
		return []model.Task{}, nil
	}
	return tasks, err
}

// Save upserts the collection row.
func (s *Storage) Save(ctx context.Context, tasks []model.Task) error {
	payload, err := codec.Encode(tasks)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_collections (storage_key, payload) VALUES (?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload)`,
		s.key, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", s.key, err)
	}
	return nil
}
