package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/serenityspace/healthkeeper/internal/client/migrations"
	"github.com/serenityspace/healthkeeper/internal/dbx"
)

// SQLiteCache stores key-value pairs in a single-table SQLite database.
type SQLiteCache struct {
	db *sql.DB
}

func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

// InitDatabase opens the cache database and applies embedded migrations.
// The returned handle is shared by the cache and the token store.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("running cache migrations: %w", err)
	}
	return db, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM cache WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache[%s]: %w", key, err)
	}
	return value, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set cache[%s]: %w", key, err)
	}
	return nil
}

// SetMany upserts all pairs in a single transaction.
func (c *SQLiteCache) SetMany(ctx context.Context, values map[string]string) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cache (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, key, value)
			if err != nil {
				return fmt.Errorf("failed to set cache[%s]: %w", key, err)
			}
		}
		return nil
	})
}

func (c *SQLiteCache) Remove(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to remove cache[%s]: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache`)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
