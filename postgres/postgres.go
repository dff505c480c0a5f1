package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/mercedmeals/feedclient/session"
)

// Postgres provides durable session storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// CreateSchema creates the client_state table if it does not exist.
func (pg *Postgres) CreateSchema(ctx context.Context) error {
	if _, err := pg.bun.NewCreateTable().Model((*entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or session.ErrNotFound.
func (pg *Postgres) Get(ctx context.Context, key string) (string, error) {
	var e entry
	err := pg.bun.NewSelect().Model(&e).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}
	return e.Value, nil
}

// Set upserts value under key.
func (pg *Postgres) Set(ctx context.Context, key, value string) error {
	e := &entry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := pg.bun.NewInsert().
		Model(e).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Delete removes all keys in one statement.
func (pg *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := pg.bun.NewDelete().
		Model((*entry)(nil)).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}
