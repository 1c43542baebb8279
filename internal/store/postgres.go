package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS comparisons (
	id          UUID PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	before_name TEXT NOT NULL,
	after_name  TEXT NOT NULL,
	key_column  TEXT NOT NULL,
	digest      TEXT NOT NULL,
	summary     JSONB NOT NULL,
	result      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS comparisons_created_at_idx ON comparisons (created_at DESC);
`

// Postgres stores comparisons in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool, verifies it and creates the schema.
func OpenPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	s := NewPostgres(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing pool. Call Migrate before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the comparisons table if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func (s *Postgres) Save(ctx context.Context, c *core.Comparison) error {
	result, err := json.Marshal(c.Result)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(c.Result.Summary())
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO comparisons (id, created_at, before_name, after_name, key_column, digest, summary, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pgUUID(c.ID),
		pgtype.Timestamptz{Time: c.CreatedAt, Valid: true},
		c.BeforeName,
		c.AfterName,
		c.KeyColumn,
		c.Result.Digest(),
		summary,
		result,
	)
	return err
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (*core.Comparison, error) {
	var (
		created pgtype.Timestamptz
		c       core.Comparison
		raw     []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT created_at, before_name, after_name, key_column, result
		FROM comparisons WHERE id = $1`, pgUUID(id),
	).Scan(&created, &c.BeforeName, &c.AfterName, &c.KeyColumn, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := compare.DecodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: %w", id, err)
	}
	c.ID = id
	c.CreatedAt = created.Time
	c.Result = res
	return &c, nil
}

func (s *Postgres) List(ctx context.Context, limit int) ([]core.ComparisonInfo, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, before_name, after_name, key_column, digest, summary
		FROM comparisons ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := make([]core.ComparisonInfo, 0)
	for rows.Next() {
		var (
			id      pgtype.UUID
			created pgtype.Timestamptz
			info    core.ComparisonInfo
			summary []byte
		)
		if err := rows.Scan(&id, &created, &info.BeforeName, &info.AfterName, &info.KeyColumn, &info.Digest, &summary); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(summary, &info.Summary); err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		info.ID = id.Bytes
		info.CreatedAt = created.Time
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comparisons WHERE id = $1`, pgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Postgres) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comparisons WHERE created_at < $1`,
		pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
