// internal/journal/postgres.go
package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB is the slice of the pgx pool the journal uses. Narrowed so tests can
// substitute a mock pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

const createCyclesTable = `
CREATE TABLE IF NOT EXISTS franz_cycles (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	step INT NOT NULL,
	kind TEXT NOT NULL,
	story TEXT NOT NULL,
	detail TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

const insertCycle = `
INSERT INTO franz_cycles (run_id, step, kind, story, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`

// Postgres journals cycles into a franz_cycles table.
type Postgres struct {
	db     DB
	logger *zap.Logger
}

// NewPostgres connects a pool to the given URL and ensures the schema exists.
func NewPostgres(ctx context.Context, url string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	p, err := NewPostgresFromDB(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresFromDB wraps an existing connection and ensures the schema
// exists. Tests use this with a mock pool.
func NewPostgresFromDB(ctx context.Context, db DB, logger *zap.Logger) (*Postgres, error) {
	p := &Postgres{db: db, logger: logger.Named("journal")}
	if _, err := p.db.Exec(ctx, createCyclesTable); err != nil {
		return nil, fmt.Errorf("failed to ensure journal schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) Record(ctx context.Context, entry Entry) error {
	_, err := p.db.Exec(ctx, insertCycle,
		entry.RunID, entry.Step, entry.Kind, entry.Story, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %d: %w", entry.Step, err)
	}
	return nil
}

func (p *Postgres) Close(context.Context) error {
	p.db.Close()
	return nil
}
