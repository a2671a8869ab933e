// Package runlog keeps a Postgres ledger of harvest runs, one row per
// run, so dataset drift can be traced back to the run that caused it.
package runlog

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miilabs/auction-harvester/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool for the run ledger.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Ledger records finished runs.
type Ledger struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Ledger.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "harvest_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Ledger{pool: pool, table: table}, nil
}

// NewWithPool constructs a Ledger from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Ledger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "harvest_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Ledger{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// Record inserts one finished run. A nil Ledger is a no-op so callers
// without a configured database need no branching.
func (l *Ledger) Record(ctx context.Context, startedAt time.Time, report pipeline.Report, runErr error) error {
	if l == nil || l.pool == nil {
		return nil
	}
	outcome := "ok"
	if runErr != nil {
		outcome = runErr.Error()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source,
	started_at,
	duration_ms,
	discovered,
	new_urls,
	succeeded,
	failed,
	skipped,
	in_progress,
	checkpoints,
	checkpoint_failures,
	outcome
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, l.table)

	args := []any{
		uuid.NewString(),
		report.Source,
		startedAt,
		report.Duration.Milliseconds(),
		report.Discovered,
		report.NewURLs,
		report.Succeeded,
		report.Failed,
		report.Skipped,
		report.InProgress,
		report.Checkpoints,
		report.CheckpointFailures,
		outcome,
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
