package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/metrics"
	_ "github.com/lib/pq"
)

const (
	statementTimeoutMaxMS = 3_600_000

	// DefaultQueryTimeout bounds single non-transactional queries.
	DefaultQueryTimeout = 30 * time.Second

	// LongQueryTimeout is used for migrations and bulk writes.
	LongQueryTimeout = 5 * time.Minute
)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

type DB struct {
	*sql.DB
}

type Config struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	StatementTimeoutMS int
}

func New(cfg Config) (*DB, error) {
	if err := validateStatementTimeout(cfg.StatementTimeoutMS); err != nil {
		return nil, err
	}

	connURL := cfg.URL
	if cfg.StatementTimeoutMS > 0 {
		connURL = appendStatementTimeout(connURL, cfg.StatementTimeoutMS)
	}

	db, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	} else {
		db.SetConnMaxIdleTime(2 * time.Minute)
	}

	ctx, cancel := withTimeout(context.Background(), DefaultQueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{db}, nil
}

// appendStatementTimeout sets statement_timeout through the connection URL
// so it applies to every pooled connection.
func appendStatementTimeout(url string, timeoutMS int) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "options=-c%20statement_timeout%3D" + strconv.Itoa(timeoutMS)
}

func validateStatementTimeout(ms int) error {
	if ms < 0 || ms > statementTimeoutMaxMS {
		return fmt.Errorf("statement timeout %d out of allowed range [0, %d]", ms, statementTimeoutMaxMS)
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// RunMigrations executes *.up.sql files from dir in sorted order. Applied
// versions are recorded in schema_migrations and never run twice.
func (db *DB) RunMigrations(ctx context.Context, dir string) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		version := filepath.Base(f)

		var exists bool
		if err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		slog.Info("migration starting", "version", version)
		started := time.Now()

		if err := db.applyMigration(ctx, version, string(content)); err != nil {
			return err
		}

		slog.Info("migration completed", "version", version, "elapsed", time.Since(started).String())
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, version, content string) error {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "SET LOCAL lock_timeout = '10s'"); err != nil {
		return fmt.Errorf("set lock_timeout for migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("exec migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// StatsProvider is satisfied by *sql.DB.
type StatsProvider interface {
	Stats() sql.DBStats
}

// RecordPoolStats copies connection pool counters into the DB pool gauges.
func RecordPoolStats(db StatsProvider) {
	stats := db.Stats()
	metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
	metrics.DBPoolInUse.Set(float64(stats.InUse))
	metrics.DBPoolIdle.Set(float64(stats.Idle))
	metrics.DBPoolWaitCount.Set(float64(stats.WaitCount))
}

// RunPoolStatsPump records pool stats every interval until ctx is done.
func RunPoolStatsPump(ctx context.Context, db StatsProvider, interval time.Duration) {
	if interval <= 0 {
		return
	}
	RecordPoolStats(db)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RecordPoolStats(db)
		}
	}
}
