package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/riskintel/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db     *sqlx.DB
	driver string
}

// NewClient opens a sqlite3 or postgres database. For sqlite3 the dsn is a file path.
func NewClient(driver, dsn string) (*Client, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// concurrent source runs share one connection; avoids SQLITE_BUSY on commit
		db.SetMaxOpenConns(1)

		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	logger.Info("Database client initialized", zap.String("driver", driver))

	return &Client{db: db, driver: driver}, nil
}

// NewFromDB wraps an already opened handle; driverName selects the bind style.
func NewFromDB(db *sql.DB, driverName string) *Client {
	return &Client{db: sqlx.NewDb(db, driverName), driver: driverName}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS intelligence_sources (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			last_crawled_at BIGINT,
			error_message TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_sources_url ON intelligence_sources(url)`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_sources_status ON intelligence_sources(status)`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_sources_last_crawled ON intelligence_sources(last_crawled_at)`,

		`CREATE TABLE IF NOT EXISTS intelligence_items (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES intelligence_sources(id),
			url TEXT,
			title TEXT,
			title_zh TEXT,
			publish_date TEXT,
			content_type TEXT,
			summary TEXT,
			risk_tags TEXT,
			risk_hint TEXT,
			original_text TEXT,
			translated_text TEXT,
			relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			-- unix milliseconds
			created_at BIGINT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_intelligence_items_url ON intelligence_items(url) WHERE url IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_items_source_id ON intelligence_items(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_items_created_at ON intelligence_items(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_intelligence_items_publish_date ON intelligence_items(publish_date)`,

		`CREATE TABLE IF NOT EXISTS contract_tasks (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			upload_time BIGINT NOT NULL, -- unix milliseconds
			status TEXT NOT NULL DEFAULT 'processing',
			overall_risk_level TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_tasks_status ON contract_tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_tasks_upload_time ON contract_tasks(upload_time DESC)`,

		`CREATE TABLE IF NOT EXISTS contract_risks (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES contract_tasks(id),
			clause_id TEXT,
			clause_text TEXT,
			risk_category TEXT,
			risk_level TEXT,
			risk_reason TEXT,
			explanation TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_risks_task_id ON contract_risks(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_risks_risk_level ON contract_risks(risk_level)`,
	}

	for _, stmt := range schema {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	logger.Info("Database schema initialized")
	return nil
}

// inTx runs fn in a transaction and commits when fn returns nil.
func (c *Client) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("Transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
