package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/logger"
)

type sourceRow struct {
	ID            string         `db:"id"`
	URL           string         `db:"url"`
	Status        string         `db:"status"`
	LastCrawledAt sql.NullInt64  `db:"last_crawled_at"`
	ErrorMessage  sql.NullString `db:"error_message"`
	CreatedAt     int64          `db:"created_at"`
}

const sourceColumns = `id, url, status, last_crawled_at, error_message, created_at`

func (r sourceRow) toModel() models.Source {
	s := models.Source{
		ID:        r.ID,
		URL:       r.URL,
		Status:    r.Status,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}
	if r.LastCrawledAt.Valid {
		t := time.Unix(r.LastCrawledAt.Int64, 0).UTC()
		s.LastCrawledAt = &t
	}
	if r.ErrorMessage.Valid {
		msg := r.ErrorMessage.String
		s.ErrorMessage = &msg
	}
	return s
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (c *Client) CreateSource(ctx context.Context, src *models.Source) error {
	now := time.Now()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}

	query := c.db.Rebind(`INSERT INTO intelligence_sources (id, url, status, last_crawled_at, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := c.db.ExecContext(ctx, query,
		src.ID,
		src.URL,
		src.Status,
		nullTime(src.LastCrawledAt),
		nullString(src.ErrorMessage),
		src.CreatedAt.Unix(),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}

	logger.Debug("Source inserted", zap.String("source_id", src.ID), zap.String("url", src.URL))
	return nil
}

func (c *Client) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return c.getSource(ctx, `SELECT `+sourceColumns+` FROM intelligence_sources WHERE id = ?`, id)
}

func (c *Client) GetSourceByURL(ctx context.Context, url string) (*models.Source, error) {
	return c.getSource(ctx, `SELECT `+sourceColumns+` FROM intelligence_sources WHERE url = ? ORDER BY created_at LIMIT 1`, url)
}

func (c *Client) getSource(ctx context.Context, query string, arg string) (*models.Source, error) {
	var row sourceRow
	err := c.db.GetContext(ctx, &row, c.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	src := row.toModel()
	return &src, nil
}

func (c *Client) ListSources(ctx context.Context) ([]models.Source, error) {
	var rows []sourceRow
	err := c.db.SelectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM intelligence_sources ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	sources := make([]models.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, r.toModel())
	}
	return sources, nil
}

func (c *Client) UpdateSourceURL(ctx context.Context, id, url string) error {
	query := c.db.Rebind(`UPDATE intelligence_sources SET url = ?, updated_at = ? WHERE id = ?`)
	res, err := c.db.ExecContext(ctx, query, url, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update source url: %w", err)
	}
	return requireAffected(res)
}

// SaveSourceStatus writes status, error message and last-crawled time of src.
func (c *Client) SaveSourceStatus(ctx context.Context, src *models.Source) error {
	return saveSourceStatus(ctx, c.db, src)
}

func saveSourceStatus(ctx context.Context, ex sqlx.ExtContext, src *models.Source) error {
	query := ex.Rebind(`UPDATE intelligence_sources
		SET status = ?, error_message = ?, last_crawled_at = ?, updated_at = ?
		WHERE id = ?`)

	res, err := ex.ExecContext(ctx, query,
		src.Status,
		nullString(src.ErrorMessage),
		nullTime(src.LastCrawledAt),
		time.Now().Unix(),
		src.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	return requireAffected(res)
}

// ClaimSourcesForCrawl moves every source not already processing into
// processing, clears its error and returns the claimed sources.
func (c *Client) ClaimSourcesForCrawl(ctx context.Context) ([]models.Source, error) {
	var claimed []models.Source

	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		var rows []sourceRow
		query := tx.Rebind(`SELECT ` + sourceColumns + ` FROM intelligence_sources WHERE status <> ? ORDER BY created_at`)
		if err := tx.SelectContext(ctx, &rows, query, models.SourceProcessing); err != nil {
			return fmt.Errorf("failed to select sources: %w", err)
		}

		update := tx.Rebind(`UPDATE intelligence_sources SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`)
		now := time.Now().Unix()
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, update, models.SourceProcessing, now, r.ID); err != nil {
				return fmt.Errorf("failed to claim source %s: %w", r.ID, err)
			}
			src := r.toModel()
			src.Status = models.SourceProcessing
			src.ErrorMessage = nil
			claimed = append(claimed, src)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// DeleteSource removes the source together with its items.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM intelligence_items WHERE source_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete source items: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM intelligence_sources WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
		return requireAffected(res)
	})
}

// ResetStaleSources marks sources stuck in processing since before as error.
func (c *Client) ResetStaleSources(ctx context.Context, before time.Time, message string) (int64, error) {
	query := c.db.Rebind(`UPDATE intelligence_sources SET status = ?, error_message = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?`)

	res, err := c.db.ExecContext(ctx, query,
		models.SourceError,
		message,
		time.Now().Unix(),
		models.SourceProcessing,
		before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale sources: %w", err)
	}
	return res.RowsAffected()
}
