package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/logger"
)

type itemRow struct {
	ID             string         `db:"id"`
	SourceID       string         `db:"source_id"`
	URL            sql.NullString `db:"url"`
	Title          sql.NullString `db:"title"`
	TitleZH        sql.NullString `db:"title_zh"`
	PublishDate    sql.NullString `db:"publish_date"`
	ContentType    sql.NullString `db:"content_type"`
	Summary        sql.NullString `db:"summary"`
	RiskTags       sql.NullString `db:"risk_tags"`
	RiskHint       sql.NullString `db:"risk_hint"`
	OriginalText   sql.NullString `db:"original_text"`
	TranslatedText sql.NullString `db:"translated_text"`
	RelevanceScore float64        `db:"relevance_score"`
	CreatedAt      int64          `db:"created_at"`
}

type itemViewRow struct {
	itemRow
	SourceURL sql.NullString `db:"source_url"`
}

func newItemRow(item *models.IntelligenceItem) (itemRow, error) {
	tags := item.RiskTags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return itemRow{}, fmt.Errorf("failed to marshal risk tags: %w", err)
	}

	return itemRow{
		ID:             item.ID,
		SourceID:       item.SourceID,
		URL:            nullString(item.URL),
		Title:          sql.NullString{String: item.Title, Valid: true},
		TitleZH:        sql.NullString{String: item.TitleZH, Valid: item.TitleZH != ""},
		PublishDate:    nullString(item.PublishDate),
		ContentType:    sql.NullString{String: item.ContentType, Valid: item.ContentType != ""},
		Summary:        sql.NullString{String: item.Summary, Valid: true},
		RiskTags:       sql.NullString{String: string(tagsJSON), Valid: true},
		RiskHint:       sql.NullString{String: item.RiskHint, Valid: item.RiskHint != ""},
		OriginalText:   sql.NullString{String: item.OriginalText, Valid: true},
		TranslatedText: sql.NullString{String: item.TranslatedText, Valid: true},
		RelevanceScore: item.RelevanceScore,
		CreatedAt:      item.CreatedAt.UnixMilli(),
	}, nil
}

func (r itemRow) toModel() models.IntelligenceItem {
	item := models.IntelligenceItem{
		ID:             r.ID,
		SourceID:       r.SourceID,
		Title:          r.Title.String,
		TitleZH:        r.TitleZH.String,
		ContentType:    r.ContentType.String,
		Summary:        r.Summary.String,
		RiskHint:       r.RiskHint.String,
		OriginalText:   r.OriginalText.String,
		TranslatedText: r.TranslatedText.String,
		RelevanceScore: r.RelevanceScore,
		CreatedAt:      time.UnixMilli(r.CreatedAt).UTC(),
		RiskTags:       []string{},
	}
	if r.URL.Valid {
		u := r.URL.String
		item.URL = &u
	}
	if r.PublishDate.Valid {
		d := r.PublishDate.String
		item.PublishDate = &d
	}
	if r.RiskTags.Valid && r.RiskTags.String != "" {
		if err := json.Unmarshal([]byte(r.RiskTags.String), &item.RiskTags); err != nil {
			logger.Warn("Malformed risk tags", zap.String("item_id", r.ID), zap.Error(err))
			item.RiskTags = []string{}
		}
	}
	return item
}

// ExistingItemURLs returns every non-null item URL.
func (c *Client) ExistingItemURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := c.db.SelectContext(ctx, &urls, `SELECT url FROM intelligence_items WHERE url IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("failed to query item urls: %w", err)
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

const insertItem = `INSERT INTO intelligence_items (id, source_id, url, title, title_zh, publish_date, content_type,
		summary, risk_tags, risk_hint, original_text, translated_text, relevance_score, created_at)
	VALUES (:id, :source_id, :url, :title, :title_zh, :publish_date, :content_type,
		:summary, :risk_tags, :risk_hint, :original_text, :translated_text, :relevance_score, :created_at)
	ON CONFLICT DO NOTHING`

// CommitCrawl stores items and the source's new status in one transaction.
// Items whose URL was committed concurrently by another run are skipped; the
// number actually inserted is returned.
func (c *Client) CommitCrawl(ctx context.Context, src *models.Source, items []models.IntelligenceItem) (int, error) {
	inserted := 0

	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		for i := range items {
			row, err := newItemRow(&items[i])
			if err != nil {
				return err
			}
			res, err := tx.NamedExecContext(ctx, insertItem, row)
			if err != nil {
				return fmt.Errorf("failed to insert item: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			} else {
				logger.Debug("Item already stored", zap.String("item_id", row.ID), zap.String("url", row.URL.String))
			}
		}
		return saveSourceStatus(ctx, tx, src)
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func (c *Client) ListIntelligence(ctx context.Context) ([]models.IntelligenceView, error) {
	query := `SELECT i.id, i.source_id, i.url, i.title, i.title_zh, i.publish_date, i.content_type, i.summary,
			i.risk_tags, i.risk_hint, i.original_text, i.translated_text, i.relevance_score, i.created_at,
			s.url AS source_url
		FROM intelligence_items i
		JOIN intelligence_sources s ON i.source_id = s.id
		ORDER BY i.created_at DESC, i.id DESC`

	var rows []itemViewRow
	if err := c.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list intelligence: %w", err)
	}

	views := make([]models.IntelligenceView, 0, len(rows))
	for _, r := range rows {
		v := models.IntelligenceView{IntelligenceItem: r.itemRow.toModel(), SourceURL: r.SourceURL.String}
		if v.URL != nil && *v.URL != "" {
			v.SourceURL = *v.URL
		}
		views = append(views, v)
	}
	return views, nil
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM intelligence_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireAffected(res)
}

// DeleteItems removes the listed items and returns how many existed.
func (c *Client) DeleteItems(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM intelligence_items WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := c.db.ExecContext(ctx, c.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}
