package service

import (
	"context"
	"io"

	"github.com/riskintel/backend/internal/export"
	"github.com/riskintel/backend/internal/storage/models"
)

type ItemStore interface {
	ListIntelligence(ctx context.Context) ([]models.IntelligenceView, error)
	DeleteItem(ctx context.Context, id string) error
	DeleteItems(ctx context.Context, ids []string) (int, error)
}

type Intelligence struct {
	store ItemStore
}

func NewIntelligence(store ItemStore) *Intelligence {
	return &Intelligence{store: store}
}

// List returns stored items newest first.
func (s *Intelligence) List(ctx context.Context) ([]models.IntelligenceView, error) {
	views, err := s.store.ListIntelligence(ctx)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.IntelligenceView{}
	}
	return views, nil
}

func (s *Intelligence) Delete(ctx context.Context, id string) error {
	return translate(s.store.DeleteItem(ctx, id))
}

// BatchDelete removes the listed items; unknown ids are ignored.
func (s *Intelligence) BatchDelete(ctx context.Context, ids []string) (int, error) {
	return s.store.DeleteItems(ctx, ids)
}

// Export writes every stored item to w as an xlsx workbook.
func (s *Intelligence) Export(ctx context.Context, w io.Writer) error {
	views, err := s.List(ctx)
	if err != nil {
		return err
	}
	return export.WriteIntelligence(w, views)
}
