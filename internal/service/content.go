package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/filter"
	"github.com/sakif/nexusmena/internal/market"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/portal"
)

// ContentService serves the content collections, the resource directory
// and the market board.
type ContentService struct {
	content *content.Store
	board   *market.Board
	logger  *slog.Logger
}

func NewContentService(st *portal.State, logger *slog.Logger) *ContentService {
	return &ContentService{content: st.Content, board: st.Market, logger: logger}
}

// List returns the items of one collection that match c. kind accepts the
// route names parsed by model.ParseKind.
func (s *ContentService) List(kind string, c filter.Criteria) ([]model.Item, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	return filter.Items(s.content.List(k), c), nil
}

func (s *ContentService) Get(kind, id string) (model.Item, error) {
	k, err := parseKind(kind)
	if err != nil {
		return model.Item{}, err
	}
	return s.content.Get(k, id)
}

// Add publishes a submitted item at the head of its collection.
func (s *ContentService) Add(kind string, d content.Draft) (model.Item, error) {
	k, err := parseKind(kind)
	if err != nil {
		return model.Item{}, err
	}
	it, err := s.content.Add(k, d)
	if err != nil {
		return model.Item{}, err
	}
	s.logger.Info("content added", slog.String("kind", string(k)), slog.String("id", it.ID))
	return it, nil
}

// Resources lists the directory, optionally narrowed to one category.
func (s *ContentService) Resources(category string) []model.Resource {
	return filter.Resources(s.content.Resources(), filter.Criteria{Category: category})
}

func (s *ContentService) AddResource(r model.Resource) (model.Resource, error) {
	return s.content.AddResource(r)
}

// Market returns the current snapshot, optionally narrowed to one asset class.
func (s *ContentService) Market(category string) model.MarketSnapshot {
	snap := s.board.Current()
	snap.Metrics = filter.Metrics(snap.Metrics, filter.Criteria{Category: category})
	return snap
}

// RefreshMarket pulls a new snapshot. On failure the previous one is kept
// and the error is reported as unavailable.
func (s *ContentService) RefreshMarket(ctx context.Context) (model.MarketSnapshot, error) {
	snap, err := s.board.Refresh(ctx)
	if err != nil {
		s.logger.Warn("market refresh failed", slog.String("error", err.Error()))
		return snap, fmt.Errorf("%w: %w", apperror.Unavailable("market data"), err)
	}
	return snap, nil
}

func parseKind(s string) (model.Kind, error) {
	k, ok := model.ParseKind(s)
	if !ok {
		return "", apperror.NotFound("collection", s)
	}
	return k, nil
}
