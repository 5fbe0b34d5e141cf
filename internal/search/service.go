package search

import (
	"context"

	"go.uber.org/zap"

	"taskboard/api/internal/store"
)

type primaryIndex interface {
	Searcher
	Indexer
}

type loader interface {
	Searcher
	LoadAllCards(ctx context.Context) ([]CardRecord, error)
}

// Service tries Meilisearch first and falls back to Postgres FTS. It also
// satisfies the executor's card indexer hook.
type Service struct {
	primary  primaryIndex
	fallback loader
	logger   *zap.Logger
}

// NewService builds the facade. meili may be nil when Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.primary = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// SearchCardIDs returns matching card ids, best first. A blank query matches nothing.
func (s *Service) SearchCardIDs(ctx context.Context, text string) ([]string, error) {
	q := Query{Text: text}
	if q.blank() {
		return []string{}, nil
	}
	if s.primaryReady() {
		ids, err := s.primary.SearchCards(ctx, q)
		if err == nil {
			return ids, nil
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}
	if s.fallback == nil {
		return []string{}, nil
	}
	return s.fallback.SearchCards(ctx, q)
}

// IndexCard mirrors a created or edited card. Index failures are logged, not
// returned, so a write never fails because the index is behind.
func (s *Service) IndexCard(_ context.Context, card store.Card) error {
	if !s.primaryReady() {
		return nil
	}
	if err := s.primary.IndexCards([]CardRecord{recordFromCard(card)}); err != nil {
		s.logger.Warn("index card", zap.String("card_id", card.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) RemoveCard(_ context.Context, id string) error {
	if !s.primaryReady() {
		return nil
	}
	if err := s.primary.DeleteCard(id); err != nil {
		s.logger.Warn("remove card from index", zap.String("card_id", id), zap.Error(err))
	}
	return nil
}

// ReindexAllFromPG pushes every card into Meilisearch. Called once at startup.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.primaryReady() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllCards(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.primary.IndexCards(records); err != nil {
		s.logger.Warn("reindex cards", zap.Int("count", len(records)), zap.Error(err))
		return
	}
	s.logger.Info("reindexed cards", zap.Int("count", len(records)))
}
