// Package search keeps a full-text index of cards. Meilisearch is preferred
// and Postgres full-text search answers whenever it is missing or unhealthy.
package search

import (
	"context"
	"strings"

	"taskboard/api/internal/store"
)

const defaultLimit = 200

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Status     string `json:"status"`
	Visibility string `json:"visibility"`
}

func recordFromCard(card store.Card) CardRecord {
	return CardRecord{
		ID:         card.ID,
		Title:      card.Title,
		Body:       card.Body,
		Status:     card.Status,
		Visibility: card.Visibility,
	}
}

// Query describes a card search.
type Query struct {
	Text  string
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}

func (q Query) blank() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Searcher returns the ids of cards matching a query, best match first.
type Searcher interface {
	SearchCards(ctx context.Context, q Query) ([]string, error)
	Healthy() bool
}

// Indexer pushes card records into a search index.
type Indexer interface {
	IndexCards(records []CardRecord) error
	DeleteCard(id string) error
}
