package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgFTS searches the generated cards.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true: without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgftsQuery = `
	SELECT c.id::text
	FROM cards c
	WHERE c.fts @@ plainto_tsquery('english', $1)
	ORDER BY ts_rank(c.fts, plainto_tsquery('english', $1)) DESC, c.created_at
	LIMIT $2`

func (p *PgFTS) SearchCards(ctx context.Context, q Query) ([]string, error) {
	if q.blank() {
		return []string{}, nil
	}
	rows, err := p.db.QueryContext(ctx, pgftsQuery, q.Text, q.limit())
	if err != nil {
		return nil, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadAllCards returns every card for a full reindex.
func (p *PgFTS) LoadAllCards(ctx context.Context) ([]CardRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, title, body, status, visibility FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	records := make([]CardRecord, 0)
	for rows.Next() {
		var r CardRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.Status, &r.Visibility); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return records, nil
}
