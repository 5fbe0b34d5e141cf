package store

import (
	"context"
	"fmt"
	"strings"
)

const cardColumns = `c.id, c.title, c.body, c.visibility, c.status, c.start_date, c.end_date, c.due_date, c.owner_id, c.created_by, c.created_at, c.updated_at`

func scanCardInto(card *Card, extra ...any) []any {
	return append([]any{&card.ID, &card.Title, &card.Body, &card.Visibility, &card.Status, &card.StartDate, &card.EndDate, &card.DueDate, &card.OwnerID, &card.CreatedBy, &card.CreatedAt, &card.UpdatedAt}, extra...)
}

func (s queries) InsertCard(ctx context.Context, card Card) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cards (id, title, body, visibility, status, start_date, end_date, due_date, owner_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, card.ID, card.Title, card.Body, card.Visibility, card.Status, card.StartDate, card.EndDate, card.DueDate, card.OwnerID, card.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s queries) GetCard(ctx context.Context, cardID string) (Card, error) {
	var card Card
	err := s.q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.id=$1`, cardID).Scan(scanCardInto(&card)...)
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s queries) UpdateCard(ctx context.Context, card Card) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE cards
		SET title=$2, body=$3, visibility=$4, status=$5, start_date=$6, end_date=$7, due_date=$8, owner_id=$9, updated_at=NOW()
		WHERE id=$1
	`, card.ID, card.Title, card.Body, card.Visibility, card.Status, card.StartDate, card.EndDate, card.DueDate, card.OwnerID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (s queries) DeleteCard(ctx context.Context, cardID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func (s queries) InsertAssignment(ctx context.Context, placement CardBoard) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO card_boards (id, card_id, board_id, column_id, position)
		VALUES ($1, $2, $3, $4::uuid, $5)
	`, placement.ID, placement.CardID, placement.BoardID, placement.ColumnID, placement.Position)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert card placement: %w", err)
	}
	return nil
}

func (s queries) GetAssignment(ctx context.Context, cardID, boardID string) (CardBoard, error) {
	var placement CardBoard
	err := s.q.QueryRowContext(ctx, `
		SELECT id, card_id, board_id, column_id, position, created_at
		FROM card_boards WHERE card_id=$1 AND board_id=$2
	`, cardID, boardID).Scan(&placement.ID, &placement.CardID, &placement.BoardID, &placement.ColumnID, &placement.Position, &placement.CreatedAt)
	if err != nil {
		return CardBoard{}, err
	}
	return placement, nil
}

func (s queries) ListAssignments(ctx context.Context, cardID string) ([]CardBoard, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, card_id, board_id, column_id, position, created_at
		FROM card_boards WHERE card_id=$1
		ORDER BY created_at, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card placements: %w", err)
	}
	return scanPlacements(rows)
}

// ListColumnAssignments returns the placements inside one column in display order.
func (s queries) ListColumnAssignments(ctx context.Context, columnID string) ([]CardBoard, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, card_id, board_id, column_id, position, created_at
		FROM card_boards WHERE column_id=$1
		ORDER BY position, card_id
	`, columnID)
	if err != nil {
		return nil, fmt.Errorf("list column placements: %w", err)
	}
	return scanPlacements(rows)
}

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}

func scanPlacements(rows rowScanner) ([]CardBoard, error) {
	defer rows.Close()
	placements := []CardBoard{}
	for rows.Next() {
		var placement CardBoard
		if err := rows.Scan(&placement.ID, &placement.CardID, &placement.BoardID, &placement.ColumnID, &placement.Position, &placement.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card placement: %w", err)
		}
		placements = append(placements, placement)
	}
	return placements, rows.Err()
}

func (s queries) DeleteAssignment(ctx context.Context, cardID, boardID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM card_boards WHERE card_id=$1 AND board_id=$2`, cardID, boardID)
	if err != nil {
		return false, fmt.Errorf("delete card placement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete card placement rows: %w", err)
	}
	return affected > 0, nil
}

// ListBoardCards returns the cards placed on a board ordered by column
// position, then card position, with unfiled cards last. Visibility is not
// applied here.
func (s queries) ListBoardCards(ctx context.Context, boardID string, filter CardFilter) ([]BoardCard, error) {
	var where []string
	args := []any{boardID}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "cb.board_id = $1")
	if filter.CardIDs != nil {
		where = append(where, "c.id::text = ANY("+arg(filter.CardIDs)+"::text[])")
	}
	if len(filter.TagIDs) > 0 {
		where = append(where, "c.id IN (SELECT card_id FROM card_tags WHERE tag_id::text = ANY("+arg(filter.TagIDs)+"::text[]))")
	}
	if filter.Status != "" {
		where = append(where, "c.status = "+arg(filter.Status))
	}
	ranges := []struct {
		column string
		from   any
		to     any
		fromOK bool
		toOK   bool
	}{
		{"c.start_date", filter.StartFrom, filter.StartTo, filter.StartFrom != nil, filter.StartTo != nil},
		{"c.end_date", filter.EndFrom, filter.EndTo, filter.EndFrom != nil, filter.EndTo != nil},
		{"c.due_date", filter.DueFrom, filter.DueTo, filter.DueFrom != nil, filter.DueTo != nil},
		{"c.updated_at", filter.UpdatedFrom, filter.UpdatedTo, filter.UpdatedFrom != nil, filter.UpdatedTo != nil},
	}
	for _, r := range ranges {
		if r.fromOK {
			where = append(where, r.column+" >= "+arg(r.from))
		}
		if r.toOK {
			where = append(where, r.column+" <= "+arg(r.to))
		}
	}

	query := `
		SELECT ` + cardColumns + `, cb.id, cb.card_id, cb.board_id, cb.column_id, cb.position, cb.created_at
		FROM card_boards cb
		JOIN cards c ON c.id = cb.card_id
		LEFT JOIN columns col ON col.id = cb.column_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY col.position NULLS LAST, col.id, cb.position, c.id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list board cards: %w", err)
	}
	defer rows.Close()

	cards := []BoardCard{}
	for rows.Next() {
		var item BoardCard
		p := &item.Placement
		if err := rows.Scan(scanCardInto(&item.Card, &p.ID, &p.CardID, &p.BoardID, &p.ColumnID, &p.Position, &p.CreatedAt)...); err != nil {
			return nil, fmt.Errorf("scan board card: %w", err)
		}
		cards = append(cards, item)
	}
	return cards, rows.Err()
}

// ListUserCards returns cards the user created or is assigned to, newest first.
func (s queries) ListUserCards(ctx context.Context, userID string) ([]Card, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		WHERE c.created_by = $1 OR c.owner_id = $1
		ORDER BY c.updated_at DESC, c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user cards: %w", err)
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		var card Card
		if err := rows.Scan(scanCardInto(&card)...); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s queries) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO comments (id, card_id, user_id, body) VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.CardID, comment.UserID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s queries) ListComments(ctx context.Context, cardID string) ([]Comment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT cm.id, cm.card_id, cm.user_id, u.name, cm.body, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.card_id = $1
		ORDER BY cm.created_at, cm.id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.CardID, &comment.UserID, &comment.UserName, &comment.Body, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}
