package store

import (
	"context"
	"fmt"
)

const tagColumns = `t.id, t.board_id, t.owner_id, t.name, t.color, t.created_at`

func scanTags(rows rowScanner, withCard bool) ([]Tag, []string, error) {
	defer rows.Close()
	tags := []Tag{}
	var cardIDs []string
	for rows.Next() {
		var tag Tag
		dest := []any{&tag.ID, &tag.BoardID, &tag.OwnerID, &tag.Name, &tag.Color, &tag.CreatedAt}
		var cardID string
		if withCard {
			dest = append(dest, &cardID)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
		cardIDs = append(cardIDs, cardID)
	}
	return tags, cardIDs, rows.Err()
}

func (s queries) InsertTag(ctx context.Context, tag Tag) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tags (id, board_id, owner_id, name, color)
		VALUES ($1, $2::uuid, $3::uuid, $4, $5)
	`, tag.ID, tag.BoardID, tag.OwnerID, tag.Name, tag.Color)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s queries) GetTag(ctx context.Context, tagID string) (Tag, error) {
	var tag Tag
	err := s.q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.id=$1`, tagID).
		Scan(&tag.ID, &tag.BoardID, &tag.OwnerID, &tag.Name, &tag.Color, &tag.CreatedAt)
	if err != nil {
		return Tag{}, err
	}
	return tag, nil
}

func (s queries) UpdateTag(ctx context.Context, tag Tag) error {
	_, err := s.q.ExecContext(ctx, `UPDATE tags SET name=$2, color=$3 WHERE id=$1`, tag.ID, tag.Name, tag.Color)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return nil
}

func (s queries) DeleteTag(ctx context.Context, tagID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

func (s queries) ListBoardTags(ctx context.Context, boardID string) ([]Tag, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.board_id=$1 ORDER BY t.name, t.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board tags: %w", err)
	}
	tags, _, err := scanTags(rows, false)
	return tags, err
}

func (s queries) ListUserTags(ctx context.Context, userID string) ([]Tag, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.owner_id=$1 ORDER BY t.name, t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user tags: %w", err)
	}
	tags, _, err := scanTags(rows, false)
	return tags, err
}

// AddCardTag is idempotent.
func (s queries) AddCardTag(ctx context.Context, cardID, tagID string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO card_tags (card_id, tag_id) VALUES ($1, $2)
		ON CONFLICT (card_id, tag_id) DO NOTHING
	`, cardID, tagID)
	if err != nil {
		return fmt.Errorf("add card tag: %w", err)
	}
	return nil
}

func (s queries) RemoveCardTag(ctx context.Context, cardID, tagID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id=$1 AND tag_id=$2`, cardID, tagID)
	if err != nil {
		return false, fmt.Errorf("remove card tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove card tag rows: %w", err)
	}
	return affected > 0, nil
}

// ListCardTags returns the tags of each card keyed by card id.
func (s queries) ListCardTags(ctx context.Context, cardIDs []string) (map[string][]Tag, error) {
	byCard := map[string][]Tag{}
	if len(cardIDs) == 0 {
		return byCard, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+tagColumns+`, ct.card_id
		FROM card_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.card_id::text = ANY($1::text[])
		ORDER BY t.name, t.id
	`, cardIDs)
	if err != nil {
		return nil, fmt.Errorf("list card tags: %w", err)
	}
	tags, owners, err := scanTags(rows, true)
	if err != nil {
		return nil, err
	}
	for i, tag := range tags {
		byCard[owners[i]] = append(byCard[owners[i]], tag)
	}
	return byCard, nil
}
