package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type ScopeKind int

const (
	// ScopeColumns orders a board's columns.
	ScopeColumns ScopeKind = iota
	// ScopeCards orders card placements inside a column or a board's unfiled bucket.
	ScopeCards
)

// Scope is one ordering domain. For ScopeCards a nil ColumnID is the unfiled bucket.
type Scope struct {
	Kind     ScopeKind
	BoardID  string
	ColumnID *string
}

func ColumnsScope(boardID string) Scope {
	return Scope{Kind: ScopeColumns, BoardID: boardID}
}

func CardsScope(boardID string, columnID *string) Scope {
	return Scope{Kind: ScopeCards, BoardID: boardID, ColumnID: columnID}
}

// Key identifies the row locked for this scope; scopes sharing a key share a lock.
func (s Scope) Key() string {
	if s.Kind == ScopeCards && s.ColumnID != nil {
		return "column:" + *s.ColumnID
	}
	return "board:" + s.BoardID
}

func (s Scope) Equal(other Scope) bool {
	if s.Kind != other.Kind || s.BoardID != other.BoardID {
		return false
	}
	if s.ColumnID == nil || other.ColumnID == nil {
		return s.ColumnID == nil && other.ColumnID == nil
	}
	return *s.ColumnID == *other.ColumnID
}

func (s Scope) String() string {
	if s.Kind == ScopeColumns {
		return "columns of board " + s.BoardID
	}
	if s.ColumnID == nil {
		return "unfiled cards of board " + s.BoardID
	}
	return "cards of column " + *s.ColumnID
}

// LockScope takes a row lock on the scope's parent so writers on the same
// scope serialize. It returns ErrScopeGone when the parent no longer exists.
func (s queries) LockScope(ctx context.Context, scope Scope) error {
	var id string
	var err error
	if scope.Kind == ScopeCards && scope.ColumnID != nil {
		err = s.q.QueryRowContext(ctx, `SELECT id FROM columns WHERE id=$1 AND board_id=$2 FOR UPDATE`, *scope.ColumnID, scope.BoardID).Scan(&id)
	} else {
		err = s.q.QueryRowContext(ctx, `SELECT id FROM boards WHERE id=$1 FOR UPDATE`, scope.BoardID).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrScopeGone, scope)
	}
	if err != nil {
		return fmt.Errorf("lock scope: %w", err)
	}
	return nil
}

// ItemPosition returns the position of itemID inside scope, or
// sql.ErrNoRows when the item is not in that scope.
func (s queries) ItemPosition(ctx context.Context, scope Scope, itemID string) (int, error) {
	var position int
	var err error
	if scope.Kind == ScopeColumns {
		err = s.q.QueryRowContext(ctx, `
			SELECT position FROM columns WHERE id=$1 AND board_id=$2
		`, itemID, scope.BoardID).Scan(&position)
	} else {
		err = s.q.QueryRowContext(ctx, `
			SELECT position FROM card_boards
			WHERE card_id=$1 AND board_id=$2 AND column_id IS NOT DISTINCT FROM $3::uuid
		`, itemID, scope.BoardID, scope.ColumnID).Scan(&position)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("item position: %w", err)
	}
	return position, nil
}

// ScopeStats returns the item count and highest position, -1 when empty.
func (s queries) ScopeStats(ctx context.Context, scope Scope) (count, maxPosition int, err error) {
	if scope.Kind == ScopeColumns {
		err = s.q.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(MAX(position), -1) FROM columns WHERE board_id=$1
		`, scope.BoardID).Scan(&count, &maxPosition)
	} else {
		err = s.q.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(MAX(position), -1) FROM card_boards
			WHERE board_id=$1 AND column_id IS NOT DISTINCT FROM $2::uuid
		`, scope.BoardID, scope.ColumnID).Scan(&count, &maxPosition)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("scope stats: %w", err)
	}
	return count, maxPosition, nil
}

// ShiftPositions adds delta to every item in scope at position >= from,
// skipping excludeID when set.
func (s queries) ShiftPositions(ctx context.Context, scope Scope, from, delta int, excludeID string) error {
	var err error
	if scope.Kind == ScopeColumns {
		_, err = s.q.ExecContext(ctx, `
			UPDATE columns SET position = position + $3
			WHERE board_id=$1 AND position >= $2 AND ($4::uuid IS NULL OR id <> $4::uuid)
		`, scope.BoardID, from, delta, nullableString(excludeID))
	} else {
		_, err = s.q.ExecContext(ctx, `
			UPDATE card_boards SET position = position + $4
			WHERE board_id=$1 AND column_id IS NOT DISTINCT FROM $2::uuid AND position >= $3
				AND ($5::uuid IS NULL OR card_id <> $5::uuid)
		`, scope.BoardID, scope.ColumnID, from, delta, nullableString(excludeID))
	}
	if err != nil {
		return fmt.Errorf("shift positions: %w", err)
	}
	return nil
}

// PlaceItem writes an item's scope and position. For columns itemID is the
// column id; for cards it is the card id within the scope's board.
func (s queries) PlaceItem(ctx context.Context, scope Scope, itemID string, position int) error {
	var err error
	if scope.Kind == ScopeColumns {
		_, err = s.q.ExecContext(ctx, `UPDATE columns SET position=$3 WHERE id=$1 AND board_id=$2`, itemID, scope.BoardID, position)
	} else {
		_, err = s.q.ExecContext(ctx, `
			UPDATE card_boards SET column_id=$3::uuid, position=$4 WHERE card_id=$1 AND board_id=$2
		`, itemID, scope.BoardID, scope.ColumnID, position)
	}
	if err != nil {
		return fmt.Errorf("place item: %w", err)
	}
	return nil
}
