package kanban

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// Assignments manages card placements on boards.
type Assignments struct {
	positions PositionIndex
}

func placementScope(boardID string, columnID *string) store.Scope {
	return store.CardsScope(boardID, columnID)
}

func checkColumn(board store.Board, column *store.Column) error {
	if column != nil && column.BoardID != board.ID {
		return Validationf("column %q does not belong to board %q", column.Name, board.Name)
	}
	return nil
}

func columnID(column *store.Column) *string {
	if column == nil {
		return nil
	}
	id := column.ID
	return &id
}

// Assign places card on board. A nil column targets the unfiled bucket.
func (a Assignments) Assign(ctx context.Context, tx Tx, card store.Card, board store.Board, column *store.Column, desired *int) (store.CardBoard, error) {
	if err := checkColumn(board, column); err != nil {
		return store.CardBoard{}, err
	}
	if _, err := tx.GetAssignment(ctx, card.ID, board.ID); err == nil {
		return store.CardBoard{}, Conflictf("card %q is already on board %q", card.Title, board.Name)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.CardBoard{}, err
	}

	placement := store.CardBoard{
		ID:       util.NewID(),
		CardID:   card.ID,
		BoardID:  board.ID,
		ColumnID: columnID(column),
	}
	position, err := a.positions.Insert(ctx, tx, placementScope(board.ID, placement.ColumnID), desired)
	if err != nil {
		return store.CardBoard{}, err
	}
	placement.Position = position
	if err := tx.InsertAssignment(ctx, placement); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.CardBoard{}, Conflictf("card %q is already on board %q", card.Title, board.Name)
		}
		return store.CardBoard{}, err
	}
	return placement, nil
}

// Move re-homes an existing placement within its board.
func (a Assignments) Move(ctx context.Context, tx Tx, card store.Card, board store.Board, column *store.Column, desired *int) (store.CardBoard, error) {
	if err := checkColumn(board, column); err != nil {
		return store.CardBoard{}, err
	}
	placement, err := tx.GetAssignment(ctx, card.ID, board.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CardBoard{}, NotFoundf("card %q is not on board %q", card.Title, board.Name)
	}
	if err != nil {
		return store.CardBoard{}, err
	}

	from := placementScope(board.ID, placement.ColumnID)
	to := placementScope(board.ID, columnID(column))
	position, err := a.positions.Move(ctx, tx, card.ID, from, to, desired)
	if err != nil {
		return store.CardBoard{}, err
	}
	placement.ColumnID = to.ColumnID
	placement.Position = position
	return placement, nil
}

// Unassign removes card from board and reports whether a placement existed.
func (a Assignments) Unassign(ctx context.Context, tx Tx, cardID, boardID string) (bool, error) {
	placement, err := tx.GetAssignment(ctx, cardID, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	scope := placementScope(boardID, placement.ColumnID)
	if err := lockScope(ctx, tx, scope); err != nil {
		return false, err
	}
	// another writer may have unassigned it before the lock
	if _, err := tx.GetAssignment(ctx, cardID, boardID); errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := a.positions.Remove(ctx, tx, scope, cardID); err != nil {
		return false, err
	}
	return tx.DeleteAssignment(ctx, cardID, boardID)
}
