package kanban

import (
	"context"
	"fmt"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// boardColumn resolves a column for a write, through its board when one is
// given and through the column id otherwise.
func (e *Executor) boardColumn(ctx context.Context, tx Tx, actor Actor, boardRef, columnRef Ref) (store.Column, store.Board, error) {
	var (
		column store.Column
		board  store.Board
		role   rbac.Role
		err    error
	)
	if boardRef.IsZero() {
		column, board, role, err = resolveColumnBoard(ctx, tx, actor, columnRef)
		if err != nil {
			return store.Column{}, store.Board{}, err
		}
	} else {
		board, role, err = resolveBoard(ctx, tx, actor, boardRef)
		if err != nil {
			return store.Column{}, store.Board{}, err
		}
		if err := requireRole(role, rbac.RoleReader, board); err != nil {
			return store.Column{}, store.Board{}, err
		}
		if column, err = resolveColumn(ctx, tx, board, columnRef); err != nil {
			return store.Column{}, store.Board{}, err
		}
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return store.Column{}, store.Board{}, err
	}
	return column, board, nil
}

func (e *Executor) createColumn(ctx context.Context, tx Tx, actor Actor, a CreateColumn) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	column, err := e.insertColumn(ctx, tx, board, a.Name, a.Position)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Created column %q on board %q", column.Name, board.Name),
		entity:      column,
	}, nil
}

func (e *Executor) insertColumn(ctx context.Context, tx Tx, board store.Board, name string, desired *int) (store.Column, error) {
	name = CleanLine(name)
	if name == "" {
		return store.Column{}, Validationf("column name is required")
	}
	position, err := e.positions.Insert(ctx, tx, store.ColumnsScope(board.ID), desired)
	if err != nil {
		return store.Column{}, err
	}
	column := store.Column{ID: util.NewID(), BoardID: board.ID, Name: name, Position: position}
	if err := tx.InsertColumn(ctx, column); err != nil {
		return store.Column{}, err
	}
	return tx.GetColumn(ctx, column.ID)
}

func (e *Executor) updateColumn(ctx context.Context, tx Tx, actor Actor, a UpdateColumn) (applied, error) {
	column, _, err := e.boardColumn(ctx, tx, actor, a.Board, a.Column)
	if err != nil {
		return applied{}, err
	}
	name := CleanLine(a.Name)
	if name == "" {
		return applied{}, Validationf("column name is required")
	}
	if err := tx.RenameColumn(ctx, column.ID, name); err != nil {
		return applied{}, err
	}
	previous := column.Name
	column.Name = name
	return applied{
		description: fmt.Sprintf("Renamed column %q to %q", previous, name),
		entity:      column,
	}, nil
}

func (e *Executor) moveColumn(ctx context.Context, tx Tx, actor Actor, a MoveColumn) (applied, error) {
	column, board, err := e.boardColumn(ctx, tx, actor, a.Board, a.Column)
	if err != nil {
		return applied{}, err
	}
	scope := store.ColumnsScope(board.ID)
	position, err := e.positions.Move(ctx, tx, column.ID, scope, scope, &a.Position)
	if err != nil {
		return applied{}, err
	}
	column.Position = position
	return applied{
		description: fmt.Sprintf("Moved column %q to position %d", column.Name, position),
		entity:      column,
	}, nil
}

func (e *Executor) deleteColumn(ctx context.Context, tx Tx, actor Actor, a DeleteColumn) (applied, error) {
	column, board, err := e.boardColumn(ctx, tx, actor, a.Board, a.Column)
	if err != nil {
		return applied{}, err
	}

	from := store.CardsScope(board.ID, &column.ID)
	unfiled := store.CardsScope(board.ID, nil)
	// the card list must not change between reading it and draining it
	if err := lockScopes(ctx, tx, from, unfiled); err != nil {
		return applied{}, err
	}
	placements, err := tx.ListColumnAssignments(ctx, column.ID)
	if err != nil {
		return applied{}, err
	}
	cardIDs := make([]string, len(placements))
	for i, placement := range placements {
		cardIDs[i] = placement.CardID
	}
	if err := e.positions.Drain(ctx, tx, from, unfiled, cardIDs); err != nil {
		return applied{}, err
	}
	if err := e.positions.Remove(ctx, tx, store.ColumnsScope(board.ID), column.ID); err != nil {
		return applied{}, err
	}
	if err := tx.DeleteColumn(ctx, column.ID); err != nil {
		return applied{}, err
	}

	description := fmt.Sprintf("Deleted column %q", column.Name)
	if len(cardIDs) > 0 {
		description += fmt.Sprintf(" and moved %d card(s) to unfiled", len(cardIDs))
	}
	return applied{description: description, entity: column}, nil
}
