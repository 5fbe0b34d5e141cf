package kanban

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// PlacedCard is a card together with its placement on the board an action
// targeted. Placement is nil for standalone cards.
type PlacedCard struct {
	Card      store.Card
	Placement *store.CardBoard
}

func placeName(column *store.Column) string {
	if column == nil {
		return "unfiled"
	}
	return fmt.Sprintf("%q", column.Name)
}

func checkAssignee(ctx context.Context, tx Tx, ownerID string) (*string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}
	if !util.IsUUID(ownerID) {
		return nil, Validationf("owner_id must be a user id")
	}
	if _, err := tx.GetUserByID(ctx, ownerID); err != nil {
		return nil, classify(err, "assignee")
	}
	return &ownerID, nil
}

func (e *Executor) createCard(ctx context.Context, tx Tx, actor Actor, a CreateCard) (applied, error) {
	var board *store.Board
	var column *store.Column
	switch {
	case !a.Board.IsZero():
		b, role, err := resolveBoard(ctx, tx, actor, a.Board)
		if err != nil {
			return applied{}, err
		}
		if err := requireRole(role, rbac.RoleEditor, b); err != nil {
			return applied{}, err
		}
		board = &b
		if !a.Column.IsZero() {
			c, err := resolveColumn(ctx, tx, b, a.Column)
			if err != nil {
				return applied{}, err
			}
			column = &c
		}
	case !a.Column.IsZero():
		c, b, role, err := resolveColumnBoard(ctx, tx, actor, a.Column)
		if err != nil {
			return applied{}, err
		}
		if err := requireRole(role, rbac.RoleEditor, b); err != nil {
			return applied{}, err
		}
		board, column = &b, &c
	}

	title := CleanLine(a.Title)
	if title == "" {
		return applied{}, Validationf("title is required")
	}
	ownerID, err := checkAssignee(ctx, tx, a.OwnerID)
	if err != nil {
		return applied{}, err
	}
	status := a.Status
	if status == "" {
		status = "open"
	}
	card := store.Card{
		ID:         util.NewID(),
		Title:      title,
		Body:       CleanBody(a.Body),
		Visibility: string(rbac.NormalizeVisibility(a.Visibility)),
		Status:     status,
		StartDate:  a.StartDate,
		EndDate:    a.EndDate,
		DueDate:    a.DueDate,
		OwnerID:    ownerID,
		CreatedBy:  actor.UserID,
	}
	if err := tx.InsertCard(ctx, card); err != nil {
		return applied{}, err
	}
	if card, err = tx.GetCard(ctx, card.ID); err != nil {
		return applied{}, err
	}

	result := applied{
		description: fmt.Sprintf("Created card %q", card.Title),
		entity:      PlacedCard{Card: card},
		effects:     []func(context.Context){e.indexEffect(card)},
	}
	if board != nil {
		placement, err := e.assignments.Assign(ctx, tx, card, *board, column, a.Position)
		if err != nil {
			return applied{}, err
		}
		result.description = fmt.Sprintf("Created card %q in %s on board %q", card.Title, placeName(column), board.Name)
		result.entity = PlacedCard{Card: card, Placement: &placement}
	}
	return result, nil
}

func (e *Executor) updateCard(ctx context.Context, tx Tx, actor Actor, a UpdateCard) (applied, error) {
	card, err := e.mutableCard(ctx, tx, actor, a.Board, a.Card)
	if err != nil {
		return applied{}, err
	}

	var changed []string
	if a.Title != nil {
		card.Title = CleanLine(*a.Title)
		if card.Title == "" {
			return applied{}, Validationf("title is required")
		}
		changed = append(changed, "title")
	}
	if a.Body != nil {
		card.Body = CleanBody(*a.Body)
		changed = append(changed, "body")
	}
	if a.Visibility != nil && *a.Visibility != "" {
		card.Visibility = string(rbac.NormalizeVisibility(*a.Visibility))
		changed = append(changed, "visibility")
	}
	if a.Status != nil && *a.Status != "" {
		card.Status = *a.Status
		changed = append(changed, "status")
	}
	if a.StartDate.Set {
		card.StartDate = a.StartDate.Value
		changed = append(changed, "start date")
	}
	if a.EndDate.Set {
		card.EndDate = a.EndDate.Value
		changed = append(changed, "end date")
	}
	if a.DueDate.Set {
		card.DueDate = a.DueDate.Value
		changed = append(changed, "due date")
	}
	if a.OwnerID != nil {
		if card.OwnerID, err = checkAssignee(ctx, tx, *a.OwnerID); err != nil {
			return applied{}, err
		}
		changed = append(changed, "assignee")
	}
	if err := checkDateRange(card.StartDate, card.EndDate); err != nil {
		return applied{}, err
	}

	if err := tx.UpdateCard(ctx, card); err != nil {
		return applied{}, err
	}
	updated, err := tx.GetCard(ctx, card.ID)
	if err != nil {
		return applied{}, err
	}

	description := fmt.Sprintf("Updated card %q", updated.Title)
	if len(changed) > 0 {
		description += " (" + strings.Join(changed, ", ") + ")"
	}
	return applied{
		description: description,
		entity:      PlacedCard{Card: updated},
		effects:     []func(context.Context){e.indexEffect(updated)},
	}, nil
}

func (e *Executor) moveCard(ctx context.Context, tx Tx, actor Actor, a MoveCard) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleReader, board); err != nil {
		return applied{}, err
	}
	card, err := e.resolveBoardCard(ctx, tx, actor, board, role, a.Card)
	if err != nil && a.AssignIfMissing && KindOf(err) == KindNotFound {
		card, err = e.resolveAnyCard(ctx, tx, actor, a.Card)
	}
	if err != nil {
		return applied{}, err
	}

	if _, err := tx.GetAssignment(ctx, card.ID, board.ID); errors.Is(err, sql.ErrNoRows) {
		if !a.AssignIfMissing {
			return applied{}, NotFoundf("card %q is not on board %q", card.Title, board.Name)
		}
		return e.assign(ctx, tx, actor, card, board, role, a.Column, a.Position)
	} else if err != nil {
		return applied{}, err
	}

	if !e.canView(card, role, actor) {
		return applied{}, Forbiddenf("card %q is not visible to you", card.Title)
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	var column *store.Column
	if !a.Column.IsZero() {
		c, err := resolveColumn(ctx, tx, board, a.Column)
		if err != nil {
			return applied{}, err
		}
		column = &c
	}
	placement, err := e.assignments.Move(ctx, tx, card, board, column, a.Position)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Moved card %q to %s", card.Title, placeName(column)),
		entity:      PlacedCard{Card: card, Placement: &placement},
	}, nil
}

func (e *Executor) deleteCard(ctx context.Context, tx Tx, actor Actor, a DeleteCard) (applied, error) {
	var card store.Card
	if !a.Board.IsZero() {
		found, err := e.boardCard(ctx, tx, actor, a.Board, a.Card, rbac.RoleEditor)
		if err != nil {
			return applied{}, err
		}
		card = found.card
	} else {
		var err error
		if card, err = e.resolveAnyCard(ctx, tx, actor, a.Card); err != nil {
			return applied{}, err
		}
	}

	placements, err := tx.ListAssignments(ctx, card.ID)
	if err != nil {
		return applied{}, err
	}
	if card.CreatedBy != actor.UserID {
		if len(placements) == 0 {
			return applied{}, Forbiddenf("only the creator can delete card %q", card.Title)
		}
		for _, placement := range placements {
			role, err := tx.GetRole(ctx, placement.BoardID, actor.UserID)
			if err != nil {
				return applied{}, err
			}
			if rbac.Require(rbac.Role(role), rbac.RoleEditor) != nil {
				return applied{}, Forbiddenf("deleting card %q requires editor on every board it is on", card.Title)
			}
		}
	}

	for _, placement := range placements {
		scope := placementScope(placement.BoardID, placement.ColumnID)
		if err := e.positions.Remove(ctx, tx, scope, card.ID); err != nil {
			return applied{}, err
		}
	}
	if err := tx.DeleteCard(ctx, card.ID); err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Deleted card %q", card.Title),
		entity:      PlacedCard{Card: card},
		effects:     []func(context.Context){e.unindexEffect(card.ID)},
	}, nil
}

func (e *Executor) assignCardToBoard(ctx context.Context, tx Tx, actor Actor, a AssignCardToBoard) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	card, err := e.resolveAnyCard(ctx, tx, actor, a.Card)
	if err != nil {
		return applied{}, err
	}
	return e.assign(ctx, tx, actor, card, board, role, a.Column, a.Position)
}

func (e *Executor) assign(ctx context.Context, tx Tx, actor Actor, card store.Card, board store.Board, role rbac.Role, columnRef Ref, position *int) (applied, error) {
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	visible, err := e.canReadCard(ctx, tx, actor, card)
	if err != nil {
		return applied{}, err
	}
	if !visible {
		return applied{}, Forbiddenf("card %q is not visible to you", card.Title)
	}
	var column *store.Column
	if !columnRef.IsZero() {
		c, err := resolveColumn(ctx, tx, board, columnRef)
		if err != nil {
			return applied{}, err
		}
		column = &c
	}
	placement, err := e.assignments.Assign(ctx, tx, card, board, column, position)
	if err != nil {
		return applied{}, err
	}
	return applied{
		kind:        KindAssignCardToBoard,
		description: fmt.Sprintf("Added card %q to board %q in %s", card.Title, board.Name, placeName(column)),
		entity:      PlacedCard{Card: card, Placement: &placement},
	}, nil
}

func (e *Executor) unassignCardFromBoard(ctx context.Context, tx Tx, actor Actor, a UnassignCardFromBoard) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	card, err := e.resolveBoardCard(ctx, tx, actor, board, role, a.Card)
	if err != nil {
		return applied{}, err
	}
	if !e.canView(card, role, actor) {
		return applied{}, Forbiddenf("card %q is not visible to you", card.Title)
	}
	removed, err := e.assignments.Unassign(ctx, tx, card.ID, board.ID)
	if err != nil {
		return applied{}, err
	}
	description := fmt.Sprintf("Removed card %q from board %q", card.Title, board.Name)
	if !removed {
		description = fmt.Sprintf("Card %q was not on board %q", card.Title, board.Name)
	}
	return applied{description: description, entity: PlacedCard{Card: card}}, nil
}

func (e *Executor) moveCardToBoard(ctx context.Context, tx Tx, actor Actor, a MoveCardToBoard) (applied, error) {
	from, err := e.boardCard(ctx, tx, actor, a.FromBoard, a.Card, rbac.RoleEditor)
	if err != nil {
		return applied{}, err
	}
	target, role, err := resolveBoard(ctx, tx, actor, a.ToBoard)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleEditor, target); err != nil {
		return applied{}, err
	}
	if target.ID == from.board.ID {
		return applied{}, Validationf("card %q is already on board %q", from.card.Title, target.Name)
	}
	var column *store.Column
	if !a.Column.IsZero() {
		c, err := resolveColumn(ctx, tx, target, a.Column)
		if err != nil {
			return applied{}, err
		}
		column = &c
	}
	if _, err := e.assignments.Unassign(ctx, tx, from.card.ID, from.board.ID); err != nil {
		return applied{}, err
	}
	placement, err := e.assignments.Assign(ctx, tx, from.card, target, column, a.Position)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Moved card %q from board %q to board %q", from.card.Title, from.board.Name, target.Name),
		entity:      PlacedCard{Card: from.card, Placement: &placement},
	}, nil
}
