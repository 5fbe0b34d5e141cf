package kanban

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

func (e *Executor) createBoard(ctx context.Context, tx Tx, actor Actor, a CreateBoard) (applied, error) {
	name := CleanLine(a.Name)
	if name == "" {
		return applied{}, Validationf("board name is required")
	}
	board := store.Board{
		ID:          util.NewID(),
		Name:        name,
		Description: CleanBody(a.Description),
		OwnerID:     actor.UserID,
	}
	if err := tx.InsertBoard(ctx, board); err != nil {
		return applied{}, err
	}
	if err := tx.UpsertPermission(ctx, board.ID, actor.UserID, string(rbac.RoleOwner)); err != nil {
		return applied{}, err
	}
	for _, columnName := range a.Columns {
		if _, err := e.insertColumn(ctx, tx, board, columnName, nil); err != nil {
			return applied{}, err
		}
	}
	created, err := tx.GetBoard(ctx, board.ID)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Created board %q", created.Name),
		entity:      store.BoardWithRole{Board: created, Role: string(rbac.RoleOwner)},
	}, nil
}

func (e *Executor) updateBoard(ctx context.Context, tx Tx, actor Actor, a UpdateBoard) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleEditor, board); err != nil {
		return applied{}, err
	}
	if a.Name != nil {
		board.Name = CleanLine(*a.Name)
		if board.Name == "" {
			return applied{}, Validationf("board name is required")
		}
	}
	if a.Description != nil {
		board.Description = CleanBody(*a.Description)
	}
	if err := tx.UpdateBoard(ctx, board); err != nil {
		return applied{}, err
	}
	updated, err := tx.GetBoard(ctx, board.ID)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Updated board %q", updated.Name),
		entity:      store.BoardWithRole{Board: updated, Role: string(role)},
	}, nil
}

func (e *Executor) deleteBoard(ctx context.Context, tx Tx, actor Actor, a DeleteBoard) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleOwner, board); err != nil {
		return applied{}, err
	}
	if err := tx.DeleteBoard(ctx, board.ID); err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Deleted board %q", board.Name),
		entity:      store.BoardWithRole{Board: board, Role: string(role)},
	}, nil
}

func findUser(ctx context.Context, tx Tx, userID, email string) (store.User, error) {
	userID = strings.TrimSpace(userID)
	if userID != "" {
		if !util.IsUUID(userID) {
			return store.User{}, NotFoundf("user not found")
		}
		user, err := tx.GetUserByID(ctx, userID)
		return user, classify(err, "user")
	}
	user, err := tx.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	return user, classify(err, "user")
}

func (e *Executor) setPermission(ctx context.Context, tx Tx, actor Actor, a SetPermission) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleOwner, board); err != nil {
		return applied{}, err
	}
	user, err := findUser(ctx, tx, a.UserID, a.Email)
	if err != nil {
		return applied{}, err
	}
	if user.ID == board.OwnerID {
		return applied{}, Validationf("the owner's role cannot be changed")
	}
	granted, _ := rbac.ParseRole(a.Role)
	previous, err := tx.GetRole(ctx, board.ID, user.ID)
	if err != nil {
		return applied{}, err
	}
	if err := tx.UpsertPermission(ctx, board.ID, user.ID, string(granted)); err != nil {
		return applied{}, err
	}

	result := applied{
		description: fmt.Sprintf("Gave %s %s access to board %q", user.Name, granted, board.Name),
		entity:      store.BoardPermission{BoardID: board.ID, UserID: user.ID, UserName: user.Name, UserEmail: user.Email, Role: string(granted)},
	}
	if previous == "" && e.notifier != nil {
		result.effects = append(result.effects, func(ctx context.Context) {
			if err := e.notifier.BoardShared(ctx, board, user, string(granted), actor); err != nil {
				e.logger.Warn("board share notification", zap.String("board_id", board.ID), zap.Error(err))
			}
		})
	}
	return result, nil
}

// removePermission is allowed for the board owner, and for members
// removing themselves.
func (e *Executor) removePermission(ctx context.Context, tx Tx, actor Actor, a RemovePermission) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if a.UserID != actor.UserID {
		if err := requireRole(role, rbac.RoleOwner, board); err != nil {
			return applied{}, err
		}
	}
	if a.UserID == board.OwnerID {
		return applied{}, Validationf("the board owner cannot be removed")
	}
	removed, err := tx.DeletePermission(ctx, board.ID, a.UserID)
	if err != nil {
		return applied{}, err
	}
	if !removed {
		return applied{}, NotFoundf("user is not a member of board %q", board.Name)
	}
	return applied{description: fmt.Sprintf("Removed member from board %q", board.Name)}, nil
}

// CardView is a placed card with its tags, as returned by listings.
type CardView struct {
	store.BoardCard
	Tags []store.Tag
}

func (e *Executor) listCards(ctx context.Context, tx Tx, actor Actor, a ListCards) (applied, error) {
	board, role, err := resolveBoard(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	if err := requireRole(role, rbac.RoleReader, board); err != nil {
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
	cards, err := e.visibleBoardCards(ctx, tx, actor, board.ID, role, store.CardFilter{})
	if err != nil {
		return applied{}, err
	}
	if column != nil {
		filtered := cards[:0]
		for _, card := range cards {
			if card.Placement.ColumnID != nil && *card.Placement.ColumnID == column.ID {
				filtered = append(filtered, card)
			}
		}
		cards = filtered
	}

	titles := make([]string, len(cards))
	for i, card := range cards {
		titles[i] = card.Title
	}
	description := fmt.Sprintf("Found %d card(s) on board %q", len(cards), board.Name)
	if len(titles) > 0 {
		description += ": " + strings.Join(titles, ", ")
	}
	return applied{description: description, entity: cards}, nil
}

func (e *Executor) listTags(ctx context.Context, tx Tx, actor Actor, a ListTags) (applied, error) {
	var tags []store.Tag
	if !a.Board.IsZero() {
		board, role, err := resolveBoard(ctx, tx, actor, a.Board)
		if err != nil {
			return applied{}, err
		}
		if err := requireRole(role, rbac.RoleReader, board); err != nil {
			return applied{}, err
		}
		boardTags, err := tx.ListBoardTags(ctx, board.ID)
		if err != nil {
			return applied{}, err
		}
		tags = append(tags, boardTags...)
	}
	personal, err := tx.ListUserTags(ctx, actor.UserID)
	if err != nil {
		return applied{}, err
	}
	tags = append(tags, personal...)

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	description := fmt.Sprintf("Found %d tag(s)", len(tags))
	if len(names) > 0 {
		description += ": " + strings.Join(names, ", ")
	}
	return applied{description: description, entity: tags}, nil
}

// visibleBoardCards lists a board's cards that actor can see, with tags.
func (e *Executor) visibleBoardCards(ctx context.Context, tx Tx, actor Actor, boardID string, role rbac.Role, filter store.CardFilter) ([]CardView, error) {
	items, err := tx.ListBoardCards(ctx, boardID, filter)
	if err != nil {
		return nil, err
	}
	visible := make([]CardView, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !e.canView(item.Card, role, actor) {
			continue
		}
		visible = append(visible, CardView{BoardCard: item})
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 {
		return visible, nil
	}
	tags, err := tx.ListCardTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range visible {
		visible[i].Tags = tagsSeenFrom(tags[visible[i].ID], &boardID, actor)
	}
	return visible, nil
}

// tagsSeenFrom keeps the tags actor may see on a card: personal tags of
// actor and tags of the given board, or of any board when boardID is nil.
func tagsSeenFrom(tags []store.Tag, boardID *string, actor Actor) []store.Tag {
	kept := make([]store.Tag, 0, len(tags))
	for _, tag := range tags {
		switch {
		case tag.OwnerID != nil && *tag.OwnerID == actor.UserID:
		case tag.BoardID != nil && (boardID == nil || *tag.BoardID == *boardID):
		default:
			continue
		}
		kept = append(kept, tag)
	}
	return kept
}
