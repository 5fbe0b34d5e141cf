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

// tagAccess checks that actor may use (reader) or change (editor) tag.
// Personal tags belong to their owner alone.
func tagAccess(ctx context.Context, tx Tx, actor Actor, tag store.Tag, required rbac.Role) error {
	if tag.BoardID == nil {
		if tag.OwnerID != nil && *tag.OwnerID == actor.UserID {
			return nil
		}
		return NotFoundf("tag %q not found", tag.Name)
	}
	board, err := tx.GetBoard(ctx, *tag.BoardID)
	if err != nil {
		return classify(err, "board")
	}
	role, err := tx.GetRole(ctx, board.ID, actor.UserID)
	if err != nil {
		return err
	}
	return requireRole(rbac.Role(role), required, board)
}

// tagContext resolves the optional board a tag action names. Tags are looked
// up by name among that board's tags and the actor's personal tags.
func tagContext(ctx context.Context, tx Tx, actor Actor, boardRef Ref) (*store.Board, error) {
	if boardRef.IsZero() {
		return nil, nil
	}
	board, role, err := resolveBoard(ctx, tx, actor, boardRef)
	if err != nil {
		return nil, err
	}
	if err := requireRole(role, rbac.RoleReader, board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (e *Executor) createTag(ctx context.Context, tx Tx, actor Actor, a CreateTag) (applied, error) {
	name := CleanLine(a.Name)
	if name == "" {
		return applied{}, Validationf("tag name is required")
	}
	color := strings.ToLower(a.Color)
	if color == "" {
		color = DefaultTagColor
	}
	tag := store.Tag{ID: util.NewID(), Name: name, Color: color}

	where := "personal"
	if !a.Board.IsZero() {
		board, role, err := resolveBoard(ctx, tx, actor, a.Board)
		if err != nil {
			return applied{}, err
		}
		if err := requireRole(role, rbac.RoleEditor, board); err != nil {
			return applied{}, err
		}
		tag.BoardID = &board.ID
		where = fmt.Sprintf("board %q", board.Name)
	} else {
		owner := actor.UserID
		tag.OwnerID = &owner
	}

	if err := tx.InsertTag(ctx, tag); err != nil {
		return applied{}, err
	}
	created, err := tx.GetTag(ctx, tag.ID)
	if err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Created tag %q (%s)", created.Name, where),
		entity:      created,
	}, nil
}

func (e *Executor) updateTag(ctx context.Context, tx Tx, actor Actor, a UpdateTag) (applied, error) {
	board, err := tagContext(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	tag, err := resolveTag(ctx, tx, actor, board, a.Tag)
	if err != nil {
		return applied{}, err
	}
	if err := tagAccess(ctx, tx, actor, tag, rbac.RoleEditor); err != nil {
		return applied{}, err
	}
	if a.Name != nil {
		tag.Name = CleanLine(*a.Name)
		if tag.Name == "" {
			return applied{}, Validationf("tag name is required")
		}
	}
	if a.Color != nil && *a.Color != "" {
		tag.Color = strings.ToLower(*a.Color)
	}
	if err := tx.UpdateTag(ctx, tag); err != nil {
		return applied{}, err
	}
	return applied{description: fmt.Sprintf("Updated tag %q", tag.Name), entity: tag}, nil
}

func (e *Executor) deleteTag(ctx context.Context, tx Tx, actor Actor, a DeleteTag) (applied, error) {
	board, err := tagContext(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	tag, err := resolveTag(ctx, tx, actor, board, a.Tag)
	if err != nil {
		return applied{}, err
	}
	if err := tagAccess(ctx, tx, actor, tag, rbac.RoleEditor); err != nil {
		return applied{}, err
	}
	if err := tx.DeleteTag(ctx, tag.ID); err != nil {
		return applied{}, err
	}
	return applied{description: fmt.Sprintf("Deleted tag %q", tag.Name), entity: tag}, nil
}

// cardTag resolves the card and tag of a tagging action. A board tag can
// only go on cards placed on that board.
func (e *Executor) cardTag(ctx context.Context, tx Tx, actor Actor, boardRef, cardRef, tagRef Ref) (store.Card, store.Tag, error) {
	card, err := e.mutableCard(ctx, tx, actor, boardRef, cardRef)
	if err != nil {
		return store.Card{}, store.Tag{}, err
	}
	board, err := tagContext(ctx, tx, actor, boardRef)
	if err != nil {
		return store.Card{}, store.Tag{}, err
	}
	tag, err := resolveTag(ctx, tx, actor, board, tagRef)
	if err != nil {
		return store.Card{}, store.Tag{}, err
	}
	if err := tagAccess(ctx, tx, actor, tag, rbac.RoleReader); err != nil {
		return store.Card{}, store.Tag{}, err
	}
	if tag.BoardID != nil {
		if _, err := tx.GetAssignment(ctx, card.ID, *tag.BoardID); errors.Is(err, sql.ErrNoRows) {
			return store.Card{}, store.Tag{}, Validationf("tag %q belongs to a board card %q is not on", tag.Name, card.Title)
		} else if err != nil {
			return store.Card{}, store.Tag{}, err
		}
	}
	return card, tag, nil
}

func (e *Executor) addTagToCard(ctx context.Context, tx Tx, actor Actor, a AddTagToCard) (applied, error) {
	card, tag, err := e.cardTag(ctx, tx, actor, a.Board, a.Card, a.Tag)
	if err != nil {
		return applied{}, err
	}
	if err := tx.AddCardTag(ctx, card.ID, tag.ID); err != nil {
		return applied{}, err
	}
	return applied{
		description: fmt.Sprintf("Tagged card %q with %q", card.Title, tag.Name),
		entity:      tag,
	}, nil
}

func (e *Executor) removeTagFromCard(ctx context.Context, tx Tx, actor Actor, a RemoveTagFromCard) (applied, error) {
	card, err := e.mutableCard(ctx, tx, actor, a.Board, a.Card)
	if err != nil {
		return applied{}, err
	}
	board, err := tagContext(ctx, tx, actor, a.Board)
	if err != nil {
		return applied{}, err
	}
	tag, err := resolveTag(ctx, tx, actor, board, a.Tag)
	if err != nil {
		return applied{}, err
	}
	removed, err := tx.RemoveCardTag(ctx, card.ID, tag.ID)
	if err != nil {
		return applied{}, err
	}
	description := fmt.Sprintf("Removed tag %q from card %q", tag.Name, card.Title)
	if !removed {
		description = fmt.Sprintf("Card %q did not have tag %q", card.Title, tag.Name)
	}
	return applied{description: description, entity: tag}, nil
}
