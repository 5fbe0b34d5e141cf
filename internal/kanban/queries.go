package kanban

import (
	"context"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type BoardDetail struct {
	store.Board
	Role        string
	Columns     []store.Column
	Permissions []store.BoardPermission
}

type CardDetail struct {
	store.Card
	Placements []store.CardBoard
	Tags       []store.Tag
}

func checkID(id, what string) error {
	if !util.IsUUID(id) {
		return NotFoundf("%s not found", what)
	}
	return nil
}

// memberBoard loads a board actor holds at least reader on.
func memberBoard(ctx context.Context, tx Tx, actor Actor, boardID string) (store.Board, rbac.Role, error) {
	if err := checkID(boardID, "board"); err != nil {
		return store.Board{}, rbac.RoleNone, err
	}
	board, role, err := resolveBoard(ctx, tx, actor, ByID(boardID))
	if err != nil {
		return store.Board{}, rbac.RoleNone, err
	}
	if err := requireRole(role, rbac.RoleReader, board); err != nil {
		return store.Board{}, rbac.RoleNone, err
	}
	return board, role, nil
}

// readableCard loads a card actor can see somewhere.
func (e *Executor) readableCard(ctx context.Context, tx Tx, actor Actor, cardID string) (store.Card, error) {
	if err := checkID(cardID, "card"); err != nil {
		return store.Card{}, err
	}
	card, err := tx.GetCard(ctx, cardID)
	if err != nil {
		return store.Card{}, classify(err, "card")
	}
	visible, err := e.canReadCard(ctx, tx, actor, card)
	if err != nil {
		return store.Card{}, err
	}
	if !visible {
		return store.Card{}, Forbiddenf("card is not visible to you")
	}
	return card, nil
}

func (e *Executor) Boards(ctx context.Context, actor Actor) ([]store.BoardWithRole, error) {
	var boards []store.BoardWithRole
	err := e.repo.InTx(ctx, func(tx Tx) error {
		var err error
		boards, err = tx.ListBoardsForUser(ctx, actor.UserID)
		return err
	})
	return boards, err
}

func (e *Executor) Board(ctx context.Context, actor Actor, boardID string) (BoardDetail, error) {
	var detail BoardDetail
	err := e.repo.InTx(ctx, func(tx Tx) error {
		board, role, err := memberBoard(ctx, tx, actor, boardID)
		if err != nil {
			return err
		}
		columns, err := tx.ListColumns(ctx, board.ID)
		if err != nil {
			return err
		}
		perms, err := tx.ListPermissions(ctx, board.ID)
		if err != nil {
			return err
		}
		detail = BoardDetail{Board: board, Role: string(role), Columns: columns, Permissions: perms}
		return nil
	})
	return detail, err
}

func (e *Executor) Columns(ctx context.Context, actor Actor, boardID string) ([]store.Column, error) {
	var columns []store.Column
	err := e.repo.InTx(ctx, func(tx Tx) error {
		board, _, err := memberBoard(ctx, tx, actor, boardID)
		if err != nil {
			return err
		}
		columns, err = tx.ListColumns(ctx, board.ID)
		return err
	})
	return columns, err
}

// BoardCards lists the cards on a board that actor can see. Private cards
// a reader cannot see are left out rather than reported.
func (e *Executor) BoardCards(ctx context.Context, actor Actor, boardID string, filter store.CardFilter) ([]CardView, error) {
	var cards []CardView
	err := e.repo.InTx(ctx, func(tx Tx) error {
		board, role, err := memberBoard(ctx, tx, actor, boardID)
		if err != nil {
			return err
		}
		cards, err = e.visibleBoardCards(ctx, tx, actor, board.ID, role, filter)
		return err
	})
	return cards, err
}

// Card returns a card with the placements and tags actor can see.
func (e *Executor) Card(ctx context.Context, actor Actor, cardID string) (CardDetail, error) {
	var detail CardDetail
	err := e.repo.InTx(ctx, func(tx Tx) error {
		card, err := e.readableCard(ctx, tx, actor, cardID)
		if err != nil {
			return err
		}
		placements, err := tx.ListAssignments(ctx, card.ID)
		if err != nil {
			return err
		}
		seen := make([]store.CardBoard, 0, len(placements))
		for _, placement := range placements {
			role, err := tx.GetRole(ctx, placement.BoardID, actor.UserID)
			if err != nil {
				return err
			}
			if role != "" {
				seen = append(seen, placement)
			}
		}
		tags, err := tx.ListCardTags(ctx, []string{card.ID})
		if err != nil {
			return err
		}
		detail = CardDetail{Card: card, Placements: seen, Tags: tagsSeenFrom(tags[card.ID], nil, actor)}
		return nil
	})
	return detail, err
}

// Inbox lists the cards actor created or is assigned to.
func (e *Executor) Inbox(ctx context.Context, actor Actor) ([]store.Card, error) {
	var cards []store.Card
	err := e.repo.InTx(ctx, func(tx Tx) error {
		var err error
		cards, err = tx.ListUserCards(ctx, actor.UserID)
		return err
	})
	return cards, err
}

// Tags lists a board's tags, or actor's personal tags when boardID is empty.
func (e *Executor) Tags(ctx context.Context, actor Actor, boardID string) ([]store.Tag, error) {
	var tags []store.Tag
	err := e.repo.InTx(ctx, func(tx Tx) error {
		if boardID == "" {
			var err error
			tags, err = tx.ListUserTags(ctx, actor.UserID)
			return err
		}
		board, _, err := memberBoard(ctx, tx, actor, boardID)
		if err != nil {
			return err
		}
		tags, err = tx.ListBoardTags(ctx, board.ID)
		return err
	})
	return tags, err
}

func (e *Executor) Comments(ctx context.Context, actor Actor, cardID string) ([]store.Comment, error) {
	var comments []store.Comment
	err := e.repo.InTx(ctx, func(tx Tx) error {
		card, err := e.readableCard(ctx, tx, actor, cardID)
		if err != nil {
			return err
		}
		comments, err = tx.ListComments(ctx, card.ID)
		return err
	})
	return comments, err
}

// AddComment lets anyone who can see a card comment on it.
func (e *Executor) AddComment(ctx context.Context, actor Actor, cardID, body string) (store.Comment, error) {
	body = CleanBody(body)
	if body == "" {
		return store.Comment{}, Validationf("comment body is required")
	}
	if len(body) > maxBodyLength {
		return store.Comment{}, Validationf("comment body is too long")
	}
	comment := store.Comment{ID: util.NewID(), UserID: actor.UserID, UserName: actor.Name, Body: body, CreatedAt: e.now().UTC()}
	err := e.repo.InTx(ctx, func(tx Tx) error {
		card, err := e.readableCard(ctx, tx, actor, cardID)
		if err != nil {
			return err
		}
		comment.CardID = card.ID
		return tx.InsertComment(ctx, comment)
	})
	if err != nil {
		return store.Comment{}, err
	}
	return comment, nil
}
