package kanban

import (
	"context"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type CardSnapshot struct {
	Card store.Card
	Tags []string
}

type ColumnSnapshot struct {
	Column store.Column
	Cards  []CardSnapshot
}

// BoardSnapshot is a read-only view of one board as actor sees it.
type BoardSnapshot struct {
	Board   store.Board
	Role    rbac.Role
	Columns []ColumnSnapshot
	Unfiled []CardSnapshot
	Tags    []store.Tag
}

type BoardSummary struct {
	Board     store.Board
	Role      rbac.Role
	Columns   []string
	CardCount int
}

// GlobalSnapshot summarizes every board actor belongs to.
type GlobalSnapshot struct {
	Boards []BoardSummary
	Inbox  []store.Card
	Tags   []store.Tag
}

func (e *Executor) SnapshotBoard(ctx context.Context, actor Actor, boardID string) (BoardSnapshot, error) {
	var snap BoardSnapshot
	err := e.repo.InTx(ctx, func(tx Tx) error {
		board, role, err := memberBoard(ctx, tx, actor, boardID)
		if err != nil {
			return err
		}
		columns, err := tx.ListColumns(ctx, board.ID)
		if err != nil {
			return err
		}
		cards, err := e.visibleBoardCards(ctx, tx, actor, board.ID, role, store.CardFilter{})
		if err != nil {
			return err
		}
		boardTags, err := tx.ListBoardTags(ctx, board.ID)
		if err != nil {
			return err
		}
		personal, err := tx.ListUserTags(ctx, actor.UserID)
		if err != nil {
			return err
		}

		snap = BoardSnapshot{Board: board, Role: role, Tags: append(boardTags, personal...)}
		byColumn := make(map[string]int, len(columns))
		for i, column := range columns {
			byColumn[column.ID] = i
			snap.Columns = append(snap.Columns, ColumnSnapshot{Column: column})
		}
		for _, card := range cards {
			item := CardSnapshot{Card: card.Card}
			for _, tag := range card.Tags {
				item.Tags = append(item.Tags, tag.Name)
			}
			if card.Placement.ColumnID == nil {
				snap.Unfiled = append(snap.Unfiled, item)
				continue
			}
			if i, ok := byColumn[*card.Placement.ColumnID]; ok {
				snap.Columns[i].Cards = append(snap.Columns[i].Cards, item)
			}
		}
		return nil
	})
	return snap, err
}

func (e *Executor) SnapshotGlobal(ctx context.Context, actor Actor) (GlobalSnapshot, error) {
	var snap GlobalSnapshot
	err := e.repo.InTx(ctx, func(tx Tx) error {
		boards, err := tx.ListBoardsForUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		for _, board := range boards {
			columns, err := tx.ListColumns(ctx, board.ID)
			if err != nil {
				return err
			}
			cards, err := tx.ListBoardCards(ctx, board.ID, store.CardFilter{})
			if err != nil {
				return err
			}
			summary := BoardSummary{Board: board.Board, Role: rbac.Role(board.Role)}
			for _, column := range columns {
				summary.Columns = append(summary.Columns, column.Name)
			}
			for _, card := range cards {
				if e.canView(card.Card, summary.Role, actor) {
					summary.CardCount++
				}
			}
			snap.Boards = append(snap.Boards, summary)
		}
		if snap.Inbox, err = tx.ListUserCards(ctx, actor.UserID); err != nil {
			return err
		}
		snap.Tags, err = tx.ListUserTags(ctx, actor.UserID)
		return err
	})
	return snap, err
}
