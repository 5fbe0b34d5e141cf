package kanban

import (
	"context"

	"taskboard/api/internal/store"
)

// Tx is the set of statements the executor runs inside one transaction.
// *store.Tx satisfies it.
type Tx interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)

	InsertBoard(ctx context.Context, board store.Board) error
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	UpdateBoard(ctx context.Context, board store.Board) error
	DeleteBoard(ctx context.Context, boardID string) error
	ListBoardsForUser(ctx context.Context, userID string) ([]store.BoardWithRole, error)
	ListPermissions(ctx context.Context, boardID string) ([]store.BoardPermission, error)
	GetRole(ctx context.Context, boardID, userID string) (string, error)
	UpsertPermission(ctx context.Context, boardID, userID, role string) error
	DeletePermission(ctx context.Context, boardID, userID string) (bool, error)

	InsertColumn(ctx context.Context, column store.Column) error
	GetColumn(ctx context.Context, columnID string) (store.Column, error)
	ListColumns(ctx context.Context, boardID string) ([]store.Column, error)
	RenameColumn(ctx context.Context, columnID, name string) error
	DeleteColumn(ctx context.Context, columnID string) error
	ListColumnAssignments(ctx context.Context, columnID string) ([]store.CardBoard, error)

	InsertCard(ctx context.Context, card store.Card) error
	GetCard(ctx context.Context, cardID string) (store.Card, error)
	UpdateCard(ctx context.Context, card store.Card) error
	DeleteCard(ctx context.Context, cardID string) error
	ListBoardCards(ctx context.Context, boardID string, filter store.CardFilter) ([]store.BoardCard, error)
	ListUserCards(ctx context.Context, userID string) ([]store.Card, error)
	InsertComment(ctx context.Context, comment store.Comment) error
	ListComments(ctx context.Context, cardID string) ([]store.Comment, error)

	InsertAssignment(ctx context.Context, placement store.CardBoard) error
	GetAssignment(ctx context.Context, cardID, boardID string) (store.CardBoard, error)
	ListAssignments(ctx context.Context, cardID string) ([]store.CardBoard, error)
	DeleteAssignment(ctx context.Context, cardID, boardID string) (bool, error)

	InsertTag(ctx context.Context, tag store.Tag) error
	GetTag(ctx context.Context, tagID string) (store.Tag, error)
	UpdateTag(ctx context.Context, tag store.Tag) error
	DeleteTag(ctx context.Context, tagID string) error
	ListBoardTags(ctx context.Context, boardID string) ([]store.Tag, error)
	ListUserTags(ctx context.Context, userID string) ([]store.Tag, error)
	AddCardTag(ctx context.Context, cardID, tagID string) error
	RemoveCardTag(ctx context.Context, cardID, tagID string) (bool, error)
	ListCardTags(ctx context.Context, cardIDs []string) (map[string][]store.Tag, error)

	LockScope(ctx context.Context, scope store.Scope) error
	ItemPosition(ctx context.Context, scope store.Scope, itemID string) (int, error)
	ScopeStats(ctx context.Context, scope store.Scope) (count, maxPosition int, err error)
	ShiftPositions(ctx context.Context, scope store.Scope, from, delta int, excludeID string) error
	PlaceItem(ctx context.Context, scope store.Scope, itemID string, position int) error
}

// Repository opens transactions. Returning an error from fn rolls back.
type Repository interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

type postgresRepository struct {
	store *store.PostgresStore
}

func NewPostgresRepository(s *store.PostgresStore) Repository {
	return postgresRepository{store: s}
}

func (r postgresRepository) InTx(ctx context.Context, fn func(Tx) error) error {
	return r.store.InTx(ctx, func(tx *store.Tx) error {
		return fn(tx)
	})
}
