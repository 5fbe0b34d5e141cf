package kanban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

// Actor is the authenticated user an action runs as.
type Actor struct {
	UserID string
	Name   string
	Email  string
}

// Outcome reports one executed action. Entity and Err are for in-process
// callers and are not serialized.
type Outcome struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Entity      any    `json:"-"`
	Err         error  `json:"-"`
}

// CardIndexer mirrors card writes into a search index.
type CardIndexer interface {
	IndexCard(ctx context.Context, card store.Card) error
	RemoveCard(ctx context.Context, cardID string) error
}

// ShareNotifier is told after a user gains access to a board.
type ShareNotifier interface {
	BoardShared(ctx context.Context, board store.Board, grantee store.User, role string, sharedBy Actor) error
}

type Options struct {
	PublicVisibility bool
	Logger           *zap.Logger
	Indexer          CardIndexer
	Notifier         ShareNotifier
}

type Executor struct {
	repo             Repository
	publicVisibility bool
	logger           *zap.Logger
	indexer          CardIndexer
	notifier         ShareNotifier
	positions        PositionIndex
	assignments      Assignments
	now              func() time.Time
}

func NewExecutor(repo Repository, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		repo:             repo,
		publicVisibility: opts.PublicVisibility,
		logger:           logger,
		indexer:          opts.Indexer,
		notifier:         opts.Notifier,
		now:              time.Now,
	}
}

// applied is what a handler hands back from inside the transaction.
// effects run after commit.
type applied struct {
	kind        string
	description string
	entity      any
	effects     []func(context.Context)
}

// Execute runs one action in its own transaction.
func (e *Executor) Execute(ctx context.Context, actor Actor, action Action) Outcome {
	outcome := Outcome{Action: action.Kind(), Description: action.Describe()}
	if err := action.Validate(); err != nil {
		return e.failed(outcome, actor, err)
	}

	var result applied
	err := e.repo.InTx(ctx, func(tx Tx) error {
		r, err := e.apply(ctx, tx, actor, action)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return e.failed(outcome, actor, err)
	}

	detached := context.WithoutCancel(ctx)
	for _, effect := range result.effects {
		effect(detached)
	}

	if result.kind != "" {
		outcome.Action = result.kind
	}
	if result.description != "" {
		outcome.Description = result.description
	}
	outcome.Success = true
	outcome.Entity = result.entity
	e.logger.Debug("action applied",
		zap.String("action", outcome.Action),
		zap.String("user_id", actor.UserID),
	)
	return outcome
}

// ExecuteBatch runs actions in order. A failed action does not stop the rest.
func (e *Executor) ExecuteBatch(ctx context.Context, actor Actor, actions []Action) []Outcome {
	outcomes := make([]Outcome, 0, len(actions))
	for _, action := range actions {
		outcomes = append(outcomes, e.Execute(ctx, actor, action))
	}
	return outcomes
}

func (e *Executor) failed(outcome Outcome, actor Actor, err error) Outcome {
	err = classify(err, "entity")
	outcome.Success = false
	outcome.Err = err

	var kerr *Error
	if errors.As(err, &kerr) {
		outcome.Error = kerr.Message
		e.logger.Info("action rejected",
			zap.String("action", outcome.Action),
			zap.String("user_id", actor.UserID),
			zap.String("kind", string(kerr.Kind)),
			zap.String("reason", kerr.Message),
		)
		return outcome
	}
	outcome.Error = "internal error"
	e.logger.Error("action failed",
		zap.String("action", outcome.Action),
		zap.String("user_id", actor.UserID),
		zap.Error(err),
	)
	return outcome
}

func (e *Executor) apply(ctx context.Context, tx Tx, actor Actor, action Action) (applied, error) {
	switch a := action.(type) {
	case CreateCard:
		return e.createCard(ctx, tx, actor, a)
	case UpdateCard:
		return e.updateCard(ctx, tx, actor, a)
	case MoveCard:
		return e.moveCard(ctx, tx, actor, a)
	case DeleteCard:
		return e.deleteCard(ctx, tx, actor, a)
	case AssignCardToBoard:
		return e.assignCardToBoard(ctx, tx, actor, a)
	case UnassignCardFromBoard:
		return e.unassignCardFromBoard(ctx, tx, actor, a)
	case MoveCardToBoard:
		return e.moveCardToBoard(ctx, tx, actor, a)
	case CreateColumn:
		return e.createColumn(ctx, tx, actor, a)
	case UpdateColumn:
		return e.updateColumn(ctx, tx, actor, a)
	case MoveColumn:
		return e.moveColumn(ctx, tx, actor, a)
	case DeleteColumn:
		return e.deleteColumn(ctx, tx, actor, a)
	case CreateTag:
		return e.createTag(ctx, tx, actor, a)
	case UpdateTag:
		return e.updateTag(ctx, tx, actor, a)
	case DeleteTag:
		return e.deleteTag(ctx, tx, actor, a)
	case AddTagToCard:
		return e.addTagToCard(ctx, tx, actor, a)
	case RemoveTagFromCard:
		return e.removeTagFromCard(ctx, tx, actor, a)
	case CreateBoard:
		return e.createBoard(ctx, tx, actor, a)
	case UpdateBoard:
		return e.updateBoard(ctx, tx, actor, a)
	case DeleteBoard:
		return e.deleteBoard(ctx, tx, actor, a)
	case SetPermission:
		return e.setPermission(ctx, tx, actor, a)
	case RemovePermission:
		return e.removePermission(ctx, tx, actor, a)
	case ListCards:
		return e.listCards(ctx, tx, actor, a)
	case ListTags:
		return e.listTags(ctx, tx, actor, a)
	default:
		return applied{}, Validationf("unsupported action %q", action.Kind())
	}
}

func requireRole(role, required rbac.Role, board store.Board) error {
	if err := rbac.Require(role, required); err != nil {
		return &Error{
			Kind:    KindForbidden,
			Message: fmt.Sprintf("%s role required on board %q", required, board.Name),
			Err:     err,
		}
	}
	return nil
}

func isCreatorOrAssignee(card store.Card, actor Actor) bool {
	if card.CreatedBy == actor.UserID {
		return true
	}
	return card.OwnerID != nil && *card.OwnerID == actor.UserID
}

func (e *Executor) canView(card store.Card, role rbac.Role, actor Actor) bool {
	if card.CreatedBy == actor.UserID {
		return true
	}
	isAssignee := card.OwnerID != nil && *card.OwnerID == actor.UserID
	return rbac.CanView(rbac.Visibility(card.Visibility), role, isAssignee, e.publicVisibility)
}

// canReadCard reports whether actor sees card through any of its boards.
func (e *Executor) canReadCard(ctx context.Context, tx Tx, actor Actor, card store.Card) (bool, error) {
	if isCreatorOrAssignee(card, actor) {
		return true, nil
	}
	placements, err := tx.ListAssignments(ctx, card.ID)
	if err != nil {
		return false, err
	}
	for _, placement := range placements {
		role, err := tx.GetRole(ctx, placement.BoardID, actor.UserID)
		if err != nil {
			return false, err
		}
		if e.canView(card, rbac.Role(role), actor) {
			return true, nil
		}
	}
	return false, nil
}

// cardOnBoard is a card resolved in the context of one of its boards.
type cardOnBoard struct {
	board     store.Board
	role      rbac.Role
	card      store.Card
	placement store.CardBoard
}

// boardCard resolves a card through a board reference. The card must be on
// the board, visible to actor, and actor must hold required there.
func (e *Executor) boardCard(ctx context.Context, tx Tx, actor Actor, boardRef, cardRef Ref, required rbac.Role) (cardOnBoard, error) {
	board, role, err := resolveBoard(ctx, tx, actor, boardRef)
	if err != nil {
		return cardOnBoard{}, err
	}
	if err := requireRole(role, rbac.RoleReader, board); err != nil {
		return cardOnBoard{}, err
	}
	card, err := e.resolveBoardCard(ctx, tx, actor, board, role, cardRef)
	if err != nil {
		return cardOnBoard{}, err
	}
	placement, err := tx.GetAssignment(ctx, card.ID, board.ID)
	if err != nil {
		return cardOnBoard{}, classify(err, fmt.Sprintf("card %q on board %q", card.Title, board.Name))
	}
	if !e.canView(card, role, actor) {
		return cardOnBoard{}, Forbiddenf("card %q is not visible to you", card.Title)
	}
	if err := requireRole(role, required, board); err != nil {
		return cardOnBoard{}, err
	}
	return cardOnBoard{board: board, role: role, card: card, placement: placement}, nil
}

// mutableCard resolves a card for a write. With a board reference the
// board rules apply; without one only the creator or assignee may write.
func (e *Executor) mutableCard(ctx context.Context, tx Tx, actor Actor, boardRef, cardRef Ref) (store.Card, error) {
	if !boardRef.IsZero() {
		found, err := e.boardCard(ctx, tx, actor, boardRef, cardRef, rbac.RoleEditor)
		if err != nil {
			return store.Card{}, err
		}
		return found.card, nil
	}
	card, err := e.resolveAnyCard(ctx, tx, actor, cardRef)
	if err != nil {
		return store.Card{}, err
	}
	if !isCreatorOrAssignee(card, actor) {
		return store.Card{}, Forbiddenf("only the creator or assignee can change card %q outside a board", card.Title)
	}
	return card, nil
}

func (e *Executor) indexEffect(card store.Card) func(context.Context) {
	return func(ctx context.Context) {
		if e.indexer == nil {
			return
		}
		if err := e.indexer.IndexCard(ctx, card); err != nil {
			e.logger.Warn("index card", zap.String("card_id", card.ID), zap.Error(err))
		}
	}
}

func (e *Executor) unindexEffect(cardID string) func(context.Context) {
	return func(ctx context.Context) {
		if e.indexer == nil {
			return
		}
		if err := e.indexer.RemoveCard(ctx, cardID); err != nil {
			e.logger.Warn("remove card from index", zap.String("card_id", cardID), zap.Error(err))
		}
	}
}
