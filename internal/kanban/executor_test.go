package kanban

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

func TestBatchContinuesAfterFailure(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	repo.addColumn(t, board, "Todo")
	exec := NewExecutor(repo, Options{})

	outcomes := exec.ExecuteBatch(context.Background(), owner, []Action{
		CreateCard{Board: ByID(board.ID), Column: ByName("Todo"), Title: "one"},
		MoveCard{Card: ByName("does not exist"), Board: ByID(board.ID), Column: ByName("Todo")},
		CreateCard{Board: ByID(board.ID), Column: ByName("Todo"), Title: "two"},
	})
	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Success, outcomes[0].Error)
	require.False(t, outcomes[1].Success)
	require.NotEmpty(t, outcomes[1].Error)
	require.True(t, outcomes[2].Success, outcomes[2].Error)
	require.Len(t, repo.cards, 2)
}

func TestBatchContinuesAfterForbiddenAction(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	eve := repo.addUser(t, "eve")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	repo.addColumn(t, roadmap, "Todo")
	repo.grant(roadmap, eve, "reader")
	mine := repo.addBoard(t, eve, "Errands")
	exec := NewExecutor(repo, Options{})

	outcomes := exec.ExecuteBatch(context.Background(), eve, []Action{
		CreateColumn{Board: ByID(mine.ID), Name: "Todo"},
		CreateCard{Board: ByID(mine.ID), Column: ByName("Todo"), Title: "groceries"},
		CreateColumn{Board: ByID(roadmap.ID), Name: "Sneaky"},
		CreateCard{Board: ByID(mine.ID), Column: ByName("Todo"), Title: "laundry"},
		CreateTag{Board: ByID(mine.ID), Name: "home"},
	})
	require.Len(t, outcomes, 5)
	for i, outcome := range outcomes {
		if i == 2 {
			require.False(t, outcome.Success)
			require.Equal(t, KindForbidden, KindOf(outcome.Err))
			continue
		}
		require.True(t, outcome.Success, outcome.Error)
	}
	require.Equal(t, []string{"Todo"}, repo.columnNames(t, roadmap))
	require.Equal(t, []string{"Todo"}, repo.columnNames(t, mine))
	todo, err := (&memTx{r: repo}).ListColumns(context.Background(), mine.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"groceries", "laundry"}, repo.columnOrder(t, mine, &todo[0]))
}

func TestFailedActionRollsBack(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	card := repo.addCard(t, owner, "Shared", "restricted")
	repo.place(t, card, roadmap, nil)
	repo.place(t, card, ops, nil)
	exec := NewExecutor(repo, Options{})

	// the unassign from Roadmap runs before the assign to Ops conflicts
	outcome := exec.Execute(context.Background(), owner, MoveCardToBoard{
		Card: ByID(card.ID), FromBoard: ByID(roadmap.ID), ToBoard: ByID(ops.ID),
	})
	require.False(t, outcome.Success)
	require.Equal(t, KindConflict, KindOf(outcome.Err))
	_, stillThere := repo.placement(t, card, roadmap)
	require.True(t, stillThere)
}

func TestValidationFailsBeforeTouchingState(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	exec := NewExecutor(repo, Options{})

	cases := []Action{
		CreateCard{Title: "   "},
		CreateCard{Title: "x", Visibility: "secret"},
		CreateTag{Name: "red", Color: "red"},
		SetPermission{Board: ByName("b"), Email: "a@example.com", Role: "owner"},
		MoveColumn{Position: 2},
	}
	for _, action := range cases {
		outcome := exec.Execute(context.Background(), owner, action)
		require.False(t, outcome.Success, action.Describe())
		require.Equal(t, KindValidation, KindOf(outcome.Err), action.Describe())
	}
	require.Zero(t, repo.writes)
}

func TestReaderDoesNotSeePrivateCards(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	reader := repo.addUser(t, "rita")
	board := repo.addBoard(t, owner, "Roadmap")
	repo.grant(board, reader, "reader")
	todo := repo.addColumn(t, board, "Todo")
	secret := repo.addCard(t, owner, "Salary review", "private")
	open := repo.addCard(t, owner, "Public roadmap", "restricted")
	repo.place(t, secret, board, &todo)
	repo.place(t, open, board, &todo)
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	cards, err := exec.BoardCards(ctx, reader, board.ID, store.CardFilter{})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.Equal(t, "Public roadmap", cards[0].Title)

	_, err = exec.Card(ctx, reader, secret.ID)
	require.Equal(t, KindForbidden, KindOf(err))

	outcome := exec.Execute(ctx, reader, ListCards{Board: ByID(board.ID)})
	require.True(t, outcome.Success, outcome.Error)
	require.Len(t, outcome.Entity.([]CardView), 1)

	ownerCards, err := exec.BoardCards(ctx, owner, board.ID, store.CardFilter{})
	require.NoError(t, err)
	require.Len(t, ownerCards, 2)
}

func TestAssigneeSeesPrivateCard(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	reader := repo.addUser(t, "rita")
	board := repo.addBoard(t, owner, "Roadmap")
	repo.grant(board, reader, "reader")
	secret := repo.addCard(t, owner, "Salary review", "private")
	secret.OwnerID = &reader.UserID
	repo.cards[secret.ID] = secret
	repo.place(t, secret, board, nil)
	exec := NewExecutor(repo, Options{})

	cards, err := exec.BoardCards(context.Background(), reader, board.ID, store.CardFilter{})
	require.NoError(t, err)
	require.Len(t, cards, 1)
}

func TestPublicVisibilityFlag(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	stranger := repo.addUser(t, "sam")
	board := repo.addBoard(t, owner, "Roadmap")
	card := repo.addCard(t, owner, "Launch", "public")
	repo.place(t, card, board, nil)
	ctx := context.Background()

	_, err := NewExecutor(repo, Options{}).Card(ctx, stranger, card.ID)
	require.Equal(t, KindForbidden, KindOf(err))

	detail, err := NewExecutor(repo, Options{PublicVisibility: true}).Card(ctx, stranger, card.ID)
	require.NoError(t, err)
	require.Equal(t, "Launch", detail.Title)
	require.Empty(t, detail.Placements)
}

func TestReaderCannotMutate(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	reader := repo.addUser(t, "rita")
	board := repo.addBoard(t, owner, "Roadmap")
	repo.grant(board, reader, "reader")
	todo := repo.addColumn(t, board, "Todo")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	repo.place(t, card, board, &todo)
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	for _, action := range []Action{
		CreateCard{Board: ByID(board.ID), Title: "nope"},
		MoveCard{Card: ByID(card.ID), Board: ByID(board.ID), Column: ByID(todo.ID), Position: intPtr(0)},
		CreateColumn{Board: ByID(board.ID), Name: "Doing"},
		DeleteBoard{Board: ByID(board.ID)},
	} {
		outcome := exec.Execute(ctx, reader, action)
		require.False(t, outcome.Success, action.Describe())
		require.Equal(t, KindForbidden, KindOf(outcome.Err), action.Describe())
	}
}

func TestOnlyOwnerDeletesBoard(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	editor := repo.addUser(t, "eve")
	board := repo.addBoard(t, owner, "Roadmap")
	repo.grant(board, editor, "editor")
	card := repo.addCard(t, editor, "Keep me", "restricted")
	repo.place(t, card, board, nil)
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	outcome := exec.Execute(ctx, editor, DeleteBoard{Board: ByID(board.ID)})
	require.Equal(t, KindForbidden, KindOf(outcome.Err))

	outcome = exec.Execute(ctx, owner, DeleteBoard{Board: ByName("roadmap")})
	require.True(t, outcome.Success, outcome.Error)
	require.Empty(t, repo.boards)
	require.Empty(t, repo.placements)
	require.Contains(t, repo.cards, card.ID)
}

func TestDeleteColumnMovesCardsToUnfiledInOrder(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	todo := repo.addColumn(t, board, "Todo")
	repo.addColumn(t, board, "Done")
	repo.place(t, repo.addCard(t, owner, "loose", "restricted"), board, nil)
	for _, title := range []string{"a", "b", "c"} {
		repo.place(t, repo.addCard(t, owner, title, "restricted"), board, &todo)
	}
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, DeleteColumn{Board: ByID(board.ID), Column: ByName("todo")})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, []string{"Done"}, repo.columnNames(t, board))
	require.Equal(t, []string{"loose", "a", "b", "c"}, repo.columnOrder(t, board, nil))
	require.Len(t, repo.cards, 4)
}

func TestStandaloneCardBelongsToCreator(t *testing.T) {
	repo := newMemRepo()
	creator := repo.addUser(t, "olive")
	other := repo.addUser(t, "sam")
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	created := exec.Execute(ctx, creator, CreateCard{Title: "Buy milk"})
	require.True(t, created.Success, created.Error)
	card := created.Entity.(PlacedCard).Card
	require.Nil(t, created.Entity.(PlacedCard).Placement)

	title := "Buy oat milk"
	outcome := exec.Execute(ctx, other, UpdateCard{Card: ByID(card.ID), Title: &title})
	require.Equal(t, KindForbidden, KindOf(outcome.Err))

	outcome = exec.Execute(ctx, creator, UpdateCard{Card: ByID(card.ID), Title: &title})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, title, repo.cards[card.ID].Title)
}

func TestDeleteCardNeedsEditorEverywhere(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	editor := repo.addUser(t, "eve")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	repo.grant(roadmap, editor, "editor")
	repo.grant(ops, editor, "reader")
	card := repo.addCard(t, owner, "Shared", "restricted")
	repo.place(t, card, roadmap, nil)
	repo.place(t, card, ops, nil)
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	outcome := exec.Execute(ctx, editor, DeleteCard{Card: ByID(card.ID), Board: ByID(roadmap.ID)})
	require.Equal(t, KindForbidden, KindOf(outcome.Err))
	require.Contains(t, repo.cards, card.ID)

	repo.grant(ops, editor, "editor")
	outcome = exec.Execute(ctx, editor, DeleteCard{Card: ByID(card.ID), Board: ByID(roadmap.ID)})
	require.True(t, outcome.Success, outcome.Error)
	require.Empty(t, repo.cards)
	require.Empty(t, repo.placements)
}

func TestMoveUnassignedCardAssignsIt(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	doing := repo.addColumn(t, board, "Doing")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, MoveCard{
		Card: ByName("write docs"), Board: ByID(board.ID), Column: ByName("Doing"), AssignIfMissing: true,
	})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, KindAssignCardToBoard, outcome.Action)
	placement, ok := repo.placement(t, card, board)
	require.True(t, ok)
	require.Equal(t, doing.ID, *placement.ColumnID)
}

func TestMoveUnassignedCardWithoutFallbackIsNotFound(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, MoveCard{Card: ByID(card.ID), Board: ByID(board.ID)})
	require.Equal(t, KindNotFound, KindOf(outcome.Err))
}

type recordedShare struct {
	board string
	user  string
	role  string
}

type fakeNotifier struct {
	shares []recordedShare
	err    error
}

func (f *fakeNotifier) BoardShared(_ context.Context, board store.Board, grantee store.User, role string, _ Actor) error {
	f.shares = append(f.shares, recordedShare{board: board.Name, user: grantee.Email, role: role})
	return f.err
}

func TestSetPermissionNotifiesNewMembersOnly(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	guest := repo.addUser(t, "gus")
	board := repo.addBoard(t, owner, "Roadmap")
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	exec := NewExecutor(repo, Options{Notifier: notifier})
	ctx := context.Background()

	outcome := exec.Execute(ctx, owner, SetPermission{Board: ByID(board.ID), Email: guest.Email, Role: "reader"})
	require.True(t, outcome.Success, outcome.Error)
	outcome = exec.Execute(ctx, owner, SetPermission{Board: ByID(board.ID), UserID: guest.UserID, Role: "editor"})
	require.True(t, outcome.Success, outcome.Error)

	require.Equal(t, []recordedShare{{board: "Roadmap", user: guest.Email, role: "reader"}}, notifier.shares)
	require.Equal(t, "editor", repo.perms[board.ID][guest.UserID])

	outcome = exec.Execute(ctx, owner, SetPermission{Board: ByID(board.ID), UserID: owner.UserID, Role: "reader"})
	require.Equal(t, KindValidation, KindOf(outcome.Err))
	outcome = exec.Execute(ctx, owner, RemovePermission{Board: ByID(board.ID), UserID: owner.UserID})
	require.Equal(t, KindValidation, KindOf(outcome.Err))
	outcome = exec.Execute(ctx, guest, RemovePermission{Board: ByID(board.ID), UserID: guest.UserID})
	require.True(t, outcome.Success, outcome.Error)
}

func TestBoardTagOnlyOnCardsOfThatBoard(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	repo.place(t, card, roadmap, nil)
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	created := exec.Execute(ctx, owner, CreateTag{Board: ByID(ops.ID), Name: "pager"})
	require.True(t, created.Success, created.Error)
	require.Equal(t, DefaultTagColor, created.Entity.(store.Tag).Color)

	outcome := exec.Execute(ctx, owner, AddTagToCard{Card: ByID(card.ID), Tag: ByID(created.Entity.(store.Tag).ID)})
	require.Equal(t, KindValidation, KindOf(outcome.Err))

	personal := exec.Execute(ctx, owner, CreateTag{Name: "mine", Color: "#AABBCC"})
	require.True(t, personal.Success, personal.Error)
	outcome = exec.Execute(ctx, owner, AddTagToCard{Card: ByID(card.ID), Board: ByID(roadmap.ID), Tag: ByName("mine")})
	require.True(t, outcome.Success, outcome.Error)
	require.True(t, repo.cardTags[card.ID][personal.Entity.(store.Tag).ID])
	require.Equal(t, "#aabbcc", personal.Entity.(store.Tag).Color)
}

func TestCreateBoardMakesCallerOwner(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, CreateBoard{Name: "<b>Launch</b>", Columns: []string{"Todo", "Doing", "Done"}})
	require.True(t, outcome.Success, outcome.Error)
	board := outcome.Entity.(store.BoardWithRole)
	require.Equal(t, "Launch", board.Name)
	require.Equal(t, "owner", repo.perms[board.ID][owner.UserID])
	require.Equal(t, []string{"Todo", "Doing", "Done"}, repo.columnNames(t, board.Board))
}

type fakeIndexer struct {
	indexed []string
	removed []string
}

func (f *fakeIndexer) IndexCard(_ context.Context, card store.Card) error {
	f.indexed = append(f.indexed, card.Title)
	return nil
}

func (f *fakeIndexer) RemoveCard(_ context.Context, cardID string) error {
	f.removed = append(f.removed, cardID)
	return nil
}

func TestIndexerRunsOnlyAfterCommit(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	indexer := &fakeIndexer{}
	exec := NewExecutor(repo, Options{Indexer: indexer})
	ctx := context.Background()

	outcome := exec.Execute(ctx, owner, CreateCard{Board: ByID(board.ID), Column: ByID(util.NewID()), Title: "lost"})
	require.False(t, outcome.Success)
	require.Empty(t, indexer.indexed)

	outcome = exec.Execute(ctx, owner, CreateCard{Board: ByID(board.ID), Title: "kept"})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, []string{"kept"}, indexer.indexed)

	outcome = exec.Execute(ctx, owner, DeleteCard{Card: ByName("kept")})
	require.True(t, outcome.Success, outcome.Error)
	require.Len(t, indexer.removed, 1)
}

func TestCommentsUseExecutorClock(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	card := repo.addCard(t, owner, "Ship", "public")
	repo.place(t, card, board, nil)
	exec := NewExecutor(repo, Options{})
	fixed := time.Date(2026, 3, 4, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	exec.now = func() time.Time { return fixed }

	comment, err := exec.AddComment(context.Background(), owner, card.ID, "looks good")
	require.NoError(t, err)
	require.Equal(t, fixed.UTC(), comment.CreatedAt)

	comments, err := exec.Comments(context.Background(), owner, card.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, fixed.UTC(), comments[0].CreatedAt)
}
