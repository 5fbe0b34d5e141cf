package kanban

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignTwiceConflicts(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	first := exec.Execute(ctx, owner, AssignCardToBoard{Card: ByID(card.ID), Board: ByID(board.ID)})
	require.True(t, first.Success, first.Error)

	second := exec.Execute(ctx, owner, AssignCardToBoard{Card: ByID(card.ID), Board: ByID(board.ID)})
	require.False(t, second.Success)
	require.Equal(t, KindConflict, KindOf(second.Err))
}

func TestUnassignAbsentPairIsNoop(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	exec := NewExecutor(repo, Options{})

	before := repo.writes
	outcome := exec.Execute(context.Background(), owner, UnassignCardFromBoard{Card: ByID(card.ID), Board: ByID(board.ID)})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, before, repo.writes)
}

func TestUnassignClosesGap(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	board := repo.addBoard(t, owner, "Roadmap")
	todo := repo.addColumn(t, board, "Todo")
	a := repo.addCard(t, owner, "a", "restricted")
	b := repo.addCard(t, owner, "b", "restricted")
	c := repo.addCard(t, owner, "c", "restricted")
	repo.place(t, a, board, &todo)
	repo.place(t, b, board, &todo)
	repo.place(t, c, board, &todo)
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, UnassignCardFromBoard{Card: ByID(a.ID), Board: ByID(board.ID)})
	require.True(t, outcome.Success, outcome.Error)
	require.Equal(t, []string{"b", "c"}, repo.columnOrder(t, board, &todo))
	_, stillCard := repo.cards[a.ID]
	require.True(t, stillCard, "unassigning must not delete the card")
}

func TestAssignRejectsColumnFromAnotherBoard(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	opsColumn := repo.addColumn(t, ops, "Inbox")
	card := repo.addCard(t, owner, "Write docs", "restricted")
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, AssignCardToBoard{
		Card: ByID(card.ID), Board: ByID(roadmap.ID), Column: ByID(opsColumn.ID),
	})
	require.False(t, outcome.Success)
	require.Equal(t, KindValidation, KindOf(outcome.Err))
	_, placed := repo.placement(t, card, roadmap)
	require.False(t, placed)
}

func TestCardKeepsIndependentPositionsPerBoard(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	todo := repo.addColumn(t, roadmap, "Todo")
	triage := repo.addColumn(t, ops, "Triage")
	repo.place(t, repo.addCard(t, owner, "first", "restricted"), roadmap, &todo)
	shared := repo.addCard(t, owner, "shared", "restricted")
	exec := NewExecutor(repo, Options{})
	ctx := context.Background()

	outcome := exec.Execute(ctx, owner, AssignCardToBoard{Card: ByID(shared.ID), Board: ByID(roadmap.ID), Column: ByID(todo.ID)})
	require.True(t, outcome.Success, outcome.Error)
	outcome = exec.Execute(ctx, owner, AssignCardToBoard{Card: ByID(shared.ID), Board: ByID(ops.ID), Column: ByID(triage.ID)})
	require.True(t, outcome.Success, outcome.Error)

	onRoadmap, _ := repo.placement(t, shared, roadmap)
	onOps, _ := repo.placement(t, shared, ops)
	require.Equal(t, 1, onRoadmap.Position)
	require.Equal(t, 0, onOps.Position)

	outcome = exec.Execute(ctx, owner, MoveCard{Card: ByID(shared.ID), Board: ByID(roadmap.ID), Position: intPtr(0)})
	require.True(t, outcome.Success, outcome.Error)
	onRoadmap, _ = repo.placement(t, shared, roadmap)
	require.Nil(t, onRoadmap.ColumnID, "a move without a column goes to unfiled")
	require.Equal(t, []string{"first"}, repo.columnOrder(t, roadmap, &todo))
	onOps, _ = repo.placement(t, shared, ops)
	require.Equal(t, 0, onOps.Position)
	require.Equal(t, triage.ID, *onOps.ColumnID)
}

func TestMoveCardToBoardRehomesInOneStep(t *testing.T) {
	repo := newMemRepo()
	owner := repo.addUser(t, "olive")
	roadmap := repo.addBoard(t, owner, "Roadmap")
	ops := repo.addBoard(t, owner, "Ops")
	todo := repo.addColumn(t, roadmap, "Todo")
	triage := repo.addColumn(t, ops, "Triage")
	card := repo.addCard(t, owner, "Migrate DNS", "restricted")
	repo.place(t, card, roadmap, &todo)
	exec := NewExecutor(repo, Options{})

	outcome := exec.Execute(context.Background(), owner, MoveCardToBoard{
		Card: ByName("migrate dns"), FromBoard: ByName("roadmap"), ToBoard: ByName("ops"), Column: ByName("triage"),
	})
	require.True(t, outcome.Success, outcome.Error)
	_, onRoadmap := repo.placement(t, card, roadmap)
	require.False(t, onRoadmap)
	require.Equal(t, []string{"Migrate DNS"}, repo.columnOrder(t, ops, &triage))
}
