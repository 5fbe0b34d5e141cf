package kanban

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// memRepo is an in-memory Repository. InTx restores the previous state
// when fn fails, like a rolled back transaction.
type memRepo struct {
	mu sync.Mutex
	memState
	writes int
}

type memState struct {
	users      map[string]store.User
	boards     map[string]store.Board
	perms      map[string]map[string]string
	columns    map[string]store.Column
	cards      map[string]store.Card
	placements map[string]store.CardBoard
	tags       map[string]store.Tag
	cardTags   map[string]map[string]bool
	comments   []store.Comment
}

func newMemRepo() *memRepo {
	return &memRepo{memState: memState{
		users:      map[string]store.User{},
		boards:     map[string]store.Board{},
		perms:      map[string]map[string]string{},
		columns:    map[string]store.Column{},
		cards:      map[string]store.Card{},
		placements: map[string]store.CardBoard{},
		tags:       map[string]store.Tag{},
		cardTags:   map[string]map[string]bool{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		users:      map[string]store.User{},
		boards:     map[string]store.Board{},
		perms:      map[string]map[string]string{},
		columns:    map[string]store.Column{},
		cards:      map[string]store.Card{},
		placements: map[string]store.CardBoard{},
		tags:       map[string]store.Tag{},
		cardTags:   map[string]map[string]bool{},
		comments:   append([]store.Comment(nil), s.comments...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.boards {
		c.boards[k] = v
	}
	for k, v := range s.perms {
		inner := map[string]string{}
		for u, r := range v {
			inner[u] = r
		}
		c.perms[k] = inner
	}
	for k, v := range s.columns {
		c.columns[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.placements {
		c.placements[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.cardTags {
		inner := map[string]bool{}
		for t := range v {
			inner[t] = true
		}
		c.cardTags[k] = inner
	}
	return c
}

func (r *memRepo) InTx(ctx context.Context, fn func(Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := r.memState.clone()
	savedWrites := r.writes
	if err := fn(&memTx{r: r}); err != nil {
		r.memState = saved
		r.writes = savedWrites
		return err
	}
	return nil
}

type memTx struct {
	r *memRepo
}

func placementKey(cardID, boardID string) string {
	return cardID + "|" + boardID
}

func sameColumn(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t *memTx) GetUserByID(_ context.Context, userID string) (store.User, error) {
	user, ok := t.r.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (t *memTx) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range t.r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (t *memTx) InsertBoard(_ context.Context, board store.Board) error {
	t.r.writes++
	board.CreatedAt = time.Now()
	board.UpdatedAt = board.CreatedAt
	t.r.boards[board.ID] = board
	return nil
}

func (t *memTx) GetBoard(_ context.Context, boardID string) (store.Board, error) {
	board, ok := t.r.boards[boardID]
	if !ok {
		return store.Board{}, sql.ErrNoRows
	}
	return board, nil
}

func (t *memTx) UpdateBoard(_ context.Context, board store.Board) error {
	if _, ok := t.r.boards[board.ID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	t.r.boards[board.ID] = board
	return nil
}

func (t *memTx) DeleteBoard(_ context.Context, boardID string) error {
	if _, ok := t.r.boards[boardID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	delete(t.r.boards, boardID)
	delete(t.r.perms, boardID)
	for id, column := range t.r.columns {
		if column.BoardID == boardID {
			delete(t.r.columns, id)
		}
	}
	for key, placement := range t.r.placements {
		if placement.BoardID == boardID {
			delete(t.r.placements, key)
		}
	}
	for id, tag := range t.r.tags {
		if tag.BoardID != nil && *tag.BoardID == boardID {
			delete(t.r.tags, id)
			for _, set := range t.r.cardTags {
				delete(set, id)
			}
		}
	}
	return nil
}

func (t *memTx) ListBoardsForUser(_ context.Context, userID string) ([]store.BoardWithRole, error) {
	var boards []store.BoardWithRole
	for id, members := range t.r.perms {
		if role, ok := members[userID]; ok {
			boards = append(boards, store.BoardWithRole{Board: t.r.boards[id], Role: role})
		}
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].Name < boards[j].Name })
	return boards, nil
}

func (t *memTx) ListPermissions(_ context.Context, boardID string) ([]store.BoardPermission, error) {
	var perms []store.BoardPermission
	for userID, role := range t.r.perms[boardID] {
		user := t.r.users[userID]
		perms = append(perms, store.BoardPermission{BoardID: boardID, UserID: userID, UserName: user.Name, UserEmail: user.Email, Role: role})
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].UserID < perms[j].UserID })
	return perms, nil
}

func (t *memTx) GetRole(_ context.Context, boardID, userID string) (string, error) {
	return t.r.perms[boardID][userID], nil
}

func (t *memTx) UpsertPermission(_ context.Context, boardID, userID, role string) error {
	t.r.writes++
	if t.r.perms[boardID] == nil {
		t.r.perms[boardID] = map[string]string{}
	}
	t.r.perms[boardID][userID] = role
	return nil
}

func (t *memTx) DeletePermission(_ context.Context, boardID, userID string) (bool, error) {
	if _, ok := t.r.perms[boardID][userID]; !ok {
		return false, nil
	}
	t.r.writes++
	delete(t.r.perms[boardID], userID)
	return true, nil
}

func (t *memTx) InsertColumn(_ context.Context, column store.Column) error {
	t.r.writes++
	t.r.columns[column.ID] = column
	return nil
}

func (t *memTx) GetColumn(_ context.Context, columnID string) (store.Column, error) {
	column, ok := t.r.columns[columnID]
	if !ok {
		return store.Column{}, sql.ErrNoRows
	}
	return column, nil
}

func (t *memTx) ListColumns(_ context.Context, boardID string) ([]store.Column, error) {
	var columns []store.Column
	for _, column := range t.r.columns {
		if column.BoardID == boardID {
			columns = append(columns, column)
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].ID < columns[j].ID
	})
	return columns, nil
}

func (t *memTx) RenameColumn(_ context.Context, columnID, name string) error {
	column, ok := t.r.columns[columnID]
	if !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	column.Name = name
	t.r.columns[columnID] = column
	return nil
}

func (t *memTx) DeleteColumn(_ context.Context, columnID string) error {
	if _, ok := t.r.columns[columnID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	delete(t.r.columns, columnID)
	for key, placement := range t.r.placements {
		if placement.ColumnID != nil && *placement.ColumnID == columnID {
			delete(t.r.placements, key)
		}
	}
	return nil
}

func (t *memTx) scopePlacements(boardID string, columnID *string) []store.CardBoard {
	var placements []store.CardBoard
	for _, placement := range t.r.placements {
		if placement.BoardID == boardID && sameColumn(placement.ColumnID, columnID) {
			placements = append(placements, placement)
		}
	}
	sort.Slice(placements, func(i, j int) bool {
		if placements[i].Position != placements[j].Position {
			return placements[i].Position < placements[j].Position
		}
		return placements[i].CardID < placements[j].CardID
	})
	return placements
}

func (t *memTx) ListColumnAssignments(_ context.Context, columnID string) ([]store.CardBoard, error) {
	column, ok := t.r.columns[columnID]
	if !ok {
		return nil, nil
	}
	return t.scopePlacements(column.BoardID, &columnID), nil
}

func (t *memTx) InsertCard(_ context.Context, card store.Card) error {
	t.r.writes++
	card.CreatedAt = time.Now()
	card.UpdatedAt = card.CreatedAt
	t.r.cards[card.ID] = card
	return nil
}

func (t *memTx) GetCard(_ context.Context, cardID string) (store.Card, error) {
	card, ok := t.r.cards[cardID]
	if !ok {
		return store.Card{}, sql.ErrNoRows
	}
	return card, nil
}

func (t *memTx) UpdateCard(_ context.Context, card store.Card) error {
	if _, ok := t.r.cards[card.ID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	card.UpdatedAt = time.Now()
	t.r.cards[card.ID] = card
	return nil
}

func (t *memTx) DeleteCard(_ context.Context, cardID string) error {
	if _, ok := t.r.cards[cardID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	delete(t.r.cards, cardID)
	delete(t.r.cardTags, cardID)
	for key, placement := range t.r.placements {
		if placement.CardID == cardID {
			delete(t.r.placements, key)
		}
	}
	return nil
}

func (t *memTx) ListBoardCards(_ context.Context, boardID string, filter store.CardFilter) ([]store.BoardCard, error) {
	columns, _ := t.ListColumns(context.Background(), boardID)
	var scopes []*string
	for _, column := range columns {
		id := column.ID
		scopes = append(scopes, &id)
	}
	scopes = append(scopes, nil)

	allowed := map[string]bool{}
	for _, id := range filter.CardIDs {
		allowed[id] = true
	}
	var cards []store.BoardCard
	for _, scope := range scopes {
		for _, placement := range t.scopePlacements(boardID, scope) {
			card := t.r.cards[placement.CardID]
			if filter.CardIDs != nil && !allowed[card.ID] {
				continue
			}
			if filter.Status != "" && card.Status != filter.Status {
				continue
			}
			if len(filter.TagIDs) > 0 {
				match := false
				for _, tagID := range filter.TagIDs {
					match = match || t.r.cardTags[card.ID][tagID]
				}
				if !match {
					continue
				}
			}
			cards = append(cards, store.BoardCard{Card: card, Placement: placement})
		}
	}
	return cards, nil
}

func (t *memTx) ListUserCards(_ context.Context, userID string) ([]store.Card, error) {
	var cards []store.Card
	for _, card := range t.r.cards {
		if card.CreatedBy == userID || (card.OwnerID != nil && *card.OwnerID == userID) {
			cards = append(cards, card)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (t *memTx) InsertComment(_ context.Context, comment store.Comment) error {
	t.r.writes++
	t.r.comments = append(t.r.comments, comment)
	return nil
}

func (t *memTx) ListComments(_ context.Context, cardID string) ([]store.Comment, error) {
	var comments []store.Comment
	for _, comment := range t.r.comments {
		if comment.CardID == cardID {
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

func (t *memTx) InsertAssignment(_ context.Context, placement store.CardBoard) error {
	key := placementKey(placement.CardID, placement.BoardID)
	if _, ok := t.r.placements[key]; ok {
		return fmt.Errorf("insert placement: %w", store.ErrDuplicate)
	}
	if placement.ColumnID != nil {
		column, ok := t.r.columns[*placement.ColumnID]
		if !ok || column.BoardID != placement.BoardID {
			return fmt.Errorf("insert placement: foreign key violation")
		}
	}
	t.r.writes++
	t.r.placements[key] = placement
	return nil
}

func (t *memTx) GetAssignment(_ context.Context, cardID, boardID string) (store.CardBoard, error) {
	placement, ok := t.r.placements[placementKey(cardID, boardID)]
	if !ok {
		return store.CardBoard{}, sql.ErrNoRows
	}
	return placement, nil
}

func (t *memTx) ListAssignments(_ context.Context, cardID string) ([]store.CardBoard, error) {
	var placements []store.CardBoard
	for _, placement := range t.r.placements {
		if placement.CardID == cardID {
			placements = append(placements, placement)
		}
	}
	sort.Slice(placements, func(i, j int) bool { return placements[i].BoardID < placements[j].BoardID })
	return placements, nil
}

func (t *memTx) DeleteAssignment(_ context.Context, cardID, boardID string) (bool, error) {
	key := placementKey(cardID, boardID)
	if _, ok := t.r.placements[key]; !ok {
		return false, nil
	}
	t.r.writes++
	delete(t.r.placements, key)
	return true, nil
}

func (t *memTx) InsertTag(_ context.Context, tag store.Tag) error {
	t.r.writes++
	t.r.tags[tag.ID] = tag
	return nil
}

func (t *memTx) GetTag(_ context.Context, tagID string) (store.Tag, error) {
	tag, ok := t.r.tags[tagID]
	if !ok {
		return store.Tag{}, sql.ErrNoRows
	}
	return tag, nil
}

func (t *memTx) UpdateTag(_ context.Context, tag store.Tag) error {
	if _, ok := t.r.tags[tag.ID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	t.r.tags[tag.ID] = tag
	return nil
}

func (t *memTx) DeleteTag(_ context.Context, tagID string) error {
	if _, ok := t.r.tags[tagID]; !ok {
		return sql.ErrNoRows
	}
	t.r.writes++
	delete(t.r.tags, tagID)
	for _, set := range t.r.cardTags {
		delete(set, tagID)
	}
	return nil
}

func sortedTags(tags []store.Tag) []store.Tag {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

func (t *memTx) ListBoardTags(_ context.Context, boardID string) ([]store.Tag, error) {
	var tags []store.Tag
	for _, tag := range t.r.tags {
		if tag.BoardID != nil && *tag.BoardID == boardID {
			tags = append(tags, tag)
		}
	}
	return sortedTags(tags), nil
}

func (t *memTx) ListUserTags(_ context.Context, userID string) ([]store.Tag, error) {
	var tags []store.Tag
	for _, tag := range t.r.tags {
		if tag.OwnerID != nil && *tag.OwnerID == userID {
			tags = append(tags, tag)
		}
	}
	return sortedTags(tags), nil
}

func (t *memTx) AddCardTag(_ context.Context, cardID, tagID string) error {
	t.r.writes++
	if t.r.cardTags[cardID] == nil {
		t.r.cardTags[cardID] = map[string]bool{}
	}
	t.r.cardTags[cardID][tagID] = true
	return nil
}

func (t *memTx) RemoveCardTag(_ context.Context, cardID, tagID string) (bool, error) {
	if !t.r.cardTags[cardID][tagID] {
		return false, nil
	}
	t.r.writes++
	delete(t.r.cardTags[cardID], tagID)
	return true, nil
}

func (t *memTx) ListCardTags(_ context.Context, cardIDs []string) (map[string][]store.Tag, error) {
	out := map[string][]store.Tag{}
	for _, cardID := range cardIDs {
		for tagID := range t.r.cardTags[cardID] {
			out[cardID] = append(out[cardID], t.r.tags[tagID])
		}
		sortedTags(out[cardID])
	}
	return out, nil
}

func (t *memTx) LockScope(_ context.Context, scope store.Scope) error {
	if scope.Kind == store.ScopeCards && scope.ColumnID != nil {
		column, ok := t.r.columns[*scope.ColumnID]
		if !ok || column.BoardID != scope.BoardID {
			return fmt.Errorf("%w: %s", store.ErrScopeGone, scope)
		}
		return nil
	}
	if _, ok := t.r.boards[scope.BoardID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrScopeGone, scope)
	}
	return nil
}

func (t *memTx) ItemPosition(_ context.Context, scope store.Scope, itemID string) (int, error) {
	if scope.Kind == store.ScopeColumns {
		column, ok := t.r.columns[itemID]
		if !ok || column.BoardID != scope.BoardID {
			return 0, sql.ErrNoRows
		}
		return column.Position, nil
	}
	placement, ok := t.r.placements[placementKey(itemID, scope.BoardID)]
	if !ok || !sameColumn(placement.ColumnID, scope.ColumnID) {
		return 0, sql.ErrNoRows
	}
	return placement.Position, nil
}

func (t *memTx) ScopeStats(_ context.Context, scope store.Scope) (int, int, error) {
	count, maxPosition := 0, -1
	visit := func(position int) {
		count++
		if position > maxPosition {
			maxPosition = position
		}
	}
	if scope.Kind == store.ScopeColumns {
		for _, column := range t.r.columns {
			if column.BoardID == scope.BoardID {
				visit(column.Position)
			}
		}
		return count, maxPosition, nil
	}
	for _, placement := range t.scopePlacements(scope.BoardID, scope.ColumnID) {
		visit(placement.Position)
	}
	return count, maxPosition, nil
}

func (t *memTx) ShiftPositions(_ context.Context, scope store.Scope, from, delta int, excludeID string) error {
	if scope.Kind == store.ScopeColumns {
		for id, column := range t.r.columns {
			if column.BoardID == scope.BoardID && column.Position >= from && id != excludeID {
				column.Position += delta
				t.r.columns[id] = column
				t.r.writes++
			}
		}
		return nil
	}
	for key, placement := range t.r.placements {
		if placement.BoardID == scope.BoardID && sameColumn(placement.ColumnID, scope.ColumnID) &&
			placement.Position >= from && placement.CardID != excludeID {
			placement.Position += delta
			t.r.placements[key] = placement
			t.r.writes++
		}
	}
	return nil
}

func (t *memTx) PlaceItem(_ context.Context, scope store.Scope, itemID string, position int) error {
	t.r.writes++
	if scope.Kind == store.ScopeColumns {
		column, ok := t.r.columns[itemID]
		if !ok {
			return sql.ErrNoRows
		}
		column.Position = position
		t.r.columns[itemID] = column
		return nil
	}
	key := placementKey(itemID, scope.BoardID)
	placement, ok := t.r.placements[key]
	if !ok {
		return sql.ErrNoRows
	}
	placement.ColumnID = scope.ColumnID
	placement.Position = position
	t.r.placements[key] = placement
	return nil
}

// fixture helpers write straight into the state, bypassing authorization.

func (r *memRepo) addUser(t *testing.T, name string) Actor {
	t.Helper()
	user := store.User{ID: util.NewID(), Email: name + "@example.com", Name: name}
	r.users[user.ID] = user
	return Actor{UserID: user.ID, Name: name, Email: user.Email}
}

func (r *memRepo) addBoard(t *testing.T, owner Actor, name string) store.Board {
	t.Helper()
	board := store.Board{ID: util.NewID(), Name: name, OwnerID: owner.UserID}
	r.boards[board.ID] = board
	r.perms[board.ID] = map[string]string{owner.UserID: "owner"}
	return board
}

func (r *memRepo) grant(board store.Board, user Actor, role string) {
	r.perms[board.ID][user.UserID] = role
}

func (r *memRepo) addColumn(t *testing.T, board store.Board, name string) store.Column {
	t.Helper()
	count := 0
	for _, column := range r.columns {
		if column.BoardID == board.ID {
			count++
		}
	}
	column := store.Column{ID: util.NewID(), BoardID: board.ID, Name: name, Position: count}
	r.columns[column.ID] = column
	return column
}

func (r *memRepo) addCard(t *testing.T, creator Actor, title, visibility string) store.Card {
	t.Helper()
	card := store.Card{ID: util.NewID(), Title: title, Visibility: visibility, Status: "open", CreatedBy: creator.UserID}
	r.cards[card.ID] = card
	return card
}

// place appends card to the end of the column, or unfiled when column is nil.
func (r *memRepo) place(t *testing.T, card store.Card, board store.Board, column *store.Column) store.CardBoard {
	t.Helper()
	var columnID *string
	if column != nil {
		id := column.ID
		columnID = &id
	}
	tx := &memTx{r: r}
	count, _, _ := tx.ScopeStats(context.Background(), store.CardsScope(board.ID, columnID))
	placement := store.CardBoard{ID: util.NewID(), CardID: card.ID, BoardID: board.ID, ColumnID: columnID, Position: count}
	r.placements[placementKey(card.ID, board.ID)] = placement
	return placement
}

func (r *memRepo) placement(t *testing.T, card store.Card, board store.Board) (store.CardBoard, bool) {
	t.Helper()
	placement, ok := r.placements[placementKey(card.ID, board.ID)]
	return placement, ok
}

// columnOrder returns card titles in a scope, checking positions are dense.
func (r *memRepo) columnOrder(t *testing.T, board store.Board, column *store.Column) []string {
	t.Helper()
	var columnID *string
	if column != nil {
		columnID = &column.ID
	}
	tx := &memTx{r: r}
	var titles []string
	for i, placement := range tx.scopePlacements(board.ID, columnID) {
		if placement.Position != i {
			t.Fatalf("card %q at position %d, want %d", r.cards[placement.CardID].Title, placement.Position, i)
		}
		titles = append(titles, r.cards[placement.CardID].Title)
	}
	return titles
}

func (r *memRepo) columnNames(t *testing.T, board store.Board) []string {
	t.Helper()
	columns, _ := (&memTx{r: r}).ListColumns(context.Background(), board.ID)
	var names []string
	for i, column := range columns {
		if column.Position != i {
			t.Fatalf("column %q at position %d, want %d", column.Name, column.Position, i)
		}
		names = append(names, column.Name)
	}
	return names
}

// racingRepo runs race inside the transaction just before its first scope
// lock, standing in for a writer that committed after the item was read.
type racingRepo struct {
	*memRepo
	race func(ctx context.Context, tx Tx) error
}

func (r *racingRepo) InTx(ctx context.Context, fn func(Tx) error) error {
	return r.memRepo.InTx(ctx, func(tx Tx) error {
		return fn(&racingTx{Tx: tx, repo: r})
	})
}

type racingTx struct {
	Tx
	repo *racingRepo
}

func (t *racingTx) LockScope(ctx context.Context, scope store.Scope) error {
	if race := t.repo.race; race != nil {
		t.repo.race = nil
		if err := race(ctx, t.Tx); err != nil {
			return err
		}
	}
	return t.Tx.LockScope(ctx, scope)
}
