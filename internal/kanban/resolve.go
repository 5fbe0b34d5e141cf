package kanban

import (
	"context"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// Ref points at an entity either by id or, for chat actions, by name.
type Ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func ByID(id string) Ref {
	return Ref{ID: strings.TrimSpace(id)}
}

func ByName(name string) Ref {
	return Ref{Name: strings.TrimSpace(name)}
}

func (r Ref) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

func (r Ref) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// lookup splits a ref into a usable id or a name. Ids that are not UUIDs are
// treated as names since models often put titles into id fields.
func (r Ref) lookup() (id, name string) {
	if r.ID != "" && util.IsUUID(r.ID) {
		return r.ID, ""
	}
	if r.Name != "" {
		return "", r.Name
	}
	return "", r.ID
}

// foldName lowercases, strips accents and collapses whitespace.
func foldName(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// matchName picks the single candidate named query. Exact folded matches win;
// otherwise the best fuzzy match is taken if it is unambiguous.
func matchName(kind, query string, names []string) (int, error) {
	q := foldName(query)
	if q == "" {
		return -1, Validationf("%s name is required", kind)
	}

	folded := make([]string, len(names))
	var exact []int
	for i, name := range names {
		folded[i] = foldName(name)
		if folded[i] == q {
			exact = append(exact, i)
		}
	}
	switch len(exact) {
	case 1:
		return exact[0], nil
	case 0:
	default:
		return -1, Validationf("%s name %q is ambiguous: %d matches", kind, query, len(exact))
	}

	matches := fuzzy.Find(q, folded)
	if len(matches) == 0 {
		return -1, NotFoundf("%s %q not found", kind, query)
	}
	if len(matches) > 1 && matches[0].Score == matches[1].Score {
		return -1, Validationf("%s name %q is ambiguous: could be %q or %q", kind, query, names[matches[0].Index], names[matches[1].Index])
	}
	return matches[0].Index, nil
}

func resolveBoard(ctx context.Context, tx Tx, actor Actor, ref Ref) (store.Board, rbac.Role, error) {
	if ref.IsZero() {
		return store.Board{}, rbac.RoleNone, Validationf("board is required")
	}
	id, name := ref.lookup()
	if id != "" {
		board, err := tx.GetBoard(ctx, id)
		if err != nil {
			return store.Board{}, rbac.RoleNone, classify(err, "board")
		}
		role, err := tx.GetRole(ctx, board.ID, actor.UserID)
		if err != nil {
			return store.Board{}, rbac.RoleNone, err
		}
		return board, rbac.Role(role), nil
	}

	boards, err := tx.ListBoardsForUser(ctx, actor.UserID)
	if err != nil {
		return store.Board{}, rbac.RoleNone, err
	}
	names := make([]string, len(boards))
	for i, b := range boards {
		names[i] = b.Name
	}
	i, err := matchName("board", name, names)
	if err != nil {
		return store.Board{}, rbac.RoleNone, err
	}
	return boards[i].Board, rbac.Role(boards[i].Role), nil
}

func resolveColumn(ctx context.Context, tx Tx, board store.Board, ref Ref) (store.Column, error) {
	id, name := ref.lookup()
	if id != "" {
		column, err := tx.GetColumn(ctx, id)
		if err != nil {
			return store.Column{}, classify(err, "column")
		}
		if column.BoardID != board.ID {
			return store.Column{}, Validationf("column %q does not belong to board %q", column.Name, board.Name)
		}
		return column, nil
	}
	columns, err := tx.ListColumns(ctx, board.ID)
	if err != nil {
		return store.Column{}, err
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	i, err := matchName("column", name, names)
	if err != nil {
		return store.Column{}, err
	}
	return columns[i], nil
}

// resolveColumnBoard finds a column by id when no board was given and
// returns the board it belongs to.
func resolveColumnBoard(ctx context.Context, tx Tx, actor Actor, ref Ref) (store.Column, store.Board, rbac.Role, error) {
	id, _ := ref.lookup()
	if id == "" {
		return store.Column{}, store.Board{}, rbac.RoleNone, Validationf("board is required to find column %q", ref.String())
	}
	column, err := tx.GetColumn(ctx, id)
	if err != nil {
		return store.Column{}, store.Board{}, rbac.RoleNone, classify(err, "column")
	}
	board, role, err := resolveBoard(ctx, tx, actor, ByID(column.BoardID))
	if err != nil {
		return store.Column{}, store.Board{}, rbac.RoleNone, err
	}
	return column, board, role, nil
}

// resolveBoardCard finds a card among the cards placed on board that actor
// can see.
func (e *Executor) resolveBoardCard(ctx context.Context, tx Tx, actor Actor, board store.Board, role rbac.Role, ref Ref) (store.Card, error) {
	if ref.IsZero() {
		return store.Card{}, Validationf("card is required")
	}
	id, name := ref.lookup()
	if id != "" {
		card, err := tx.GetCard(ctx, id)
		if err != nil {
			return store.Card{}, classify(err, "card")
		}
		return card, nil
	}
	items, err := tx.ListBoardCards(ctx, board.ID, store.CardFilter{})
	if err != nil {
		return store.Card{}, err
	}
	cards := make([]store.Card, 0, len(items))
	for _, item := range items {
		if e.canView(item.Card, role, actor) {
			cards = append(cards, item.Card)
		}
	}
	return pickCard(name, cards)
}

// resolveAnyCard searches every card actor can reach: their own cards and
// visible cards on boards they belong to.
func (e *Executor) resolveAnyCard(ctx context.Context, tx Tx, actor Actor, ref Ref) (store.Card, error) {
	if ref.IsZero() {
		return store.Card{}, Validationf("card is required")
	}
	id, name := ref.lookup()
	if id != "" {
		card, err := tx.GetCard(ctx, id)
		if err != nil {
			return store.Card{}, classify(err, "card")
		}
		return card, nil
	}

	seen := map[string]bool{}
	var cards []store.Card
	own, err := tx.ListUserCards(ctx, actor.UserID)
	if err != nil {
		return store.Card{}, err
	}
	for _, card := range own {
		seen[card.ID] = true
		cards = append(cards, card)
	}
	boards, err := tx.ListBoardsForUser(ctx, actor.UserID)
	if err != nil {
		return store.Card{}, err
	}
	for _, board := range boards {
		items, err := tx.ListBoardCards(ctx, board.ID, store.CardFilter{})
		if err != nil {
			return store.Card{}, err
		}
		for _, item := range items {
			if seen[item.ID] || !e.canView(item.Card, rbac.Role(board.Role), actor) {
				continue
			}
			seen[item.ID] = true
			cards = append(cards, item.Card)
		}
	}
	return pickCard(name, cards)
}

func pickCard(name string, cards []store.Card) (store.Card, error) {
	titles := make([]string, len(cards))
	for i, card := range cards {
		titles[i] = card.Title
	}
	i, err := matchName("card", name, titles)
	if err != nil {
		return store.Card{}, err
	}
	return cards[i], nil
}

// resolveTag looks a tag up by id, or by name among the board's tags and
// the actor's personal tags.
func resolveTag(ctx context.Context, tx Tx, actor Actor, board *store.Board, ref Ref) (store.Tag, error) {
	if ref.IsZero() {
		return store.Tag{}, Validationf("tag is required")
	}
	id, name := ref.lookup()
	if id != "" {
		tag, err := tx.GetTag(ctx, id)
		if err != nil {
			return store.Tag{}, classify(err, "tag")
		}
		return tag, nil
	}

	var tags []store.Tag
	if board != nil {
		boardTags, err := tx.ListBoardTags(ctx, board.ID)
		if err != nil {
			return store.Tag{}, err
		}
		tags = append(tags, boardTags...)
	}
	userTags, err := tx.ListUserTags(ctx, actor.UserID)
	if err != nil {
		return store.Tag{}, err
	}
	tags = append(tags, userTags...)

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	i, err := matchName("tag", name, names)
	if err != nil {
		return store.Tag{}, err
	}
	return tags[i], nil
}
