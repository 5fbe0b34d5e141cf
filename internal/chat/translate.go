package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/kanban"
)

// params reads loosely typed model arguments under any of several names.
type params map[string]any

func (p params) str(keys ...string) string {
	for _, key := range keys {
		switch v := p[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func (p params) optStr(keys ...string) *string {
	for _, key := range keys {
		if v, ok := p[key].(string); ok {
			return &v
		}
	}
	return nil
}

func (p params) num(keys ...string) (*int, error) {
	for _, key := range keys {
		switch v := p[key].(type) {
		case float64:
			n := int(v)
			return &n, nil
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, kanban.Validationf("%s must be a number", key)
			}
			return &n, nil
		}
	}
	return nil, nil
}

func (p params) date(keys ...string) (*time.Time, error) {
	raw := p.str(keys...)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, kanban.Validationf("%s must be a date like 2006-01-02", keys[0])
}

func (p params) list(keys ...string) []string {
	for _, key := range keys {
		switch v := p[key].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			return out
		case string:
			var out []string
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

func ref(value string) kanban.Ref {
	return kanban.ByID(value)
}

var (
	cardKeys   = []string{"card_title", "card", "title", "card_id"}
	columnKeys = []string{"target_column", "column", "column_name", "to", "destination", "column_id"}
	tagKeys    = []string{"tag_name", "tag", "tag_id", "name"}
	boardKeys  = []string{"board", "board_name", "board_id"}
)

// actionName folds spellings such as "AddTag" or "add-tag" to "addtag".
func actionName(name string) string {
	folded := strings.ToLower(name)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(folded)
}

// Translate turns a directive into an action. boardID is the board the
// conversation is attached to, or "" for the global conversation. A nil
// action with a nil error means the directive asks for nothing.
func Translate(d Directive, boardID string) (kanban.Action, error) {
	p := params(d.Params)

	board := ref(p.str(boardKeys...))
	if boardID != "" {
		board = kanban.ByID(boardID)
	}

	switch actionName(d.Action) {
	case "noaction", "none", "reply", "respond":
		return nil, nil

	case "createcard", "addcard":
		a := kanban.CreateCard{
			Board:      board,
			Column:     ref(p.str("column", "column_name", "in", "target_column", "column_id")),
			Title:      p.str("title", "name", "card_title"),
			Body:       p.str("body", "description", "content"),
			Visibility: p.str("visibility"),
			Status:     p.str("status"),
			OwnerID:    p.str("owner_id", "assignee_id"),
		}
		var err error
		if a.Position, err = p.num("position"); err != nil {
			return nil, err
		}
		if a.StartDate, err = p.date("start_date", "start"); err != nil {
			return nil, err
		}
		if a.EndDate, err = p.date("end_date", "end"); err != nil {
			return nil, err
		}
		if a.DueDate, err = p.date("due_date", "due"); err != nil {
			return nil, err
		}
		return a, nil

	case "updatecard", "editcard":
		a := kanban.UpdateCard{
			Card:       ref(p.str(cardKeys...)),
			Board:      board,
			Title:      p.optStr("new_title"),
			Body:       p.optStr("body", "description"),
			Visibility: p.optStr("visibility"),
			Status:     p.optStr("status"),
		}
		for _, field := range []struct {
			patch *kanban.DatePatch
			keys  []string
		}{
			{&a.StartDate, []string{"start_date"}},
			{&a.EndDate, []string{"end_date"}},
			{&a.DueDate, []string{"due_date", "due"}},
		} {
			value, err := p.date(field.keys...)
			if err != nil {
				return nil, err
			}
			if value != nil {
				*field.patch = kanban.DatePatch{Set: true, Value: value}
			}
		}
		return a, nil

	case "movecard":
		position, err := p.num("position")
		if err != nil {
			return nil, err
		}
		return kanban.MoveCard{
			Card:            ref(p.str(append(cardKeys, "name")...)),
			Board:           board,
			Column:          ref(p.str(columnKeys...)),
			Position:        position,
			AssignIfMissing: true,
		}, nil

	case "movecardcrossboard", "movecardtoboard":
		position, err := p.num("position")
		if err != nil {
			return nil, err
		}
		from := ref(p.str("from_board", "source_board", "source"))
		if from.IsZero() && boardID != "" {
			from = kanban.ByID(boardID)
		}
		return kanban.MoveCardToBoard{
			Card:      ref(p.str(cardKeys...)),
			FromBoard: from,
			ToBoard:   ref(p.str("to_board", "target_board", "destination_board", "destination")),
			Column:    ref(p.str("column", "target_column", "to_column")),
			Position:  position,
		}, nil

	case "deletecard", "removecard":
		return kanban.DeleteCard{Card: ref(p.str("card", "card_title", "title", "name", "card_id")), Board: board}, nil

	case "assigncardtoboard", "assigncard", "addcardtoboard":
		position, err := p.num("position")
		if err != nil {
			return nil, err
		}
		target := ref(p.str("to_board", "target_board"))
		if target.IsZero() {
			target = board
		}
		return kanban.AssignCardToBoard{
			Card:     ref(p.str(cardKeys...)),
			Board:    target,
			Column:   ref(p.str(columnKeys...)),
			Position: position,
		}, nil

	case "unassigncardfromboard", "unassigncard", "removecardfromboard":
		return kanban.UnassignCardFromBoard{Card: ref(p.str(cardKeys...)), Board: board}, nil

	case "createcolumn", "addcolumn":
		position, err := p.num("position")
		if err != nil {
			return nil, err
		}
		return kanban.CreateColumn{Board: board, Name: p.str("name", "column", "column_name", "title"), Position: position}, nil

	case "updatecolumn", "renamecolumn":
		return kanban.UpdateColumn{
			Column: ref(p.str("column", "column_name", "column_id")),
			Board:  board,
			Name:   p.str("new_name", "name"),
		}, nil

	case "movecolumn":
		position, err := p.num("position", "to")
		if err != nil {
			return nil, err
		}
		if position == nil {
			return nil, kanban.Validationf("position is required")
		}
		return kanban.MoveColumn{Column: ref(p.str("column", "column_name", "name", "column_id")), Board: board, Position: *position}, nil

	case "deletecolumn", "removecolumn":
		return kanban.DeleteColumn{Column: ref(p.str("column", "column_name", "name", "column_id")), Board: board}, nil

	case "createtag", "addtagtoboard":
		tagBoard := board
		if strings.EqualFold(p.str("scope"), "personal") {
			tagBoard = kanban.Ref{}
		}
		return kanban.CreateTag{
			Board: tagBoard,
			Name:  p.str("name", "tag_name", "tag"),
			Color: p.str("color", "hex_color"),
		}, nil

	case "updatetag", "renametag":
		return kanban.UpdateTag{
			Tag:   ref(p.str("tag", "tag_name", "name", "tag_id")),
			Board: board,
			Name:  p.optStr("new_name"),
			Color: p.optStr("color", "hex_color"),
		}, nil

	case "deletetag", "removetag":
		return kanban.DeleteTag{Tag: ref(p.str("tag", "tag_name", "name", "tag_id")), Board: board}, nil

	case "addtag", "addtagtocard", "tagcard":
		return kanban.AddTagToCard{Card: ref(p.str(cardKeys...)), Tag: ref(p.str(tagKeys...)), Board: board}, nil

	case "removetagfromcard", "untagcard":
		return kanban.RemoveTagFromCard{Card: ref(p.str(cardKeys...)), Tag: ref(p.str(tagKeys...)), Board: board}, nil

	case "createboard":
		return kanban.CreateBoard{
			Name:        p.str("name", "board_name", "title"),
			Description: p.str("description"),
			Columns:     p.list("columns"),
		}, nil

	case "updateboard", "renameboard":
		return kanban.UpdateBoard{
			Board:       board,
			Name:        p.optStr("new_name"),
			Description: p.optStr("description"),
		}, nil

	case "deleteboard":
		return kanban.DeleteBoard{Board: board}, nil

	case "setpermission", "shareboard":
		return kanban.SetPermission{
			Board:  board,
			UserID: p.str("user_id"),
			Email:  p.str("email", "user"),
			Role:   p.str("role"),
		}, nil

	case "removepermission", "unshareboard":
		return kanban.RemovePermission{Board: board, UserID: p.str("user_id", "user")}, nil

	case "listcards":
		return kanban.ListCards{Board: board, Column: ref(p.str("column", "column_name"))}, nil

	case "listtags":
		return kanban.ListTags{Board: board}, nil

	default:
		return nil, kanban.Validationf("unknown action %q", d.Action)
	}
}

// describeDirective names a directive that never reached the executor.
func describeDirective(d Directive) string {
	if d.Action == "" {
		return "Unreadable action"
	}
	return fmt.Sprintf("Action %q", d.Action)
}
