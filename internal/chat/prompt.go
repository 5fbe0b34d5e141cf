package chat

import (
	"fmt"
	"strings"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
)

const boardActions = `Actions (one JSON object each; "message" is shown to the user):
{"action": "create_card", "params": {"column": "column name", "title": "card title", "body": "optional", "due_date": "YYYY-MM-DD"}, "message": "..."}
{"action": "update_card", "params": {"card": "card title", "new_title": "optional", "status": "open|in_progress|done|closed"}, "message": "..."}
{"action": "move_card", "params": {"card_title": "card to move", "target_column": "destination column", "position": 0}, "message": "..."}
{"action": "delete_card", "params": {"card": "card title"}, "message": "..."}
{"action": "create_column", "params": {"name": "column name", "position": 0}, "message": "..."}
{"action": "update_column", "params": {"column": "column name", "new_name": "new name"}, "message": "..."}
{"action": "move_column", "params": {"column": "column name", "position": 0}, "message": "..."}
{"action": "delete_column", "params": {"column": "column name"}, "message": "..."}
{"action": "create_tag", "params": {"name": "tag name", "color": "#rrggbb"}, "message": "..."}
{"action": "add_tag_to_card", "params": {"card_title": "card title", "tag_name": "tag"}, "message": "..."}
{"action": "remove_tag_from_card", "params": {"card_title": "card title", "tag_name": "tag"}, "message": "..."}
{"action": "assign_card_to_board", "params": {"card": "card title", "column": "optional column"}, "message": "..."}
{"action": "unassign_card_from_board", "params": {"card": "card title"}, "message": "..."}
{"action": "move_card_to_board", "params": {"card": "card title", "to_board": "board name", "column": "column"}, "message": "..."}
{"action": "list_cards", "params": {"column": "optional column"}, "message": "..."}
{"action": "list_tags", "params": {}, "message": "..."}
{"action": "no_action", "params": {}, "message": "your answer"}`

const globalActions = `Actions (one JSON object each; always include "board" for board actions; "message" is shown to the user):
{"action": "create_board", "params": {"name": "board name", "description": "optional", "columns": ["Todo", "Doing", "Done"]}, "message": "..."}
{"action": "create_card", "params": {"board": "board name", "column": "column name", "title": "card title"}, "message": "..."}
{"action": "move_card", "params": {"board": "board name", "card_title": "card", "target_column": "column"}, "message": "..."}
{"action": "move_card_to_board", "params": {"from_board": "source board", "to_board": "target board", "card": "card title", "column": "column"}, "message": "..."}
{"action": "create_tag", "params": {"board": "board name", "name": "tag name", "color": "#rrggbb"}, "message": "..."}
{"action": "add_tag_to_card", "params": {"board": "board name", "card_title": "card", "tag_name": "tag"}, "message": "..."}
{"action": "delete_card", "params": {"board": "board name", "card": "card title"}, "message": "..."}
{"action": "delete_column", "params": {"board": "board name", "column": "column name"}, "message": "..."}
{"action": "list_cards", "params": {"board": "board name", "column": "optional"}, "message": "..."}
{"action": "list_tags", "params": {"board": "optional board name"}, "message": "..."}
{"action": "no_action", "params": {}, "message": "your answer"}`

const replyRules = `Reply with JSON only: a single action object, or an array of them when several steps are needed.
Use "no_action" when the user asks a question or is chatting. Refer to cards, columns, boards and tags by their exact names.`

func userContext(b *strings.Builder, llmContext string) {
	if ctx := strings.TrimSpace(llmContext); ctx != "" {
		fmt.Fprintf(b, "\nAbout the user:\n%s\n", ctx)
	}
}

func writeCard(b *strings.Builder, card kanban.CardSnapshot) {
	fmt.Fprintf(b, "  - %q [%s, %s]", card.Card.Title, card.Card.Status, card.Card.Visibility)
	if card.Card.DueDate != nil {
		fmt.Fprintf(b, " due %s", card.Card.DueDate.Format("2006-01-02"))
	}
	if len(card.Tags) > 0 {
		fmt.Fprintf(b, " tags: %s", strings.Join(card.Tags, ", "))
	}
	b.WriteByte('\n')
}

func tagNames(tags []store.Tag) string {
	if len(tags) == 0 {
		return "none"
	}
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return strings.Join(names, ", ")
}

// BoardPrompt renders the system prompt for a conversation on one board.
func BoardPrompt(snap kanban.BoardSnapshot, llmContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a Kanban board assistant for the board %q. The user's role is %s.\n", snap.Board.Name, snap.Role)
	userContext(&b, llmContext)

	b.WriteString("\nCurrent board state:\n")
	if len(snap.Columns) == 0 {
		b.WriteString("No columns yet.\n")
	}
	for _, column := range snap.Columns {
		fmt.Fprintf(&b, "Column %q (%d cards)\n", column.Column.Name, len(column.Cards))
		for _, card := range column.Cards {
			writeCard(&b, card)
		}
	}
	if len(snap.Unfiled) > 0 {
		fmt.Fprintf(&b, "Unfiled (%d cards)\n", len(snap.Unfiled))
		for _, card := range snap.Unfiled {
			writeCard(&b, card)
		}
	}
	fmt.Fprintf(&b, "Tags: %s\n\n", tagNames(snap.Tags))

	b.WriteString(boardActions)
	b.WriteString("\n\n")
	b.WriteString(replyRules)
	return b.String()
}

// GlobalPrompt renders the system prompt for the cross-board conversation.
func GlobalPrompt(snap kanban.GlobalSnapshot, llmContext string) string {
	var b strings.Builder
	b.WriteString("You are a Kanban assistant with access to all of the user's boards.\n")
	userContext(&b, llmContext)

	if len(snap.Boards) == 0 {
		b.WriteString("\nThe user has no boards yet. Suggest creating one.\n")
	} else {
		b.WriteString("\nBoards:\n")
		for _, board := range snap.Boards {
			fmt.Fprintf(&b, "- %q (role: %s, columns: [%s], %d cards)\n",
				board.Board.Name, board.Role, strings.Join(board.Columns, ", "), board.CardCount)
		}
	}
	if len(snap.Inbox) > 0 {
		b.WriteString("\nThe user's own cards:\n")
		for _, card := range snap.Inbox {
			fmt.Fprintf(&b, "- %q [%s]\n", card.Title, card.Status)
		}
	}
	fmt.Fprintf(&b, "\nPersonal tags: %s\n\n", tagNames(snap.Tags))

	b.WriteString(globalActions)
	b.WriteString("\n\n")
	b.WriteString(replyRules)
	return b.String()
}
