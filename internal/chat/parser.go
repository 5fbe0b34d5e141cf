package chat

import (
	"encoding/json"
	"strings"

	"taskboard/api/internal/kanban"
)

// Directive is one action object emitted by the model.
type Directive struct {
	Action  string         `json:"action"`
	Params  map[string]any `json:"params"`
	Message string         `json:"message"`
}

// Entry is either a decoded directive or the error for a malformed one.
type Entry struct {
	Directive Directive
	Err       error
}

// Reply is a model answer split into user-facing prose and directives.
type Reply struct {
	Prose   string
	Entries []Entry
}

const fallbackProse = "Done."

// ParseReply extracts directives from a model answer. It accepts a bare
// JSON object or array, a ```json fenced block, or objects embedded in
// prose. A malformed object yields an Entry with a parse error and the
// rest of the reply is still used.
func ParseReply(text string) Reply {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Reply{}
	}

	if entries, ok := decodeWhole(trimmed); ok {
		return Reply{Prose: proseFrom(entries, ""), Entries: entries}
	}
	if body, rest, ok := fenced(trimmed); ok {
		if entries, ok := decodeWhole(body); ok {
			return Reply{Prose: proseFrom(entries, rest), Entries: entries}
		}
	}

	entries, rest := scanObjects(trimmed)
	return Reply{Prose: proseFrom(entries, rest), Entries: entries}
}

// decodeWhole parses text as a single directive or an array of them.
func decodeWhole(text string) ([]Entry, bool) {
	switch {
	case strings.HasPrefix(text, "{"):
		var raw map[string]json.RawMessage
		if json.Unmarshal([]byte(text), &raw) != nil {
			return nil, false
		}
		if _, ok := raw["action"]; !ok {
			return nil, false
		}
		return []Entry{decodeDirective([]byte(text))}, true
	case strings.HasPrefix(text, "["):
		var items []json.RawMessage
		if json.Unmarshal([]byte(text), &items) != nil {
			return nil, false
		}
		entries := make([]Entry, 0, len(items))
		for _, item := range items {
			entries = append(entries, decodeDirective(item))
		}
		return entries, true
	default:
		return nil, false
	}
}

func decodeDirective(raw []byte) Entry {
	var d Directive
	if err := json.Unmarshal(raw, &d); err != nil {
		return Entry{Err: kanban.Parsef("malformed action: %s", shorten(raw))}
	}
	d.Action = strings.TrimSpace(d.Action)
	if d.Action == "" {
		return Entry{Err: kanban.Parsef("action object has no action name: %s", shorten(raw))}
	}
	if d.Params == nil {
		d.Params = map[string]any{}
	}
	return Entry{Directive: d}
}

// fenced returns the content of the first ```json block and the text
// around it.
func fenced(text string) (body, rest string, ok bool) {
	start := strings.Index(text, "```json")
	if start < 0 {
		return "", "", false
	}
	inner := text[start+len("```json"):]
	end := strings.Index(inner, "```")
	if end < 0 {
		return "", "", false
	}
	after := inner[end+len("```"):]
	return strings.TrimSpace(inner[:end]), text[:start] + " " + after, true
}

// scanObjects finds balanced top-level {...} spans that mention "action"
// and returns them as entries plus the remaining prose. Braces inside JSON
// strings do not count.
func scanObjects(text string) ([]Entry, string) {
	var entries []Entry
	var prose strings.Builder

	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			prose.WriteString(text[i:])
			break
		}
		open += i
		end := matchBrace(text, open)
		if end < 0 {
			tail := text[open:]
			if !strings.Contains(tail, `"action"`) {
				prose.WriteString(text[i:])
				break
			}
			// a truncated action object
			prose.WriteString(text[i:open])
			entries = append(entries, Entry{Err: kanban.Parsef("incomplete action: %s", shorten([]byte(tail)))})
			break
		}
		span := text[open : end+1]
		if !strings.Contains(span, `"action"`) {
			prose.WriteString(text[i : end+1])
			i = end + 1
			continue
		}
		prose.WriteString(text[i:open])
		prose.WriteByte(' ')
		entries = append(entries, decodeDirective([]byte(span)))
		i = end + 1
	}
	return entries, prose.String()
}

func matchBrace(text string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for j := open; j < len(text); j++ {
		c := text[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// proseFrom prefers the directives' own messages and falls back to the text
// around them.
func proseFrom(entries []Entry, rest string) string {
	var messages []string
	for _, entry := range entries {
		if entry.Err == nil {
			if m := strings.TrimSpace(entry.Directive.Message); m != "" {
				messages = append(messages, m)
			}
		}
	}
	prose := strings.Join(messages, " ")
	if strings.Trim(rest, "[],` \t\r\n") == "" {
		rest = ""
	}
	if prose == "" {
		prose = tidy(strings.ReplaceAll(rest, "```", ""))
	}
	prose = kanban.CleanLine(prose)
	if prose == "" && len(entries) > 0 {
		return fallbackProse
	}
	return prose
}

// tidy collapses runs of spaces inside lines and drops blank lines.
func tidy(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func shorten(raw []byte) string {
	const max = 80
	s := []rune(strings.Join(strings.Fields(string(raw)), " "))
	if len(s) > max {
		return string(s[:max]) + "..."
	}
	return string(s)
}
