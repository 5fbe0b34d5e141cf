package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/util"
)

// pathRef reads a URL id. Path ids are never matched by name.
func pathRef(r *http.Request, key, what string) (kanban.Ref, error) {
	id := chi.URLParam(r, key)
	if !util.IsUUID(id) {
		return kanban.Ref{}, kanban.NotFoundf("%s not found", what)
	}
	return kanban.ByID(id), nil
}

// optionalRef reads an id from a body or query field. Empty means unset.
func optionalRef(value, what string) (kanban.Ref, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return kanban.Ref{}, nil
	}
	if !util.IsUUID(value) {
		return kanban.Ref{}, kanban.Validationf("%s must be an id", what)
	}
	return kanban.ByID(value), nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, kanban.Validationf("%s must be a date (YYYY-MM-DD)", field)
}

// dateField is a JSON date that remembers whether it was sent. An explicit
// null clears the date.
type dateField struct {
	Set   bool
	Value *time.Time
	err   error
}

func (d *dateField) UnmarshalJSON(raw []byte) error {
	d.Set = true
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		d.Value = nil
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		d.err = kanban.Validationf("dates must be strings")
		return nil
	}
	if strings.TrimSpace(text) == "" {
		d.Value = nil
		return nil
	}
	t, err := parseDate("date", text)
	if err != nil {
		d.err = err
		return nil
	}
	d.Value = &t
	return nil
}

func (d dateField) patch() (kanban.DatePatch, error) {
	if d.err != nil {
		return kanban.DatePatch{}, d.err
	}
	return kanban.DatePatch{Set: d.Set, Value: d.Value}, nil
}

func (d dateField) value() (*time.Time, error) {
	return d.Value, d.err
}

// queryDate reads an optional date query parameter.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(key, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryTime reads an optional RFC3339 query parameter.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, kanban.Validationf("%s must be an RFC3339 timestamp", key)
	}
	t = t.UTC()
	return &t, nil
}
