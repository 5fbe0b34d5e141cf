package kanban

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	bodyPolicy  = bluemonday.UGCPolicy()
)

// CleanLine strips all markup from single-line text such as titles and names.
func CleanLine(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(value)))
}

// CleanBody keeps safe formatting in long-form text such as card bodies and
// comments.
func CleanBody(value string) string {
	return strings.TrimSpace(bodyPolicy.Sanitize(value))
}
