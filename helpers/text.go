package helpers

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanText strips markup, unescapes entities, applies NFKC and collapses
// whitespace runs to a single space.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<>") {
		// keep block boundaries as spaces
		s = strings.NewReplacer("<br", " <br", "</p>", " </p>", "</li>", " </li>", "</div>", " </div>").Replace(s)
		s = stripPolicy.Sanitize(s)
	}
	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// GetSplitPart returns the index-th part of target split by sep. A negative
// index counts from the end.
func GetSplitPart(target, sep string, index int) (string, bool) {
	parts := strings.Split(target, sep)
	if index < 0 {
		index += len(parts)
	}
	if index < 0 || index >= len(parts) {
		return "", false
	}
	return parts[index], true
}
