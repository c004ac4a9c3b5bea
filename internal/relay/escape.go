package relay

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five HTML-significant characters with their entities.
// It is not a general HTML sanitizer: attribute and URL contexts are not
// handled.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
