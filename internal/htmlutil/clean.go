package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and collapses whitespace.
func ToText(s string) string {
	return strings.Join(strings.Fields(html2text.HTML2Text(s)), " ")
}

// LooksLikeHTML reports whether s is an HTML document or fragment, such as
// the error page a reverse proxy returns in place of an API response.
func LooksLikeHTML(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(t, "<!doctype html") || strings.HasPrefix(t, "<html") ||
		(strings.HasPrefix(t, "<") && strings.Contains(t, "</"))
}
