package markup

import "html"

// Escape converts literal text into HTML-entity-safe text. Only &, <, >, "
// and ' are replaced; everything else passes through unchanged.
//
// Escaping is not idempotent, so each literal segment must be escaped
// exactly once.
func Escape(text string) string {
	return html.EscapeString(text)
}
