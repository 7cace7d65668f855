package markup

// canToggleEmphasis reports whether a formatting character preceded by
// prev may open or close a span. Markers inside a word, such as the
// underscores in foo_bar_baz, are literal.
func canToggleEmphasis(prev rune, atStart bool) bool {
	if atStart {
		return true
	}
	return !(prev >= 'A' && prev <= 'Z' || prev >= 'a' && prev <= 'z')
}
