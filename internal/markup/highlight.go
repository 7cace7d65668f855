package markup

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlight renders source as HTML with inline styles and no surrounding
// <pre>, which the fence already provides. It reports false when the
// language is unknown or chroma fails.
func highlight(source, lang, styleName string) (string, bool) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return "", false
	}

	var b strings.Builder
	formatter := html.New(html.PreventSurroundingPre(true))
	if err := formatter.Format(&b, styles.Get(styleName), iterator); err != nil {
		return "", false
	}
	return b.String(), true
}
