package markup

import (
	"regexp"
	"strings"
)

// Options controls the behavior of the block formatter
type Options struct {
	QuoteFence      bool   // Recognize {quote} fences
	CloseOpenBlocks bool   // Close a list or fence still open at document end
	HighlightStyle  string // Chroma style for {code:lang} regions, empty to disable
}

// DefaultOptions returns the options used by Format
func DefaultOptions() Options {
	return Options{
		QuoteFence:      true,
		CloseOpenBlocks: true,
	}
}

const (
	preOpen = `<pre style="border: 2px solid black;` +
		`font-family: Menlo, Courier, Lucida Console, Monospace;` +
		`background-color: #eeeeee;">` + "\n"
	quoteOpen = `<div style="border-left: 2px solid #888888; ` +
		`margin-left: 1em; padding-left: 1em">` + "\n"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// fenceKind identifies a fenced block
type fenceKind int

const (
	fenceNone fenceKind = iota
	fenceNoformat
	fenceCode
	fencePanel
	fenceQuote
)

var fenceTokens = []struct {
	prefix string
	kind   fenceKind
}{
	{"{noformat", fenceNoformat},
	{"{code", fenceCode},
	{"{panel", fencePanel},
	{"{quote", fenceQuote},
}

// raw reports whether the contents of the fence bypass markup parsing
func (k fenceKind) raw() bool {
	return k == fenceNoformat || k == fenceCode
}

func (k fenceKind) open() string {
	if k == fenceQuote {
		return quoteOpen
	}
	return preOpen
}

func (k fenceKind) close() string {
	if k == fenceQuote {
		return "</div>\n"
	}
	return "</pre>\n"
}

// codeRegion buffers the lines of a {code} fence so the region can be
// highlighted as a whole
type codeRegion struct {
	lang  string
	lines []string
}

// Renderer converts wiki markup documents to HTML fragments. A Renderer
// holds only immutable configuration; each Format call owns its state.
type Renderer struct {
	opts     Options
	rewriter *Rewriter
}

// NewRenderer creates a renderer. A nil rewriter uses the default rules.
func NewRenderer(opts Options, rewriter *Rewriter) *Renderer {
	if rewriter == nil {
		rewriter = NewRewriter(DefaultRewriteRules(), nil)
	}
	return &Renderer{
		opts:     opts,
		rewriter: rewriter,
	}
}

// Rewriter returns the link rewriter used by the renderer
func (r *Renderer) Rewriter() *Rewriter {
	return r.rewriter
}

var defaultRenderer = NewRenderer(DefaultOptions(), nil)

// Format renders a document with the default options and rewrite rules
func Format(document string) string {
	return defaultRenderer.Format(document)
}

// Format renders a multi-line markup document (an issue description or
// comment body) as an HTML fragment. Malformed markup degrades to escaped
// text; Format never fails.
func (r *Renderer) Format(document string) string {
	var out strings.Builder
	var ls lineState
	var code codeRegion
	fence := fenceNone
	lastWasHeading := false

	for _, line := range lineBreak.Split(document, -1) {
		if kind, lang := r.fenceToken(line); kind != fenceNone && (fence == fenceNone || kind == fence) {
			if ls.inList {
				out.WriteString("</ul>\n")
				ls.inList = false
			}
			if fence == fenceNone {
				out.WriteString(kind.open())
				fence = kind
				code = codeRegion{lang: lang}
			} else {
				if fence == fenceCode {
					out.WriteString(r.renderCode(code))
				}
				out.WriteString(fence.close())
				fence = fenceNone
			}
			lastWasHeading = false
			continue
		}

		heading := ""
		switch {
		case fence == fenceCode:
			code.lines = append(code.lines, line)
			continue
		case fence.raw():
			out.WriteString(Escape(line))
		default:
			var frag string
			frag, ls = parseLine(line, ls, r.rewriter)
			out.WriteString(frag)
			heading = ls.heading
			if heading != "" {
				out.WriteString("</" + heading + ">")
			}
		}

		switch {
		case fence == fenceQuote:
			out.WriteString("<br>\n")
		case fence != fenceNone:
			out.WriteString("\n")
		case heading == "" && !lastWasHeading:
			out.WriteString("<br>\n")
		default:
			out.WriteString("\n")
		}
		lastWasHeading = heading != ""
	}

	if fence == fenceCode {
		out.WriteString(r.renderCode(code))
	}
	if r.opts.CloseOpenBlocks {
		if ls.inList {
			out.WriteString("</ul>\n")
		}
		if fence != fenceNone {
			out.WriteString(fence.close())
		}
	}

	return out.String()
}

// fenceToken reports which fence, if any, the line opens or closes, and
// the language given as {code:lang}
func (r *Renderer) fenceToken(line string) (fenceKind, string) {
	for _, tok := range fenceTokens {
		if !strings.HasPrefix(line, tok.prefix) {
			continue
		}
		if tok.kind == fenceQuote && !r.opts.QuoteFence {
			return fenceNone, ""
		}
		if tok.kind == fenceCode {
			return tok.kind, codeLanguage(line[len(tok.prefix):])
		}
		return tok.kind, ""
	}
	return fenceNone, ""
}

// codeLanguage extracts the language from the parameters of a code fence,
// e.g. ":java}" or ":title=x|language=go}"
func codeLanguage(params string) string {
	params, ok := strings.CutPrefix(params, ":")
	if !ok {
		return ""
	}
	if end := strings.IndexByte(params, '}'); end != -1 {
		params = params[:end]
	}
	for _, param := range strings.Split(params, "|") {
		key, value, found := strings.Cut(param, "=")
		if !found {
			return strings.TrimSpace(key)
		}
		if strings.TrimSpace(key) == "language" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// renderCode emits the body of a {code} fence, highlighted when a style
// is configured and the language is known
func (r *Renderer) renderCode(code codeRegion) string {
	if r.opts.HighlightStyle != "" && code.lang != "" && len(code.lines) > 0 {
		if html, ok := highlight(strings.Join(code.lines, "\n")+"\n", code.lang, r.opts.HighlightStyle); ok {
			return html
		}
	}

	var b strings.Builder
	for _, line := range code.lines {
		b.WriteString(Escape(line))
		b.WriteString("\n")
	}
	return b.String()
}
