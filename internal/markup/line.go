package markup

import "strings"

// lineState is carried from one line of a document to the next
type lineState struct {
	inList  bool   // An unclosed <ul> has been emitted
	heading string // Heading tag opened on the current line, e.g. "h2"
}

// ============================================================================
// Format Stack
// ============================================================================

// span is an open inline format
type span int

const (
	spanNone span = iota
	spanBold
	spanItalic
	spanCode
)

func (f span) openTag() string {
	switch f {
	case spanBold:
		return "<b>"
	case spanItalic:
		return "<i>"
	case spanCode:
		return "<code>"
	}
	return ""
}

func (f span) closeTag() string {
	switch f {
	case spanBold:
		return "</b>"
	case spanItalic:
		return "</i>"
	case spanCode:
		return "</code>"
	}
	return ""
}

// formatStack holds the open inline spans, innermost last. A code span,
// when present, is always on top: nothing opens inside it.
type formatStack []span

func (s formatStack) top() span {
	if len(s) == 0 {
		return spanNone
	}
	return s[len(s)-1]
}

func (s formatStack) contains(f span) bool {
	for _, open := range s {
		if open == f {
			return true
		}
	}
	return false
}

func (s *formatStack) push(f span) {
	*s = append(*s, f)
}

func (s *formatStack) pop() span {
	f := s.top()
	if f != spanNone {
		*s = (*s)[:len(*s)-1]
	}
	return f
}

// ============================================================================
// Line Scanner
// ============================================================================

// mode is the scanner's position in the line grammar
type mode int

const (
	modeLeadingSpaces mode = iota
	modeText
	modeLinkTitle
	modeLinkURL
	modeLinkUser
	modeLinkAttachment
)

// lineScanner walks the runes of one line. Each step function examines
// the rune under the cursor, advances the cursor past whatever it
// consumed, and returns the next mode. A step that returns without
// advancing hands the same rune to the next mode.
type lineScanner struct {
	runes    []rune
	pos      int
	state    lineState
	rewriter *Rewriter

	formats       formatStack
	leadingSpaces int
	text          strings.Builder // Pending literal text, escaped on flush
	out           strings.Builder
	linkTitle     strings.Builder
	linkURL       strings.Builder
}

// parseLine renders one line of markup. The line must not contain line
// breaks. Spans left open at the end of the line are closed; an unclosed
// link drops the rest of the line.
func parseLine(line string, st lineState, rewriter *Rewriter) (string, lineState) {
	st.heading = ""
	s := &lineScanner{
		runes:    []rune(line),
		state:    st,
		rewriter: rewriter,
	}

	if len(s.runes) == 0 && s.state.inList {
		s.closeList()
	}

	m := modeLeadingSpaces
	for s.pos < len(s.runes) {
		c := s.runes[s.pos]
		switch m {
		case modeLeadingSpaces:
			m = s.stepLeadingSpaces(c)
		case modeText:
			m = s.stepText(c)
		case modeLinkTitle:
			m = s.stepLinkTitle(c)
		case modeLinkURL:
			m = s.stepLinkURL(c)
		case modeLinkUser:
			m = s.stepLinkUser(c)
		case modeLinkAttachment:
			m = s.stepLinkAttachment(c)
		}
	}

	if m == modeLeadingSpaces {
		s.text.WriteString(strings.Repeat(" ", s.leadingSpaces))
	}
	s.flush()
	for s.formats.top() != spanNone {
		s.out.WriteString(s.formats.pop().closeTag())
	}

	return s.out.String(), s.state
}

// peek returns the rune n positions after the cursor
func (s *lineScanner) peek(n int) (rune, bool) {
	i := s.pos + n
	if i < 0 || i >= len(s.runes) {
		return 0, false
	}
	return s.runes[i], true
}

func (s *lineScanner) peekIs(n int, want rune) bool {
	c, ok := s.peek(n)
	return ok && c == want
}

// flush writes pending literal text to the output
func (s *lineScanner) flush() {
	if s.text.Len() > 0 {
		s.out.WriteString(Escape(s.text.String()))
		s.text.Reset()
	}
}

func (s *lineScanner) closeList() {
	s.flush()
	s.state.inList = false
	s.out.WriteString("</ul>")
}

func (s *lineScanner) stepLeadingSpaces(c rune) mode {
	if c == ' ' {
		s.leadingSpaces++
		s.pos++
		return modeLeadingSpaces
	}

	if (c == '*' || c == '-') && s.peekIs(1, ' ') {
		if !s.state.inList {
			s.out.WriteString("<ul>")
			s.state.inList = true
		}
		s.out.WriteString("<li>")
		s.leadingSpaces = 0
		s.pos += 2
		return modeText
	}

	s.text.WriteString(strings.Repeat(" ", s.leadingSpaces))
	return modeText
}

func (s *lineScanner) stepText(c rune) mode {
	// A line that closes a list cannot also open a heading.
	if s.pos == 0 && c != ' ' && s.state.inList {
		s.closeList()
	} else if s.pos == 0 && s.startHeading() {
		return modeText
	}

	top := s.formats.top()

	if c == '[' && top != spanCode {
		s.flush()
		s.linkTitle.Reset()
		s.linkURL.Reset()
		switch {
		case s.peekIs(1, '~'):
			s.pos += 2
			return modeLinkUser
		case s.peekIs(1, '^'):
			s.pos += 2
			return modeLinkAttachment
		}
		s.pos++
		return modeLinkTitle
	}

	switch c {
	case '*':
		if s.toggle(spanBold) {
			return modeText
		}
	case '_':
		if s.toggle(spanItalic) {
			return modeText
		}
	case '{':
		if s.peekIs(1, '{') && top != spanCode {
			s.flush()
			s.formats.push(spanCode)
			s.out.WriteString(spanCode.openTag())
			s.pos += 2
			return modeText
		}
	case '}':
		if s.peekIs(1, '}') && top == spanCode {
			s.flush()
			s.out.WriteString(s.formats.pop().closeTag())
			s.pos += 2
			return modeText
		}
	case '\\':
		if next, ok := s.peek(1); ok && top == spanCode {
			s.text.WriteRune(next)
			s.pos += 2
			return modeText
		}
	}

	s.text.WriteRune(c)
	s.pos++
	return modeText
}

// startHeading recognizes "hN." at the cursor and opens the heading
func (s *lineScanner) startHeading() bool {
	level, ok := s.peek(1)
	if !s.peekIs(0, 'h') || !ok || level < '1' || level > '6' || !s.peekIs(2, '.') {
		return false
	}

	s.flush()
	s.state.heading = "h" + string(level)
	s.out.WriteString("<" + s.state.heading + ">")
	s.pos += 3
	if s.peekIs(0, ' ') {
		s.pos++
	}
	return true
}

// toggle closes f if it is open or opens it at a word boundary. It
// returns false when the marker is literal text.
func (s *lineScanner) toggle(f span) bool {
	if s.formats.top() == spanCode {
		return false
	}

	if s.formats.contains(f) {
		s.flush()
		for {
			open := s.formats.pop()
			s.out.WriteString(open.closeTag())
			if open == f {
				break
			}
		}
		s.pos++
		return true
	}

	prev, ok := s.peek(-1)
	if !canToggleEmphasis(prev, !ok) {
		return false
	}

	s.flush()
	s.formats.push(f)
	s.out.WriteString(f.openTag())
	s.pos++
	return true
}

func (s *lineScanner) stepLinkTitle(c rune) mode {
	s.pos++
	switch c {
	case '|':
		return modeLinkURL
	case ']':
		title := s.linkTitle.String()
		s.writeAnchor(title, title)
		return modeText
	}
	s.linkTitle.WriteRune(c)
	return modeLinkTitle
}

func (s *lineScanner) stepLinkURL(c rune) mode {
	s.pos++
	if c == ']' {
		target, title := s.linkURL.String(), s.linkTitle.String()
		// [url|text] is accepted as well as [text|url]
		if !isAbsoluteURL(target) && isAbsoluteURL(title) {
			target, title = title, target
		}
		s.writeAnchor(target, title)
		return modeText
	}
	s.linkURL.WriteRune(c)
	return modeLinkURL
}

func (s *lineScanner) stepLinkUser(c rune) mode {
	s.pos++
	if c == ']' {
		s.out.WriteString("<b>@" + Escape(s.linkTitle.String()) + "</b>")
		return modeText
	}
	s.linkTitle.WriteRune(c)
	return modeLinkUser
}

func (s *lineScanner) stepLinkAttachment(c rune) mode {
	s.pos++
	if c == ']' {
		s.out.WriteString("<b>[attachment " + Escape(s.linkTitle.String()) + "]</b>")
		return modeText
	}
	s.linkTitle.WriteRune(c)
	return modeLinkAttachment
}

func (s *lineScanner) writeAnchor(target, title string) {
	s.out.WriteString(`<a href="` + s.rewriter.Rewrite(target) + `" target="_new">`)
	s.out.WriteString(Escape(title))
	s.out.WriteString("</a>")
}
