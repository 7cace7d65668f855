// Package browse is a terminal browser over the public issues of a
// backend.
package browse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"github.com/mattn/go-isatty"

	"github.com/bugview/bugview/internal/backend"
	"github.com/bugview/bugview/internal/issue"
	"github.com/bugview/bugview/internal/output"
)

// ============================================================================
// Issue Item
// ============================================================================

// issueItem holds the index fields of one issue for display and search
type issueItem struct {
	key        string
	resolution string
	summary    string
	created    string
	searchText string
}

func newIssueItem(is issue.Issue) issueItem {
	item := issueItem{
		key:     is.Key,
		summary: is.Fields.Summary,
		created: is.Fields.Created,
	}
	if is.Fields.Resolution != nil {
		item.resolution = is.Fields.Resolution.Name
	}
	item.searchText = strings.ToLower(item.key + " " + item.resolution + " " + item.summary)
	return item
}

func init() {
	algo.Init("default")
}

// matchesQuery checks if every lowercased search word fuzzy-matches the
// item
func (item *issueItem) matchesQuery(words [][]rune, slab *util.Slab) bool {
	chars := util.ToChars([]byte(item.searchText))
	for _, word := range words {
		res, _ := algo.FuzzyMatchV2(false, true, true, &chars, word, false, slab)
		if res.Start < 0 {
			return false
		}
	}
	return true
}

// queryWords splits a search query into lowercased patterns
func queryWords(query string) [][]rune {
	var words [][]rune
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words = append(words, []rune(w))
	}
	return words
}

// loadIssues pages through every issue carrying label
func loadIssues(ctx context.Context, b backend.Backend, label, sort string) ([]issueItem, error) {
	var items []issueItem
	for offset := 0; ; offset += issue.PageSize {
		res, err := b.IssueList(ctx, []string{label}, offset, sort)
		if err != nil {
			return nil, fmt.Errorf("listing issues at offset %d: %w", offset, err)
		}
		for _, is := range res.Issues {
			items = append(items, newIssueItem(is))
		}
		if len(res.Issues) < issue.PageSize || offset+issue.PageSize >= res.Total {
			return items, nil
		}
	}
}

// ============================================================================
// Debounce
// ============================================================================

// filterMsg triggers filtering after debounce
type filterMsg struct{}

// debounceFilter returns a command that triggers filtering after a delay
func debounceFilter() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return filterMsg{}
	})
}

// ============================================================================
// Preview Loading
// ============================================================================

// preview is the lazily fetched description of an issue
type preview struct {
	loading bool
	text    string
	err     error
}

// previewMsg carries a fetched preview back to the model
type previewMsg struct {
	key string
	preview
}

// ============================================================================
// Model
// ============================================================================

// model is the Bubble Tea model for issue selection
type model struct {
	ctx       context.Context
	backend   backend.Backend
	publicURL string
	now       func() time.Time

	width     int
	height    int
	textInput textinput.Model
	quitting  bool

	items    []issueItem
	filtered []issueItem
	cursor   int
	offset   int // viewport scroll offset
	selected *issueItem

	previews map[string]preview
	slab     *util.Slab
}

// newModel creates a model listing items
func newModel(ctx context.Context, b backend.Backend, items []issueItem, publicURL string) model {
	ti := textinput.New()
	ti.Placeholder = "Type to search..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	return model{
		ctx:       ctx,
		backend:   b,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
		textInput: ti,
		items:     items,
		filtered:  items,
		previews:  make(map[string]preview),
		slab:      util.MakeSlab(16*1024, 2048),
	}
}

// Init implements tea.Model
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchPreview())
}

// Update implements tea.Model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 4
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	case filterMsg:
		m.filterIssues()
		return m, m.fetchPreview()
	case previewMsg:
		m.previews[msg.key] = msg.preview
		return m, nil
	}

	prevQuery := m.textInput.Value()
	var tiCmd tea.Cmd
	m.textInput, tiCmd = m.textInput.Update(msg)
	cmds = append(cmds, tiCmd)

	// Only trigger debounced filter if query changed
	if m.textInput.Value() != prevQuery {
		cmds = append(cmds, debounceFilter())
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes navigation keys. Other keys go to the text input.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return tea.Quit, true
	case "enter":
		if m.cursor < len(m.filtered) {
			item := m.filtered[m.cursor]
			m.selected = &item
			return tea.Quit, true
		}
		return nil, true
	case "up", "ctrl+p":
		m.moveCursor(-1)
	case "down", "ctrl+n":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-10)
	case "pgdown":
		m.moveCursor(10)
	case "home", "ctrl+a":
		m.moveCursor(-len(m.filtered))
	case "end", "ctrl+e":
		m.moveCursor(len(m.filtered))
	default:
		return nil, false
	}
	return m.fetchPreview(), true
}

// moveCursor moves the cursor by delta, clamping to valid range
func (m *model) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(0, len(m.filtered)-1))
	m.adjustOffset()
}

// adjustOffset ensures cursor is visible within viewport
func (m *model) adjustOffset() {
	viewHeight := max(m.height-listChrome, 3)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+viewHeight {
		m.offset = m.cursor - viewHeight + 1
	}
	m.offset = clamp(m.offset, 0, max(0, len(m.filtered)-viewHeight))
}

// filterIssues filters the issue list based on the search query
func (m *model) filterIssues() {
	query := strings.TrimSpace(m.textInput.Value())

	if query == "" {
		m.filtered = m.items
	} else {
		words := queryWords(query)
		m.filtered = make([]issueItem, 0, len(m.items))
		for i := range m.items {
			if m.items[i].matchesQuery(words, m.slab) {
				m.filtered = append(m.filtered, m.items[i])
			}
		}
	}

	m.cursor = clamp(m.cursor, 0, max(0, len(m.filtered)-1))
	m.adjustOffset()
}

// fetchPreview returns a command loading the description of the issue
// under the cursor, or nil if it is already known
func (m *model) fetchPreview() tea.Cmd {
	if m.backend == nil || m.cursor >= len(m.filtered) {
		return nil
	}
	key := m.filtered[m.cursor].key
	if _, ok := m.previews[key]; ok {
		return nil
	}
	m.previews[key] = preview{loading: true}

	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		is, err := b.IssueGet(ctx, key)
		if err != nil {
			return previewMsg{key: key, preview: preview{err: err}}
		}
		return previewMsg{key: key, preview: preview{text: is.Fields.Description}}
	}
}

// issueURL returns the public page of an issue
func (m model) issueURL(key string) string {
	return m.publicURL + "/" + key
}

// ============================================================================
// Rendering
// ============================================================================

const (
	previewLines = 8
	inputLines   = 3 // divider + info + input
	listChrome   = previewLines + 1 + inputLines
	keyWidth     = 12
	resWidth     = 14
)

// View implements tea.Model
func (m model) View() string {
	if m.quitting {
		return ""
	}

	width := max(m.width, 80)
	height := max(m.height, 24)

	var b strings.Builder
	b.WriteString(m.renderPreview(width))
	list := m.renderList(max(height-listChrome, 3), width)
	b.WriteString(list)
	b.WriteString(strings.Repeat("\n", max(height-listChrome-countLines(list), 0)))
	b.WriteString(m.renderInput(width))
	return b.String()
}

// renderPreview renders the preview section for the issue under the cursor
func (m model) renderPreview(width int) string {
	var lines []string

	if m.cursor < len(m.filtered) {
		item := m.filtered[m.cursor]
		lines = append(lines, styles.PreviewHeader.Render(truncateString(item.key+": "+item.summary, width)))

		var meta []string
		if item.resolution != "" {
			meta = append(meta, item.resolution)
		}
		if t, ok := issue.ParseTime(item.created); ok {
			meta = append(meta, "created "+humanize.RelTime(t, m.now(), "ago", "from now"))
		}
		meta = append(meta, m.issueURL(item.key))
		lines = append(lines, styles.PreviewMeta.Render(strings.Join(meta, " • ")), "")

		p := m.previews[item.key]
		switch {
		case p.loading:
			lines = append(lines, styles.Dim.Render("Loading..."))
		case p.err != nil:
			lines = append(lines, styles.PreviewError.Render(previewError(p.err)))
		default:
			for _, l := range splitLines(p.text) {
				lines = append(lines, styles.PreviewBody.Render(truncateString(l, width)))
			}
		}
	}

	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	// Pad to fixed height
	for len(lines) < previewLines {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n") + "\n" + styles.Divider.Render(strings.Repeat("─", width)) + "\n"
}

func previewError(err error) string {
	if errors.Is(err, backend.ErrNotFound) {
		return "Issue no longer exists."
	}
	return "Could not load issue: " + err.Error()
}

// renderList renders the scrollable list of issues
func (m model) renderList(maxHeight, width int) string {
	if len(m.filtered) == 0 {
		return ""
	}

	offset := m.offset
	start, end := scrollWindow(m.cursor, len(m.filtered), maxHeight, &offset)

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(renderListItem(m.filtered[i], i == m.cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

// renderListItem renders a single list item
func renderListItem(item issueItem, selected bool, width int) string {
	kStyle, rStyle, sStyle := styles.Key, styles.Resolution, styles.Summary
	gap := " "
	if selected {
		kStyle = styles.WithSelection(kStyle)
		rStyle = styles.WithSelection(rStyle)
		sStyle = styles.WithSelection(sStyle)
		gap = styles.Selected.Render(gap)
	}

	key := fmt.Sprintf("%-*s", keyWidth, truncateString(item.key, keyWidth))
	res := fmt.Sprintf("%-*s", resWidth, truncateString(item.resolution, resWidth))
	summary := truncateString(item.summary, max(width-keyWidth-resWidth-4, 10))

	line := kStyle.Render(key) + gap + rStyle.Render(res) + gap + sStyle.Render(summary)
	if selected {
		return styles.Cursor.Render("▶ ") + line
	}
	return "  " + line
}

// renderInput renders the input section at the bottom
func (m model) renderInput(width int) string {
	var b strings.Builder
	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  %d/%d", len(m.filtered), len(m.items))))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Enter select"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("ESC exit"))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	return b.String()
}

// ============================================================================
// Run TUI
// ============================================================================

// Options configures the browser
type Options struct {
	Label        string
	PublicURL    string
	Sort         string
	InitialQuery string
}

// getTTY returns file handles for TUI input/output
// Uses /dev/tty to bypass shell pipes and command substitution
func getTTY() (in *os.File, out *os.File, cleanup func()) {
	var closers []func()

	// If stdout is captured by $() or a pipe, draw on the terminal instead
	if fd := os.Stdout.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		out, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			out = os.Stderr // Last resort fallback
		} else {
			closers = append(closers, func() { out.Close() })
		}

		in, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
		if err != nil {
			in = os.Stdin
		} else {
			closers = append(closers, func() { in.Close() })
		}

		// Tell lipgloss to use the TTY for color detection
		lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(out))

		return in, out, func() {
			for _, c := range closers {
				c()
			}
		}
	}

	return os.Stdin, os.Stdout, func() {}
}

// Run loads the public issues of b, lets the user pick one and hands its
// public URL to out
func Run(ctx context.Context, b backend.Backend, out *output.Output, opts Options) error {
	sort := opts.Sort
	if sort == "" {
		sort = backend.SortKey
	}
	items, err := loadIssues(ctx, b, opts.Label, sort)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no issues labelled %q found", opts.Label)
	}

	m := newModel(ctx, b, items, opts.PublicURL)
	if opts.InitialQuery != "" {
		m.textInput.SetValue(opts.InitialQuery)
		m.filterIssues()
	}

	ttyIn, ttyOut, cleanup := getTTY()
	styles = DefaultStyles() // Rebuild after getTTY sets up the renderer
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(ttyOut), tea.WithInput(ttyIn), tea.WithContext(ctx))
	finalModel, err := p.Run()
	cleanup()

	if err != nil {
		return err
	}

	result := finalModel.(model)
	if result.selected == nil {
		return nil
	}
	return out.Emit(result.issueURL(result.selected.key))
}

// ============================================================================
// Helpers
// ============================================================================

// clamp restricts v to the range [minV, maxV]
func clamp(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// countLines counts the number of lines in a string
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// scrollWindow calculates the visible range for a scrollable list
func scrollWindow(cursor, total, height int, offset *int) (start, end int) {
	if cursor < *offset {
		*offset = cursor
	}
	if cursor >= *offset+height {
		*offset = cursor - height + 1
	}
	*offset = clamp(*offset, 0, max(0, total-height))

	start = *offset
	end = min(start+height, total)
	return
}

// truncateString truncates a string to maxLen runes with ellipsis
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// splitLines splits text into non-empty trimmed lines
func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
