package browse

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/junegunn/fzf/src/util"

	"github.com/bugview/bugview/internal/backend"
	"github.com/bugview/bugview/internal/issue"
)

// pagedBackend serves total generated issues
type pagedBackend struct {
	total int
	calls int
}

func (p *pagedBackend) Name() string { return "paged" }

func (p *pagedBackend) IssueList(_ context.Context, labels []string, offset int, sort string) (*issue.SearchResult, error) {
	p.calls++
	res := &issue.SearchResult{Total: p.total}
	for i := offset; i < min(offset+issue.PageSize, p.total); i++ {
		res.Issues = append(res.Issues, issue.Issue{
			Key:    fmt.Sprintf("OS-%d", i+1),
			Fields: issue.Fields{Summary: "issue", Labels: labels},
		})
	}
	return res, nil
}

func (p *pagedBackend) IssueGet(_ context.Context, key string) (*issue.Issue, error) {
	if key == "OS-404" {
		return nil, fmt.Errorf("get %s: %w", key, backend.ErrNotFound)
	}
	return &issue.Issue{Key: key, Fields: issue.Fields{Description: "line one\n\nline two"}}, nil
}

func (p *pagedBackend) RemoteLinks(context.Context, string) ([]issue.RemoteLink, error) {
	return nil, nil
}

func testItems() []issueItem {
	return []issueItem{
		newIssueItem(issue.Issue{Key: "OS-1", Fields: issue.Fields{Summary: "zfs panic on import", Resolution: &issue.Resolution{Name: "Fixed"}}}),
		newIssueItem(issue.Issue{Key: "OS-2", Fields: issue.Fields{Summary: "bhyve boot hang"}}),
		newIssueItem(issue.Issue{Key: "IPD-3", Fields: issue.Fields{Summary: "ZFS send streams", Resolution: &issue.Resolution{Name: "Won't Fix"}}}),
	}
}

func keys(items []issueItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.key)
	}
	return out
}

func TestMatchesQuery(t *testing.T) {
	item := testItems()[0]

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty", "", true},
		{"key", "os-1", true},
		{"summary word", "panic", true},
		{"resolution", "fixed", true},
		{"all words", "zfs import", true},
		{"fuzzy", "zpanic", true},
		{"case folded", "ZFS", true},
		{"one word missing", "zfs bhyve", false},
		{"out of order", "cinap", false},
	}

	slab := util.MakeSlab(16*1024, 2048)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := item.matchesQuery(queryWords(tt.query), slab); got != tt.want {
				t.Errorf("matchesQuery(%q) = %v, expected %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFilterIssues(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"OS-1", "OS-2", "IPD-3"}},
		{"zfs", []string{"OS-1", "IPD-3"}},
		{"ZFS Fix", []string{"OS-1", "IPD-3"}},
		{"won't", []string{"IPD-3"}},
		{"zpanic", []string{"OS-1"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m := newModel(context.Background(), nil, testItems(), "https://example.com/bugview")
			m.textInput.SetValue(tt.query)
			m.filterIssues()
			if diff := cmp.Diff(tt.want, keys(m.filtered)); diff != "" {
				t.Errorf("filtered keys (-want +got):\n%s", diff)
			}
			if m.cursor != 0 {
				t.Errorf("expected cursor 0, got %d", m.cursor)
			}
		})
	}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestNavigationAndSelect(t *testing.T) {
	m := newModel(context.Background(), nil, testItems(), "https://example.com/bugview/")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Fatalf("expected cursor clamped at 2, got %d", m.cursor)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.cursor)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.selected == nil || m.selected.key != "OS-2" {
		t.Fatalf("expected OS-2 selected, got %+v", m.selected)
	}
	if got := m.issueURL(m.selected.key); got != "https://example.com/bugview/OS-2" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestEscQuitsWithoutSelection(t *testing.T) {
	m := newModel(context.Background(), nil, testItems(), "")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil || !m.quitting || m.selected != nil {
		t.Errorf("expected quit without selection, got quitting=%v selected=%v", m.quitting, m.selected)
	}
	if m.View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestEnterOnEmptyList(t *testing.T) {
	m := newModel(context.Background(), nil, nil, "")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.selected != nil {
		t.Error("expected enter on an empty list to do nothing")
	}
}

func TestTypingDebouncesFilter(t *testing.T) {
	m := newModel(context.Background(), nil, testItems(), "")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("bhyve")})
	if cmd == nil {
		t.Fatal("expected debounce command")
	}
	if len(m.filtered) != 3 {
		t.Errorf("expected filtering to wait for debounce, got %d items", len(m.filtered))
	}
	m, _ = update(t, m, filterMsg{})
	if diff := cmp.Diff([]string{"OS-2"}, keys(m.filtered)); diff != "" {
		t.Errorf("filtered keys (-want +got):\n%s", diff)
	}
}

func TestLoadIssues(t *testing.T) {
	tests := []struct {
		total     int
		wantCalls int
	}{
		{0, 1},
		{3, 1},
		{50, 1},
		{120, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.total), func(t *testing.T) {
			b := &pagedBackend{total: tt.total}
			items, err := loadIssues(context.Background(), b, "public", backend.SortKey)
			if err != nil {
				t.Fatalf("loadIssues() error: %v", err)
			}
			if len(items) != tt.total {
				t.Errorf("expected %d items, got %d", tt.total, len(items))
			}
			if b.calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, b.calls)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	b := &pagedBackend{}
	items := []issueItem{
		newIssueItem(issue.Issue{Key: "OS-1", Fields: issue.Fields{Summary: "first", Created: "2020-01-01T10:00:00.000+0000"}}),
		newIssueItem(issue.Issue{Key: "OS-404", Fields: issue.Fields{Summary: "gone"}}),
	}
	m := newModel(context.Background(), b, items, "https://example.com/bugview")
	m.now = func() time.Time { return time.Date(2020, 1, 4, 10, 0, 0, 0, time.UTC) }

	cmd := m.fetchPreview()
	if cmd == nil {
		t.Fatal("expected preview fetch")
	}
	if m.fetchPreview() != nil {
		t.Error("expected no second fetch while loading")
	}
	if !strings.Contains(m.renderPreview(80), "Loading...") {
		t.Error("expected loading placeholder")
	}

	m, _ = update(t, m, cmd())
	got := m.renderPreview(80)
	for _, want := range []string{"OS-1: first", "created 3 days ago", "https://example.com/bugview/OS-1", "line one", "line two"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected preview to contain %q, got:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "\n"); n != previewLines+1 {
		t.Errorf("expected %d preview lines, got %d", previewLines+1, n)
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if cmd == nil {
		t.Fatal("expected preview fetch after moving")
	}
	m, _ = update(t, m, cmd())
	if got := m.renderPreview(80); !strings.Contains(got, "Issue no longer exists.") {
		t.Errorf("expected not found message, got:\n%s", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer summary", 10, "a longe..."},
		{"ünïcödé text", 8, "ünïcö..."},
		{"tiny", 3, "tiny"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := truncateString(tt.in, tt.max); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, expected %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestScrollWindow(t *testing.T) {
	tests := []struct {
		name                      string
		cursor, total, height     int
		offset                    int
		wantStart, wantEnd, wantO int
	}{
		{"fits", 2, 5, 10, 0, 0, 5, 0},
		{"scroll down", 12, 20, 10, 0, 3, 13, 3},
		{"scroll up", 1, 20, 10, 5, 1, 11, 1},
		{"clamped", 19, 20, 10, 15, 10, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset := tt.offset
			start, end := scrollWindow(tt.cursor, tt.total, tt.height, &offset)
			if start != tt.wantStart || end != tt.wantEnd || offset != tt.wantO {
				t.Errorf("got (%d, %d, offset %d), expected (%d, %d, offset %d)",
					start, end, offset, tt.wantStart, tt.wantEnd, tt.wantO)
			}
		})
	}
}
