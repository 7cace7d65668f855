package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bugview/bugview/internal/issue"
)

// Files serves issues from a local cache directory laid out as
//
//	<dir>/issue/<id>.json
//	<dir>/remotelink/<id>.json
//
// The summary index is loaded once at creation; full issues are read from
// disk on request.
type Files struct {
	dir    string
	issues map[string]issue.Issue // Summary fields only, keyed by issue key
	keys   []string               // Newest first
	logger *slog.Logger
}

// NewFiles loads the issue index from dir
func NewFiles(dir string, logger *slog.Logger) (*Files, error) {
	f := &Files{
		dir:    dir,
		issues: make(map[string]issue.Issue),
		logger: logger,
	}

	logger.Info("loading issue cache", "dir", dir)

	ids, err := f.listFiles("issue")
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		var is issue.Issue
		found, err := f.readFile("issue", id, &is)
		if err != nil {
			return nil, err
		}
		if !found || is.Key == "" {
			continue
		}
		// Keep only what the index needs; IssueList must match what the
		// JIRA search returns.
		f.issues[is.Key] = issue.Issue{
			ID:  id,
			Key: is.Key,
			Fields: issue.Fields{
				Labels:     is.Fields.Labels,
				Summary:    is.Fields.Summary,
				Resolution: is.Fields.Resolution,
				Created:    is.Fields.Created,
				Updated:    is.Fields.Updated,
			},
		}
		f.keys = append(f.keys, is.Key)
	}

	slices.SortFunc(f.keys, func(a, b string) int {
		return -compareKeys(a, b)
	})

	logger.Info("loading issue cache complete", "dir", dir, "issues", len(f.keys))
	return f, nil
}

// compareKeys orders keys by project, then numerically by issue number
func compareKeys(a, b string) int {
	pa, na, _ := strings.Cut(a, "-")
	pb, nb, _ := strings.Cut(b, "-")
	if c := strings.Compare(pa, pb); c != 0 {
		return c
	}
	ia, _ := strconv.Atoi(na)
	ib, _ := strconv.Atoi(nb)
	return ia - ib
}

func (f *Files) Name() string {
	return "files"
}

// IssueList returns one page of cached issues, newest key first or most
// recently created or updated first
func (f *Files) IssueList(ctx context.Context, labels []string, offset int, sort string) (*issue.SearchResult, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset %d must not be negative", offset)
	}

	var matched []issue.Issue
	for _, key := range f.keys {
		is := f.issues[key]
		if hasAll(is.Fields.Labels, labels) {
			matched = append(matched, is)
		}
	}

	switch sort {
	case SortKey:
	case SortCreated:
		slices.SortStableFunc(matched, func(a, b issue.Issue) int {
			return -compareTimes(a.Fields.Created, b.Fields.Created)
		})
	case SortUpdated:
		slices.SortStableFunc(matched, func(a, b issue.Issue) int {
			return -compareTimes(a.Fields.Updated, b.Fields.Updated)
		})
	default:
		return nil, fmt.Errorf("invalid sort %q", sort)
	}

	start := min(offset, len(matched))
	end := min(offset+issue.PageSize, len(matched))
	return &issue.SearchResult{
		Total:  len(matched),
		Issues: matched[start:end],
	}, nil
}

// compareTimes orders JIRA timestamps; unparseable ones sort first
func compareTimes(a, b string) int {
	ta, _ := issue.ParseTime(a)
	tb, _ := issue.ParseTime(b)
	return ta.Compare(tb)
}

func hasAll(have, want []string) bool {
	for _, label := range want {
		if !slices.Contains(have, label) {
			return false
		}
	}
	return true
}

// IssueGet reads a full issue from the cache
func (f *Files) IssueGet(ctx context.Context, key string) (*issue.Issue, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	summary, ok := f.issues[key]
	if !ok {
		return nil, fmt.Errorf("get issue %q: %w", key, ErrNotFound)
	}

	var is issue.Issue
	found, err := f.readFile("issue", summary.ID, &is)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("get issue %q: %w", key, ErrNotFound)
	}
	if is.Fields.Labels == nil {
		return nil, fmt.Errorf("issue %q did not have expected format", key)
	}
	if is.ID == "" {
		is.ID = summary.ID
	}
	return &is, nil
}

// RemoteLinks reads the remote links of an issue. An issue without a
// remote link file has no links.
func (f *Files) RemoteLinks(ctx context.Context, id string) ([]issue.RemoteLink, error) {
	var raw json.RawMessage
	found, err := f.readFile("remotelink", id, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return []issue.RemoteLink{}, nil
	}

	var links []issue.RemoteLink
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, fmt.Errorf("issue %q remotelink did not have expected format: %w", id, err)
	}
	return links, nil
}

// readFile decodes <dir>/<kind>/<id>.json into out. It reports false if
// the file does not exist.
func (f *Files) readFile(kind, id string, out any) (bool, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == ".." {
		return false, nil
	}
	path := filepath.Join(f.dir, kind, id+".json")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %q: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("could not parse %q: %w", path, err)
	}
	return true, nil
}

// listFiles returns the sorted IDs of the JSON files in <dir>/<kind>
func (f *Files) listFiles(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.dir, kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s files: %w", kind, err)
	}

	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() && id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
