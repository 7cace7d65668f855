package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bugview/bugview/internal/config"
	"github.com/bugview/bugview/internal/issue"
)

const userAgent = "bugview"

// maxResponseSize bounds the JSON we will decode from JIRA
const maxResponseSize = 32 * 1024 * 1024

// Jira reads issues from the JIRA REST API
type Jira struct {
	base     string
	path     string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
}

// NewJira creates a JIRA backend
func NewJira(cfg config.JiraConfig, logger *slog.Logger) *Jira {
	return &Jira{
		base:     strings.TrimRight(cfg.URLBase, "/"),
		path:     cfg.URLPath,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// WithHTTPClient sets a custom HTTP client (useful for testing)
func (j *Jira) WithHTTPClient(c *http.Client) *Jira {
	j.client = c
	return j
}

func (j *Jira) Name() string {
	return "jira"
}

// IssueList runs a JQL search for issues carrying all of labels
func (j *Jira) IssueList(ctx context.Context, labels []string, offset int, sort string) (*issue.SearchResult, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset %d must not be negative", offset)
	}

	clauses := make([]string, len(labels))
	for i, label := range labels {
		clauses[i] = fmt.Sprintf("labels = %q", label)
	}
	jql := strings.Join(clauses, " AND ")

	switch sort {
	case SortCreated, SortUpdated:
		jql += " ORDER BY " + sort + " DESC"
	case SortKey:
	default:
		return nil, fmt.Errorf("invalid sort %q", sort)
	}

	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(issue.PageSize))
	q.Set("startAt", strconv.Itoa(offset))
	q.Set("fields", "summary,resolution,updated,created")
	q.Set("jql", jql)

	j.logger.Info("fetch from JIRA", "jql", jql, "offset", offset)

	var results struct {
		Total  json.Number   `json:"total"`
		Issues []issue.Issue `json:"issues"`
	}
	if err := j.get(ctx, "/search?"+q.Encode(), &results); err != nil {
		return nil, fmt.Errorf("communicating with JIRA: %w", err)
	}
	if results.Issues == nil {
		return nil, fmt.Errorf(`"issues" not an array in response`)
	}

	total, err := results.Total.Int64()
	if err != nil || total <= 0 {
		total = issue.UnknownTotal
	}
	return &issue.SearchResult{Total: int(total), Issues: results.Issues}, nil
}

// IssueGet fetches a single issue
func (j *Jira) IssueGet(ctx context.Context, key string) (*issue.Issue, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	var is issue.Issue
	if err := j.get(ctx, "/issue/"+url.PathEscape(key), &is); err != nil {
		return nil, fmt.Errorf("get issue %q: %w", key, err)
	}
	if is.Key == "" || is.Fields.Labels == nil {
		return nil, fmt.Errorf("issue %q did not have expected format", key)
	}
	return &is, nil
}

// RemoteLinks fetches the remote links of an issue by numeric ID
func (j *Jira) RemoteLinks(ctx context.Context, id string) ([]issue.RemoteLink, error) {
	if strings.Contains(id, "-") {
		return nil, fmt.Errorf("issue ID %q not valid", id)
	}

	var links []issue.RemoteLink
	if err := j.get(ctx, "/issue/"+url.PathEscape(id)+"/remotelink", &links); err != nil {
		return nil, fmt.Errorf("get issue links %q: %w", id, err)
	}
	return links, nil
}

// get performs an authenticated GET below the API path and decodes the
// JSON response into out
func (j *Jira) get(ctx context.Context, rel string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.base+j.path+rel, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(j.username, j.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
