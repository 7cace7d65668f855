// Package backend provides the sources bugview reads issues from: the
// JIRA REST API or a local cache of issue JSON files.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bugview/bugview/internal/config"
	"github.com/bugview/bugview/internal/issue"
)

// ErrNotFound is returned when an issue does not exist
var ErrNotFound = errors.New("issue not found")

// Sort orders for IssueList
const (
	SortKey     = "key"
	SortCreated = "created"
	SortUpdated = "updated"
)

// Backend is a read-only source of issues
type Backend interface {
	// Name identifies the backend in logs
	Name() string
	// IssueList returns one page of issues carrying all of labels
	IssueList(ctx context.Context, labels []string, offset int, sort string) (*issue.SearchResult, error)
	// IssueGet returns a single issue, or ErrNotFound
	IssueGet(ctx context.Context, key string) (*issue.Issue, error)
	// RemoteLinks returns the remote links of the issue with the given ID
	RemoteLinks(ctx context.Context, id string) ([]issue.RemoteLink, error)
}

// New creates the backend selected by the configuration
func New(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "jira":
		return NewJira(cfg.Jira, logger.With("component", "jira")), nil
	case "files":
		return NewFiles(cfg.StoreDir, logger.With("component", "files"))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// checkKey rejects strings that cannot be issue keys
func checkKey(key string) error {
	if !strings.Contains(key, "-") {
		return fmt.Errorf("issue key %q not valid", key)
	}
	return nil
}
