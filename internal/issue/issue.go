// Package issue models issues as returned by the JIRA REST API and renders
// the public pages built from them.
package issue

import (
	"regexp"
	"slices"
	"time"
)

// Issue is a single tracker issue
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// Fields holds the issue fields bugview reads
type Fields struct {
	Summary        string       `json:"summary"`
	Labels         []string     `json:"labels"`
	Resolution     *Resolution  `json:"resolution,omitempty"`
	ResolutionDate string       `json:"resolutiondate,omitempty"`
	FixVersions    []FixVersion `json:"fixVersions,omitempty"`
	IssueLinks     []IssueLink  `json:"issuelinks,omitempty"`
	Description    string       `json:"description,omitempty"`
	Comment        *CommentPage `json:"comment,omitempty"`
	Created        string       `json:"created,omitempty"`
	Updated        string       `json:"updated,omitempty"`
}

// Resolution is how an issue was closed
type Resolution struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FixVersion is a release that carries the fix
type FixVersion struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate"`
}

// IssueLink relates this issue to another. Exactly one of InwardIssue and
// OutwardIssue is set.
type IssueLink struct {
	Type         LinkType     `json:"type"`
	InwardIssue  *LinkedIssue `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssue `json:"outwardIssue,omitempty"`
}

// LinkType names a relation and its two directions
type LinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// LinkedIssue is the far end of an IssueLink
type LinkedIssue struct {
	Key string `json:"key"`
}

// CommentPage is the (possibly truncated) list of comments on an issue
type CommentPage struct {
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// Comment is one comment on an issue
type Comment struct {
	Author     User        `json:"author"`
	Body       string      `json:"body"`
	Created    string      `json:"created"`
	Updated    string      `json:"updated"`
	Visibility *Visibility `json:"visibility,omitempty"`
}

// User is a tracker account
type User struct {
	DisplayName string `json:"displayName"`
}

// Visibility restricts a comment to a group or role
type Visibility struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RemoteLink is a link from an issue to an external resource
type RemoteLink struct {
	ID     int          `json:"id"`
	Object RemoteObject `json:"object"`
}

// RemoteObject is the target of a RemoteLink
type RemoteObject struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SearchResult is one page of an issue search
type SearchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

var (
	keyRegex     = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)
	projectRegex = regexp.MustCompile(`^([A-Z]+)-[0-9]+`)
)

// ValidKey reports whether key looks like PROJECT-123
func ValidKey(key string) bool {
	return keyRegex.MatchString(key)
}

// HasLabel reports whether the issue carries label
func HasLabel(is *Issue, label string) bool {
	return is != nil && slices.Contains(is.Fields.Labels, label)
}

// Allowed reports whether a linked issue may be shown. The labels of a
// linked issue are unknown, so links are only shown for projects in the
// whitelist.
func Allowed(key string, whitelist []string) bool {
	m := projectRegex.FindStringSubmatch(key)
	if m == nil {
		return false
	}
	return slices.Contains(whitelist, m[1])
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	"2006-01-02",
}

// ParseTime parses the timestamp formats used by JIRA
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
