package issue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bugview/bugview/internal/logging"
	"github.com/bugview/bugview/internal/markup"
)

// Formatter renders the public HTML for issues. Markup fields go through
// the markup renderer; every other field is escaped.
type Formatter struct {
	renderer  *markup.Renderer
	whitelist []string
	logger    *slog.Logger
	now       func() time.Time
}

// NewFormatter creates a formatter. A nil logger discards output.
func NewFormatter(renderer *markup.Renderer, whitelist []string, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Formatter{
		renderer:  renderer,
		whitelist: whitelist,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock sets the time used for relative dates (useful for testing)
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	f.now = now
	return f
}

// Title returns the page title for an issue, unescaped
func (f *Formatter) Title(is *Issue) string {
	if is.Fields.Summary == "" {
		return is.Key
	}
	return is.Key + ": " + is.Fields.Summary
}

// isoTime formats t the way the pages always have, in UTC with
// millisecond precision
func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// when renders a timestamp with its relative age, or the raw string when
// it cannot be parsed
func (f *Formatter) when(raw string, format func(iso, rel string) string) string {
	t, ok := ParseTime(raw)
	if !ok {
		return markup.Escape(raw)
	}
	return format(isoTime(t), humanize.RelTime(t, f.now(), "ago", "from now"))
}

// Page renders the body of an issue page
func (f *Formatter) Page(is *Issue, remoteLinks []RemoteLink) string {
	var b strings.Builder
	fields := &is.Fields

	b.WriteString("<h1>" + markup.Escape(f.Title(is)) + "</h1>\n")

	if fields.Resolution != nil {
		b.WriteString("<h2>Resolution</h2>\n")
		b.WriteString("<p><b>" + markup.Escape(fields.Resolution.Name) + ":</b> " +
			markup.Escape(fields.Resolution.Description) + "<br>\n")
		b.WriteString("(Resolution Date: " + f.when(fields.ResolutionDate, func(iso, rel string) string {
			return iso + " - " + rel
		}) + ")</p>\n")
	}

	if len(fields.FixVersions) > 0 {
		b.WriteString("<h2>Fix Versions</h2>\n")
		for _, fv := range fields.FixVersions {
			b.WriteString("<p><b>" + markup.Escape(fv.Name) + "</b>")
			if fv.ReleaseDate != "" {
				b.WriteString(" (Release Date: " + markup.Escape(fv.ReleaseDate) +
					f.when(fv.ReleaseDate, func(_, rel string) string { return " - " + rel }) + ")")
			}
			b.WriteString("</p>\n")
		}
	}

	if links := f.relatedIssues(fields.IssueLinks); len(links) > 0 {
		b.WriteString("<h2>Related Issues</h2>\n")
		b.WriteString("<p><ul>" + strings.Join(links, "\n") + "</ul></p>\n")
	}

	if links := f.relatedLinks(remoteLinks); len(links) > 0 {
		b.WriteString("<h2>Related Links</h2>\n")
		b.WriteString("<p><ul>" + strings.Join(links, "\n") + "</ul></p>\n")
	}

	if fields.Description != "" {
		b.WriteString("<h2>Description</h2>\n")
		b.WriteString("<div>")
		b.WriteString(f.renderer.Format(fields.Description))
		b.WriteString("</div>\n")
	}

	if fields.Comment != nil {
		b.WriteString("<h2>Comments</h2>\n")
		f.writeComments(&b, is.Key, fields.Comment)
	}

	return b.String()
}

func (f *Formatter) relatedIssues(links []IssueLink) []string {
	var out []string
	for _, il := range links {
		if il.OutwardIssue != nil && Allowed(il.OutwardIssue.Key, f.whitelist) {
			out = append(out, issueLinkItem(il.Type.Outward, il.OutwardIssue.Key))
		}
		if il.InwardIssue != nil && Allowed(il.InwardIssue.Key, f.whitelist) {
			out = append(out, issueLinkItem(il.Type.Inward, il.InwardIssue.Key))
		}
	}
	return out
}

func issueLinkItem(relation, key string) string {
	k := markup.Escape(key)
	return "<li>" + markup.Escape(relation) + ` <a href="` + k + `">` + k + "</a></li>"
}

func (f *Formatter) relatedLinks(links []RemoteLink) []string {
	var out []string
	for _, rl := range links {
		if rl.Object.URL == "" {
			continue
		}
		title := rl.Object.Title
		if title == "" {
			title = rl.Object.URL
		}
		out = append(out, `<li><a href="`+f.renderer.Rewriter().Rewrite(rl.Object.URL)+
			`" target="_new">`+markup.Escape(title)+"</a></li>")
	}
	return out
}

func (f *Formatter) writeComments(b *strings.Builder, key string, page *CommentPage) {
	if page.MaxResults != page.Total {
		f.logger.Error("comment maxResults and total not equal for issue",
			"issue", key, "total", page.Total, "maxResults", page.MaxResults)
	}

	dark := false
	for _, com := range page.Comments {
		// Comments with any visibility rule are never public.
		if com.Visibility != nil {
			continue
		}

		background := "#EEEEEE"
		if dark {
			background = "#DDDDDD"
		}
		b.WriteString(`<div style="background-color: ` + background + `;">` + "\n")
		b.WriteString("<b>")
		b.WriteString("Comment by " + markup.Escape(com.Author.DisplayName) + "<br>\n")
		stamp := func(iso, rel string) string { return iso + " (" + rel + ")" }
		b.WriteString("Created at " + f.when(com.Created, stamp) + "<br>\n")
		if com.Updated != "" && com.Updated != com.Created {
			b.WriteString("Updated at " + f.when(com.Updated, stamp) + "<br>\n")
		}
		b.WriteString("</b>")
		b.WriteString(f.renderer.Format(com.Body))
		b.WriteString("</div><br>\n")

		dark = !dark
	}
}

// summaryJSON is the machine-readable form of an issue
type summaryJSON struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	WebURL  string `json:"web_url"`
}

// JSON returns the machine-readable summary of an issue
func (f *Formatter) JSON(is *Issue, publicURL string) ([]byte, error) {
	out, err := json.Marshal(summaryJSON{
		ID:      is.Key,
		Summary: is.Fields.Summary,
		WebURL:  strings.TrimRight(publicURL, "/") + "/" + is.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding issue %s: %w", is.Key, err)
	}
	return out, nil
}

// IndexRows renders the table rows of the issue index
func (f *Formatter) IndexRows(issues []Issue) string {
	var b strings.Builder
	for _, is := range issues {
		resolution := "&nbsp;"
		if is.Fields.Resolution != nil && is.Fields.Resolution.Name != "" {
			resolution = markup.Escape(is.Fields.Resolution.Name)
		}
		key := markup.Escape(is.Key)
		b.WriteString(`<tr><td><a href="` + key + `">` + key + "</a></td><td>" +
			resolution + "</td><td>" + markup.Escape(is.Fields.Summary) + "</td></tr>\n")
	}
	return b.String()
}
