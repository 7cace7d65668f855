package markup

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/bugview/bugview/internal/logging"
)

// RewriteRule redirects links on an internal host to a public mirror
type RewriteRule struct {
	Host          string // Internal hostname the rule applies to
	PathPrefix    string // Path prefix to match
	NewHost       string // Public hostname
	NewPathPrefix string // Replacement for PathPrefix
	Scheme        string // Scheme of the rewritten URL, "https" when empty
}

// DefaultRewriteRules returns the rules for the internal source browser,
// whose repositories are mirrored on GitHub
func DefaultRewriteRules() []RewriteRule {
	var rules []RewriteRule
	for _, repo := range []string{"illumos-joyent", "smartos-live", "illumos-extra", "sdc-napi"} {
		rules = append(rules, RewriteRule{
			Host:          "mo.joyent.com",
			PathPrefix:    "/" + repo,
			NewHost:       "github.com",
			NewPathPrefix: "/joyent/" + repo,
		})
	}
	return rules
}

// Rewriter maps link targets found in markup to public URLs. It is
// immutable once built and safe for concurrent use.
type Rewriter struct {
	rules  map[string][]RewriteRule
	logger *slog.Logger
}

// NewRewriter builds a Rewriter from an ordered rule table. Rules for the
// same host are tried in the order given. A nil logger discards output.
func NewRewriter(rules []RewriteRule, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = logging.Discard()
	}
	byHost := make(map[string][]RewriteRule)
	for _, rule := range rules {
		host := strings.ToLower(rule.Host)
		byHost[host] = append(byHost[host], rule)
	}
	return &Rewriter{rules: byHost, logger: logger}
}

// Rewrite returns the escaped href for a raw link target. Targets that do
// not parse are rendered literally.
func (r *Rewriter) Rewrite(raw string) string {
	out := strings.TrimSpace(raw)

	u, err := url.Parse(out)
	if err != nil {
		r.logger.Debug("url parse error", "url", out, "error", err)
		return Escape(out)
	}

	for _, rule := range r.rules[strings.ToLower(u.Hostname())] {
		if !strings.HasPrefix(u.Path, rule.PathPrefix) {
			continue
		}
		rewritten := *u
		rewritten.Host = rule.NewHost
		rewritten.Path = rule.NewPathPrefix + strings.TrimPrefix(u.Path, rule.PathPrefix)
		rewritten.RawPath = ""
		rewritten.Scheme = rule.Scheme
		if rewritten.Scheme == "" {
			rewritten.Scheme = "https"
		}
		return Escape(rewritten.String())
	}

	return Escape(out)
}

// isAbsoluteURL reports whether s parses as a URL with a scheme and host
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && u.Scheme != "" && u.Host != ""
}
