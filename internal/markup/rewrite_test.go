package markup

import "testing"

func TestRewrite(t *testing.T) {
	rw := NewRewriter(DefaultRewriteRules(), nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "internal host rewritten",
			raw:  "http://mo.joyent.com/illumos-joyent/foo",
			want: "https://github.com/joyent/illumos-joyent/foo",
		},
		{
			name: "second rule matches",
			raw:  "http://mo.joyent.com/smartos-live/commit/abc",
			want: "https://github.com/joyent/smartos-live/commit/abc",
		},
		{
			name: "query escaped after rewrite",
			raw:  "http://mo.joyent.com/sdc-napi/blob?a=1&b=2",
			want: "https://github.com/joyent/sdc-napi/blob?a=1&amp;b=2",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  http://mo.joyent.com/illumos-extra  ",
			want: "https://github.com/joyent/illumos-extra",
		},
		{
			name: "internal host without matching prefix",
			raw:  "http://mo.joyent.com/other/repo",
			want: "http://mo.joyent.com/other/repo",
		},
		{
			name: "unknown host unchanged",
			raw:  "http://example.com/x",
			want: "http://example.com/x",
		},
		{
			name: "unknown host escaped",
			raw:  `http://example.com/?q="a"&b=<c>`,
			want: "http://example.com/?q=&#34;a&#34;&amp;b=&lt;c&gt;",
		},
		{
			name: "unparseable url rendered literally",
			raw:  "http://[::1",
			want: "http://[::1",
		},
		{
			name: "plain words",
			raw:  "not a url",
			want: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rw.Rewrite(tt.raw); got != tt.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRewriteCustomRules(t *testing.T) {
	rw := NewRewriter([]RewriteRule{
		{Host: "Git.Internal", PathPrefix: "/a", NewHost: "mirror.example", NewPathPrefix: "/first", Scheme: "http"},
		{Host: "git.internal", PathPrefix: "/a/b", NewHost: "mirror.example", NewPathPrefix: "/second"},
	}, nil)

	// Rules are tried in table order, so the shorter prefix wins.
	got := rw.Rewrite("https://git.internal/a/b/c")
	want := "http://mirror.example/first/b/c"
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestEscape(t *testing.T) {
	got := Escape(`<a href="x">Tom & Jerry's</a>`)
	want := "&lt;a href=&#34;x&#34;&gt;Tom &amp; Jerry&#39;s&lt;/a&gt;"
	if got != want {
		t.Errorf("Escape() = %q, want %q", got, want)
	}

	if twice := Escape(Escape("&")); twice == Escape("&") {
		t.Errorf("Escape should double-encode, got %q", twice)
	}
}

func TestCanToggleEmphasis(t *testing.T) {
	tests := []struct {
		prev    rune
		atStart bool
		want    bool
	}{
		{0, true, true},
		{' ', false, true},
		{'(', false, true},
		{'3', false, true},
		{'a', false, false},
		{'Z', false, false},
	}

	for _, tt := range tests {
		if got := canToggleEmphasis(tt.prev, tt.atStart); got != tt.want {
			t.Errorf("canToggleEmphasis(%q, %v) = %v, want %v", tt.prev, tt.atStart, got, tt.want)
		}
	}
}
