package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/bugview/bugview/internal/markup"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bugview.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, "backend: files\nstore_dir: /var/cache/issues\n")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	if C.Port != 8080 || C.Label != "public" || C.Jira.Timeout != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", C)
	}
	if !C.Markup.QuoteFence || !C.Markup.CloseOpenBlocks {
		t.Errorf("markup defaults not applied: %+v", C.Markup)
	}
	if diff := cmp.Diff(markup.DefaultRewriteRules(), RewriteRules()); diff != "" {
		t.Errorf("default rewrite rules (-want +got):\n%s", diff)
	}
	if err := Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestInitFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
port: 9090
label: smartos
link_whitelist: [OS, TRITON]
public_url: https://example.org/bugview/
jira:
  url_base: https://jira.example.org
  username: bot
  password: secret
  timeout: 30s
markup:
  quote_fence: false
  highlight_style: github
rewrite:
  - host: git.internal
    path_prefix: /repo
    new_host: github.com
    new_path_prefix: /org/repo
    scheme: https
`)
	t.Setenv("BUGVIEW_LABEL", "override")

	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	if C.Port != 9090 || GetPort() != 9090 {
		t.Errorf("port = %d", C.Port)
	}
	if C.Label != "override" {
		t.Errorf("label = %q, want env override", C.Label)
	}
	if diff := cmp.Diff([]string{"OS", "TRITON"}, C.LinkWhitelist); diff != "" {
		t.Errorf("whitelist (-want +got):\n%s", diff)
	}
	if GetPublicURL() != "https://example.org/bugview" {
		t.Errorf("public url = %q", GetPublicURL())
	}
	if C.Jira.Timeout != 30*time.Second || C.Jira.URLPath != "/rest/api/2" {
		t.Errorf("jira = %+v", C.Jira)
	}

	wantOpts := markup.Options{CloseOpenBlocks: true, HighlightStyle: "github"}
	if MarkupOptions() != wantOpts {
		t.Errorf("MarkupOptions() = %+v, want %+v", MarkupOptions(), wantOpts)
	}

	wantRules := []markup.RewriteRule{{
		Host: "git.internal", PathPrefix: "/repo", NewHost: "github.com",
		NewPathPrefix: "/org/repo", Scheme: "https",
	}}
	if diff := cmp.Diff(wantRules, RewriteRules()); diff != "" {
		t.Errorf("rewrite rules (-want +got):\n%s", diff)
	}
	if err := Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestInitMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if err := Init(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Port:    8080,
		Label:   "public",
		Backend: "jira",
		Jira: JiraConfig{
			URLBase: "https://jira", URLPath: "/rest/api/2",
			Username: "u", Password: "p",
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid jira", func(c *Config) {}, false},
		{"missing password", func(c *Config) { c.Jira.Password = "" }, true},
		{"missing label", func(c *Config) { c.Label = "" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"files without dir", func(c *Config) { c.Backend = "files" }, true},
		{"files with dir", func(c *Config) { c.Backend = "files"; c.StoreDir = "/tmp" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }, true},
		{"incomplete rewrite rule", func(c *Config) { c.Rewrite = []RewriteRule{{Host: "a"}} }, true},
	}

	saved := C
	t.Cleanup(func() { C = saved })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			C = base
			tt.mutate(&C)
			err := Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
