package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bugview/bugview/internal/markup"
)

// Config holds the application configuration
type Config struct {
	Port          int           `mapstructure:"port"`
	HTTPProto     string        `mapstructure:"http_proto"`
	Label         string        `mapstructure:"label"`
	LinkWhitelist []string      `mapstructure:"link_whitelist"`
	PublicURL     string        `mapstructure:"public_url"`
	SiteTitle     string        `mapstructure:"site_title"`
	Backend       string        `mapstructure:"backend"`
	StoreDir      string        `mapstructure:"store_dir"`
	Jira          JiraConfig    `mapstructure:"jira"`
	Markup        MarkupConfig  `mapstructure:"markup"`
	Rewrite       []RewriteRule `mapstructure:"rewrite"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	Output        string        `mapstructure:"output"`
}

// JiraConfig holds the connection settings for the JIRA REST API
type JiraConfig struct {
	URLBase  string        `mapstructure:"url_base"`
	URLPath  string        `mapstructure:"url_path"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MarkupConfig holds the markup renderer options
type MarkupConfig struct {
	QuoteFence      bool   `mapstructure:"quote_fence"`
	CloseOpenBlocks bool   `mapstructure:"close_open_blocks"`
	HighlightStyle  string `mapstructure:"highlight_style"`
}

// RewriteRule maps links on an internal host to a public mirror
type RewriteRule struct {
	Host          string `mapstructure:"host"`
	PathPrefix    string `mapstructure:"path_prefix"`
	NewHost       string `mapstructure:"new_host"`
	NewPathPrefix string `mapstructure:"new_path_prefix"`
	Scheme        string `mapstructure:"scheme"`
}

// C is the global config instance
var C Config

// Init initializes configuration with viper. An empty path searches the
// default locations; a missing config file is not an error.
func Init(path string) error {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("bugview")
		viper.SetConfigType("yaml")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bugview"))
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("BUGVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	C = Config{}
	if err := viper.Unmarshal(&C); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_proto", "https")
	viper.SetDefault("label", "public")
	viper.SetDefault("link_whitelist", []string{})
	viper.SetDefault("public_url", "https://smartos.org/bugview")
	viper.SetDefault("site_title", "SmartOS Public Issues")
	viper.SetDefault("backend", "jira")
	viper.SetDefault("store_dir", "")
	viper.SetDefault("jira.url_base", "")
	viper.SetDefault("jira.url_path", "/rest/api/2")
	viper.SetDefault("jira.username", "")
	viper.SetDefault("jira.password", "")
	viper.SetDefault("jira.timeout", 15*time.Second)
	viper.SetDefault("markup.quote_fence", true)
	viper.SetDefault("markup.close_open_blocks", true)
	viper.SetDefault("markup.highlight_style", "")
	viper.SetDefault("rewrite", defaultRewrite())
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("output", "print")
}

func defaultRewrite() []map[string]any {
	var out []map[string]any
	for _, rule := range markup.DefaultRewriteRules() {
		out = append(out, map[string]any{
			"host":            rule.Host,
			"path_prefix":     rule.PathPrefix,
			"new_host":        rule.NewHost,
			"new_path_prefix": rule.NewPathPrefix,
		})
	}
	return out
}

// Validate checks that the settings required by the selected backend are
// present
func Validate() error {
	if C.Label == "" {
		return fmt.Errorf("config: label is required")
	}
	if C.Port <= 0 || C.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", C.Port)
	}

	switch C.Backend {
	case "jira":
		required := []struct{ key, value string }{
			{"jira.url_base", C.Jira.URLBase},
			{"jira.url_path", C.Jira.URLPath},
			{"jira.username", C.Jira.Username},
			{"jira.password", C.Jira.Password},
		}
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("config: %s is required for the jira backend", r.key)
			}
		}
	case "files":
		if C.StoreDir == "" {
			return fmt.Errorf("config: store_dir is required for the files backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (supported: jira, files)", C.Backend)
	}

	for i, rule := range C.Rewrite {
		if rule.Host == "" || rule.NewHost == "" {
			return fmt.Errorf("config: rewrite[%d] needs host and new_host", i)
		}
	}
	return nil
}

// RewriteRules returns the link rewrite table for the markup renderer
func RewriteRules() []markup.RewriteRule {
	rules := make([]markup.RewriteRule, 0, len(C.Rewrite))
	for _, r := range C.Rewrite {
		rules = append(rules, markup.RewriteRule{
			Host:          r.Host,
			PathPrefix:    r.PathPrefix,
			NewHost:       r.NewHost,
			NewPathPrefix: r.NewPathPrefix,
			Scheme:        r.Scheme,
		})
	}
	return rules
}

// MarkupOptions returns the renderer options
func MarkupOptions() markup.Options {
	return markup.Options{
		QuoteFence:      C.Markup.QuoteFence,
		CloseOpenBlocks: C.Markup.CloseOpenBlocks,
		HighlightStyle:  C.Markup.HighlightStyle,
	}
}

// GetPort returns the HTTP listen port
func GetPort() int {
	return viper.GetInt("port")
}

// GetLabel returns the label that marks an issue as public
func GetLabel() string {
	return viper.GetString("label")
}

// GetPublicURL returns the public base URL of the issue pages
func GetPublicURL() string {
	return strings.TrimRight(viper.GetString("public_url"), "/")
}

// GetLogLevel returns the log level name
func GetLogLevel() string {
	return viper.GetString("log_level")
}

// GetLogFormat returns the log handler format
func GetLogFormat() string {
	return viper.GetString("log_format")
}

// GetOutput returns the browse output mode
func GetOutput() string {
	return viper.GetString("output")
}

// SetOutput sets output mode at runtime
func SetOutput(mode string) {
	viper.Set("output", mode)
	C.Output = mode
}

// SetStoreDir switches to the files backend with the given directory
func SetStoreDir(dir string) {
	viper.Set("backend", "files")
	viper.Set("store_dir", dir)
	C.Backend = "files"
	C.StoreDir = dir
}
