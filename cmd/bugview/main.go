package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bugview/bugview/internal/backend"
	"github.com/bugview/bugview/internal/browse"
	"github.com/bugview/bugview/internal/config"
	"github.com/bugview/bugview/internal/issue"
	"github.com/bugview/bugview/internal/logging"
	"github.com/bugview/bugview/internal/markup"
	"github.com/bugview/bugview/internal/output"
	"github.com/bugview/bugview/internal/server"
)

var version = "0.2.0"

// configErr holds the outcome of initConfig for commands that need it
var configErr error

var rootCmd = &cobra.Command{
	Use:   "bugview",
	Short: "Public read-only view of tracker issues",
	Long: `Serves the issues carrying a public label as HTML and JSON pages,
converting the tracker's wiki markup to HTML.

Issues come from the JIRA REST API or a local directory of cached
issue JSON files.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render wiki markup to HTML",
	Long: `Renders a wiki markup document to HTML on stdout, using the configured
markup options and link rewrite rules.

Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse public issues in the terminal",
	Long: `Lists the public issues of the configured backend. Type to filter,
press Enter to print, copy or open the issue's public URL.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd, renderCmd, browseCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: search ~/.config/bugview, ~, .)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json")
	rootCmd.PersistentFlags().String("store", "", "Serve issues from a cache directory instead of JIRA")

	serveCmd.Flags().IntP("port", "p", 0, "HTTP listen port")

	renderCmd.Flags().String("highlight-style", "", "Chroma style for {code} blocks (empty disables highlighting)")

	browseCmd.Flags().StringP("output", "o", "", "Output mode: print, copy, open")
	browseCmd.Flags().Bool("print", false, "Print URL (shorthand for -o print)")
	browseCmd.Flags().Bool("copy", false, "Copy URL (shorthand for -o copy)")
	browseCmd.Flags().Bool("open", false, "Open URL in a browser (shorthand for -o open)")
	browseCmd.Flags().StringP("query", "q", "", "Initial search query")
	browseCmd.Flags().String("sort", backend.SortKey, "Order: key, created, updated")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("markup.highlight_style", renderCmd.Flags().Lookup("highlight-style"))
	viper.BindPFlag("output", browseCmd.Flags().Lookup("output"))
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.Init(path); err != nil {
		configErr = err
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	}
}

// setup finishes configuration for a command and returns its logger
func setup(cmd *cobra.Command, logOut io.Writer) (*slog.Logger, error) {
	if configErr != nil {
		return nil, configErr
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		config.SetStoreDir(store)
	}
	return logging.New(logOut, config.GetLogLevel(), config.GetLogFormat())
}

// newRenderer builds the markup renderer from the configuration
func newRenderer(logger *slog.Logger) *markup.Renderer {
	rewriter := markup.NewRewriter(config.RewriteRules(), logger.With("component", "rewrite"))
	return markup.NewRenderer(config.MarkupOptions(), rewriter)
}

// newBackend validates the configuration and opens the selected backend
func newBackend(logger *slog.Logger) (backend.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return backend.New(&config.C, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := setup(cmd, os.Stdout)
	if err != nil {
		return err
	}

	b, err := newBackend(logger)
	if err != nil {
		return err
	}

	formatter := issue.NewFormatter(newRenderer(logger), config.C.LinkWhitelist, logger.With("component", "format"))
	srv, err := server.New(server.Options{
		Port:      config.GetPort(),
		Label:     config.GetLabel(),
		PublicURL: config.GetPublicURL(),
		SiteTitle: config.C.SiteTitle,
		HTTPProto: config.C.HTTPProto,
	}, b, formatter, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "version", version, "backend", b.Name(), "label", config.GetLabel())
	return srv.ListenAndServe(ctx)
}

func runRender(cmd *cobra.Command, args []string) error {
	logger, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("error opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	_, err = io.WriteString(cmd.OutOrStdout(), newRenderer(logger).Format(string(doc)))
	return err
}

func runBrowse(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; keep logs off it unless asked for.
	logger, err := setup(cmd, io.Discard)
	if err != nil {
		return err
	}

	// Handle output mode flags
	if p, _ := cmd.Flags().GetBool("print"); p {
		config.SetOutput("print")
	} else if c, _ := cmd.Flags().GetBool("copy"); c {
		config.SetOutput("copy")
	} else if o, _ := cmd.Flags().GetBool("open"); o {
		config.SetOutput("open")
	}
	if _, err := output.ParseMode(config.GetOutput()); err != nil {
		return err
	}

	b, err := newBackend(logger)
	if err != nil {
		return err
	}

	query, _ := cmd.Flags().GetString("query")
	sort, _ := cmd.Flags().GetString("sort")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return browse.Run(ctx, b, output.New(), browse.Options{
		Label:        config.GetLabel(),
		PublicURL:    config.GetPublicURL(),
		Sort:         sort,
		InitialQuery: query,
	})
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
