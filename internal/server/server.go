// Package server serves the public issue pages over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/bugview/bugview/internal/backend"
	"github.com/bugview/bugview/internal/issue"
)

//go:embed templates/*.html
var templateFS embed.FS

const stylesheetPath = "://maxcdn.bootstrapcdn.com/bootstrap/3.3.7/css/bootstrap.min.css"

const (
	msgNotFound  = "Sorry, that issue does not exist.\n"
	msgNotPublic = "Sorry, this issue is not public.\n"
)

// Options configures the HTTP service
type Options struct {
	Port      int
	Label     string
	PublicURL string
	SiteTitle string
	HTTPProto string
}

// Server renders issues from a backend as public HTML and JSON
type Server struct {
	opts      Options
	backend   backend.Backend
	formatter *issue.Formatter
	logger    *slog.Logger
	templates *template.Template
}

// New creates a server. The embedded templates are parsed once here.
func New(opts Options, b backend.Backend, f *issue.Formatter, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if opts.HTTPProto == "" {
		opts.HTTPProto = "https"
	}
	return &Server{
		opts:      opts,
		backend:   b,
		formatter: f,
		logger:    logger.With("component", "http"),
		templates: tmpl,
	}, nil
}

// Handler returns the routes of the service. Responses are gzipped for
// clients that accept it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bugview", s.handleRoot)
	mux.HandleFunc("GET /bugview/{$}", s.handleRoot)
	mux.HandleFunc("GET /bugview/index.html", s.handleIndex)
	mux.HandleFunc("GET /bugview/json/{key}", s.handleIssueJSON)
	mux.HandleFunc("GET /bugview/{key}", s.handleIssue)
	return gzhttp.GzipHandler(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", "port", s.opts.Port, "backend", s.backend.Name())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http stopped")
	return nil
}

// requestLogger returns a logger carrying the client details of r
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return s.logger.With(
		"remoteAddress", r.RemoteAddr,
		"userAgent", r.UserAgent(),
		"referrer", r.Referer(),
		"forwardedFor", r.Header.Get("X-Forwarded-For"),
	)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/bugview/index.html", http.StatusFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r).With("issue_index", true)

	offset := issue.NormalizeOffset(r.URL.Query().Get("offset"))
	sort := r.URL.Query().Get("sort")
	switch sort {
	case "", backend.SortKey, backend.SortCreated, backend.SortUpdated:
	default:
		log.Error("invalid sort", "sort", sort)
		writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest)+"\n")
		return
	}
	listSort := sort
	if listSort == "" {
		listSort = backend.SortKey
	}

	log.Info("fetching issue index", "offset", offset, "sort", listSort)
	results, err := s.backend.IssueList(r.Context(), []string{s.opts.Label}, offset, listSort)
	if err != nil {
		log.Error("error fetching issue index", "err", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)+"\n")
		return
	}

	total := results.Total
	if offset > total {
		last := issue.LastPageOffset(total)
		log.Info("redirecting to last page", "offset", offset, "total", total, "redir_offset", last)
		loc := "index.html?offset=" + strconv.Itoa(last)
		if sort != "" {
			loc += "&sort=" + sort
		}
		http.Redirect(w, r, loc, http.StatusFound)
		return
	}

	log.Info("serving issue index", "offset", offset, "total", total)

	var container strings.Builder
	err = s.templates.ExecuteTemplate(&container, "issue_index.html", struct {
		Heading    string
		Rows       template.HTML
		Pagination template.HTML
	}{
		Heading:    s.opts.SiteTitle,
		Rows:       template.HTML(s.formatter.IndexRows(results.Issues)),
		Pagination: template.HTML(issue.Pagination(offset, total, sort)),
	})
	if err != nil {
		log.Error("rendering issue index", "err", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)+"\n")
		return
	}

	s.writePage(w, log, s.opts.SiteTitle+" Index", container.String())
}

func (s *Server) handleIssueJSON(w http.ResponseWriter, r *http.Request) {
	is, log, ok := s.fetchIssue(w, r, false)
	if !ok {
		return
	}

	out, err := s.formatter.JSON(is, s.opts.PublicURL)
	if err != nil {
		log.Error("encoding issue", "err", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)+"\n")
		return
	}

	log.Info("serving issue")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	is, log, ok := s.fetchIssue(w, r, true)
	if !ok {
		return
	}

	var links []issue.RemoteLink
	if is.ID != "" {
		var err error
		links, err = s.backend.RemoteLinks(r.Context(), is.ID)
		if err != nil {
			log.Warn("could not fetch remote links", "err", err)
			links = nil
		}
	}

	log.Info("serving issue")
	s.writePage(w, log, s.formatter.Title(is), s.formatter.Page(is, links))
}

// fetchIssue loads the issue named in the request path and checks that it
// is public. On failure the response has been written and ok is false.
// Friendly messages are used for the HTML page only.
func (s *Server) fetchIssue(w http.ResponseWriter, r *http.Request, friendly bool) (*issue.Issue, *slog.Logger, bool) {
	key := r.PathValue("key")
	log := s.requestLogger(r).With("issue", key)

	fail := func(code int, msg string) {
		if !friendly || msg == "" {
			msg = http.StatusText(code) + "\n"
		}
		writeText(w, code, msg)
	}

	if !issue.ValidKey(key) {
		log.Error("invalid key provided", "key", key)
		fail(http.StatusBadRequest, "")
		return nil, log, false
	}

	is, err := s.backend.IssueGet(r.Context(), key)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		log.Error("could not find issue", "err", err)
		fail(http.StatusNotFound, msgNotFound)
		return nil, log, false
	case err != nil:
		log.Error("error fetching issue", "err", err)
		fail(http.StatusInternalServerError, "")
		return nil, log, false
	}

	if !issue.HasLabel(is, s.opts.Label) {
		log.Error("request for non-public issue")
		fail(http.StatusForbidden, msgNotPublic)
		return nil, log, false
	}
	return is, log, true
}

// writePage wraps content in the primary template and sends it
func (s *Server) writePage(w http.ResponseWriter, log *slog.Logger, title, content string) {
	var out strings.Builder
	err := s.templates.ExecuteTemplate(&out, "primary.html", struct {
		Title      string
		Stylesheet string
		Container  template.HTML
	}{
		Title:      title,
		Stylesheet: s.opts.HTTPProto + stylesheetPath,
		Container:  template.HTML(content),
	})
	if err != nil {
		log.Error("rendering page", "err", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)+"\n")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out.String())
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(msg)))
	w.WriteHeader(code)
	io.WriteString(w, msg)
}
