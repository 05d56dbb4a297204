// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/rinton/internal/llm"
	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/opml"
	"github.com/bryan-buckman/rinton/internal/pipeline"
	"github.com/bryan-buckman/rinton/internal/rss"
	"github.com/bryan-buckman/rinton/internal/todo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxOPMLSize bounds an uploaded OPML document.
const maxOPMLSize = 4 << 20

// Deps holds the components served over HTTP. Feeds, Poller and Responder
// are optional; their routes answer 404 or 503 when unset.
type Deps struct {
	Todos     *todo.Manager
	Feeds     *rss.Fetcher
	Pipelines []*pipeline.Pipeline
	Poller    *pipeline.Poller
	Responder llm.Responder
}

// Server is the main HTTP server.
type Server struct {
	deps      Deps
	pipelines map[string]*pipeline.Pipeline
	router    chi.Router
	now       func() time.Time

	mu   sync.Mutex
	http *http.Server
}

// New creates a new server.
func New(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		pipelines: make(map[string]*pipeline.Pipeline, len(deps.Pipelines)),
		now:       time.Now,
	}
	for _, p := range deps.Pipelines {
		s.pipelines[p.Name()] = p
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/todos", s.handleListTodos)
		r.Post("/todos", s.handleAddTodo)
		r.Delete("/todos/{query}", s.handleRemoveTodo)
		r.Put("/todos/{id}", s.handleEditTodo)
		r.Post("/todo", s.handleTodoCommand)

		r.Get("/feeds", s.handleListFeeds)
		r.Post("/feeds", s.handleAddFeed)
		r.Delete("/feeds", s.handleRemoveFeed)
		r.Post("/feeds/import-opml", s.handleImportOPML)
		r.Get("/feeds/export-opml", s.handleExportOPML)

		r.Post("/poll/{feed}", s.handlePoll)
		r.Post("/ask", s.handleAsk)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the poller and serves until Stop is called.
func (s *Server) Start(addr string) error {
	if s.deps.Poller != nil {
		s.deps.Poller.Start()
	}
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()

	slog.Info("Server starting", "addr", addr, "feeds", len(s.pipelines))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, then stops the poller.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()

	var err error
	if hs != nil {
		err = hs.Shutdown(ctx)
	}
	if s.deps.Poller != nil {
		s.deps.Poller.Stop()
	}
	return err
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Todos.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []todo.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type todoRequest struct {
	Op      string `json:"op"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *Server) handleAddTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := s.deps.Todos.Add(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleRemoveTodo(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Todos.Remove(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEditTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := s.deps.Todos.Edit(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleTodoCommand answers like the chat command: always 200 with text.
func (s *Server) handleTodoCommand(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	reply := s.deps.Todos.Run(r.Context(), req.Op, req.ID, req.Message)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type feedRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	if !s.requireFeeds(w) {
		return
	}
	links, err := s.deps.Feeds.Links(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"feeds": urls})
}

func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	if !s.requireFeeds(w) {
		return
	}
	var req feedRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := s.deps.Feeds.AddLink(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"url": strings.TrimSpace(req.URL), "added": added})
}

func (s *Server) handleRemoveFeed(w http.ResponseWriter, r *http.Request) {
	if !s.requireFeeds(w) {
		return
	}
	var req feedRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Feeds.RemoveLink(r.Context(), req.URL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	if !s.requireFeeds(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxOPMLSize)
	file, _, err := r.FormFile("opml")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := opml.Import(r.Context(), s.deps.Feeds, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	if !s.requireFeeds(w) {
		return
	}
	links, err := s.deps.Feeds.Links(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	entries := make([]opml.FeedEntry, 0, len(links))
	for _, l := range links {
		entries = append(entries, opml.FeedEntry{URL: l.URL})
	}
	data, err := opml.Export("Rinton Feeds", entries, s.now())
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=rinton-feeds.opml")
	_, _ = w.Write(data)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feed")
	p, ok := s.pipelines[name]
	if !ok {
		writeError(w, fmt.Errorf("%w: feed %s", model.ErrNotFound, name))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	res, err := p.RunCycle(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycle_id":  res.ID,
		"feed":      res.Feed,
		"fetched":   res.Fetched,
		"delivered": res.Delivered,
		"failed":    res.Failed,
		"watermark": res.Watermark.Format(model.WatermarkLayout),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Responder == nil {
		http.Error(w, "No language model configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.deps.Responder.Reply(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyPrompt) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Ask failed", "error", err)
		http.Error(w, "Language model request failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// --- Helpers ---

func (s *Server) requireFeeds(w http.ResponseWriter) bool {
	if s.deps.Feeds == nil {
		http.Error(w, "RSS feed is not configured", http.StatusNotFound)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, model.ErrWriteFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrCycleRunning), errors.Is(err, model.ErrLimitReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
