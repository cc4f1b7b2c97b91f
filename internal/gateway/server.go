// Package gateway exposes the assistant over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kopihq/kopi/internal/events"
	"github.com/kopihq/kopi/internal/orchestrator"
	"github.com/kopihq/kopi/internal/outlets"
	"github.com/kopihq/kopi/internal/products"
	"github.com/kopihq/kopi/internal/sessions"
	"github.com/kopihq/kopi/internal/tools"
)

// Options wires the server's collaborators. Orch, Store and Service are
// required; Text2SQL, KB and Bus are optional, their routes answer 503 when
// absent.
type Options struct {
	Orch     *orchestrator.Orchestrator
	Store    *sessions.Store
	Service  *outlets.Service
	Text2SQL tools.OutletQuerier
	KB       tools.ProductAnswerer
	Bus      *events.Bus
	Host     string
	Port     int
	Timeouts tools.Timeouts
}

// Server is the Kopi gateway HTTP server.
type Server struct {
	httpServer *http.Server
	opts       Options
}

// NewServer builds the router and server.
func NewServer(opts Options) *Server {
	if opts.Timeouts.LLM == 0 {
		opts.Timeouts = tools.DefaultTimeouts()
	}
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/events", s.handleEvents)

	r.Get("/api/sessions", s.handleSessions)
	r.Get("/api/sessions/{id}/history", s.handleSessionHistory)
	r.Get("/api/sessions/{id}/stats", s.handleSessionStats)
	r.Delete("/api/sessions/{id}", s.handleSessionDelete)

	r.Get("/api/outlets", s.handleOutlets)
	r.Get("/api/outlets/search", s.handleOutletSearch)
	r.Get("/api/outlets/{area}", s.handleOutletsByArea)

	r.Get("/api/products", s.handleProducts)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}
	return s
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("Kopi gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.opts.Orch.Process(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("chat processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Bus == nil {
		writeJSON(w, http.StatusOK, []events.Event{})
		return
	}
	limit := intQuery(r, "limit", 50)
	history := s.opts.Bus.History(limit)
	if history == nil {
		history = []events.Event{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Store.List())
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.opts.Store.Stats(id); !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	turns := s.opts.Store.Turns(id)
	if turns == nil {
		turns = []sessions.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, ok := s.opts.Store.Stats(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.opts.Store.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.NewEvent(events.EventSessionDeleted, events.SourceGateway, nil, id))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "session_id": id})
}

func (s *Server) handleOutlets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"areas":   s.opts.Service.Areas(),
		"outlets": s.opts.Service.All(),
	})
}

func (s *Server) handleOutletsByArea(w http.ResponseWriter, r *http.Request) {
	area := chi.URLParam(r, "area")
	found := s.opts.Service.ByArea(area)
	if len(found) == 0 {
		writeError(w, http.StatusNotFound, "no outlets in area "+area)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"area": area, "outlets": found})
}

func (s *Server) handleOutletSearch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Text2SQL == nil {
		writeError(w, http.StatusServiceUnavailable, "outlet search is not configured")
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeouts.LLM)
	defer cancel()

	res, err := s.opts.Text2SQL.Query(ctx, query)
	if err != nil {
		if errors.Is(err, outlets.ErrUnsafeSQL) {
			slog.Warn("rejected generated sql", "sql", res.SQL)
			if s.opts.Bus != nil {
				s.opts.Bus.Publish(events.NewEvent(events.EventQueryRejected, events.SourceGateway,
					map[string]any{"sql": res.SQL}, ""))
			}
			writeError(w, http.StatusBadRequest, "query could not be processed")
			return
		}
		slog.Error("outlet search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "outlet search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if s.opts.KB == nil {
		writeError(w, http.StatusServiceUnavailable, "product search is not configured")
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeouts.LLM)
	defer cancel()

	ans, err := s.opts.KB.Query(ctx, query)
	if err != nil {
		if errors.Is(err, products.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, "product knowledge base is not initialized")
			return
		}
		slog.Error("product search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "product search failed")
		return
	}

	if max := intQuery(r, "max_results", 0); max > 0 {
		if len(ans.Products) > max {
			ans.Products = ans.Products[:max]
		}
		if len(ans.Sources) > max {
			ans.Sources = ans.Sources[:max]
		}
	}
	writeJSON(w, http.StatusOK, ans)
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
