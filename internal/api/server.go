// Package api exposes the moderation service over HTTP: the check endpoint
// called by platform bots, the banned word/phrase administration endpoints,
// per-user violation lookups, the audit query, and a WebSocket stream of
// flagged decisions for moderator dashboards.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/wavestack/automod/internal/audit"
	"github.com/wavestack/automod/internal/config"
	"github.com/wavestack/automod/internal/metrics"
	"github.com/wavestack/automod/internal/moderation"
	"github.com/wavestack/automod/internal/ratelimit"
)

// ServiceName and ServiceVersion identify the service in the info endpoint.
const (
	ServiceName    = "wavestack-auto-mod"
	ServiceVersion = "1.0.0"
)

// Server is the moderation HTTP API.
type Server struct {
	cfg     config.Config
	engine  *moderation.Engine
	limiter *ratelimit.Limiter
	rule    ratelimit.Rule
	audit   *audit.Store // nil when auditing is disabled
	hub     *StreamHub

	// OnFlagged, when set, is called for every decision that carries at
	// least one violation (after the response is built). The service wires
	// audit persistence and the dashboard stream through it so the HTTP and
	// NATS paths share one sink.
	OnFlagged func(req moderation.Request, decision moderation.Decision)

	httpServer *http.Server
}

// NewServer builds the API server. limiter and auditStore may be nil to
// disable rate limiting and audit queries respectively.
func NewServer(cfg config.Config, engine *moderation.Engine, limiter *ratelimit.Limiter, auditStore *audit.Store, hub *StreamHub) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		limiter: limiter,
		rule:    ratelimit.CheckRule(cfg.RateLimitCount, cfg.RateLimitWindow),
		audit:   auditStore,
		hub:     hub,
	}
}

// Handler returns the routed HTTP handler. Exposed separately from Start so
// tests can drive the API through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/moderate/check", s.handleCheck)
	mux.HandleFunc("POST /api/v1/moderate/filter/add-word", s.handleAddWord)
	mux.HandleFunc("POST /api/v1/moderate/filter/add-phrase", s.handleAddPhrase)
	mux.HandleFunc("DELETE /api/v1/moderate/filter/remove-word", s.handleRemoveWord)
	mux.HandleFunc("GET /api/v1/moderate/filter/words", s.handleListWords)
	mux.HandleFunc("GET /api/v1/moderate/violations/{user_id}", s.handleGetViolations)
	mux.HandleFunc("DELETE /api/v1/moderate/violations/{user_id}", s.handleClearViolations)
	mux.HandleFunc("GET /api/v1/moderate/audit/recent", s.handleAuditRecent)

	if s.hub != nil {
		mux.HandleFunc("GET /api/v1/moderate/stream", s.hub.HandleUpgrade)
	}

	return mux
}

// Start begins serving the API and blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Handler(),
	}

	log.Printf("[api] listening on %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req moderation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if s.limiter != nil && s.cfg.RateLimitEnabled {
		allowed, _ := s.limiter.Allow(r.Context(), req.UserID, s.rule)
		if !allowed {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	decision := s.engine.ModerateMessage(r.Context(), req)

	if len(decision.Violations) > 0 && s.OnFlagged != nil {
		s.OnFlagged(req, decision)
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleAddWord(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if word == "" {
		http.Error(w, "word is required", http.StatusBadRequest)
		return
	}
	s.engine.Filter().AddBannedWord(word)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Added %q to banned words", word),
	})
}

func (s *Server) handleAddPhrase(w http.ResponseWriter, r *http.Request) {
	phrase := r.URL.Query().Get("phrase")
	if phrase == "" {
		http.Error(w, "phrase is required", http.StatusBadRequest)
		return
	}
	s.engine.Filter().AddBannedPhrase(phrase)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Added %q to banned phrases", phrase),
	})
}

func (s *Server) handleRemoveWord(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if word == "" {
		http.Error(w, "word is required", http.StatusBadRequest)
		return
	}
	s.engine.Filter().RemoveBannedWord(word)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Removed %q from banned words", word),
	})
}

func (s *Server) handleListWords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"banned_words": s.engine.Filter().BannedWords(),
	})
}

func (s *Server) handleGetViolations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	count, err := s.engine.UserViolations(r.Context(), userID)
	if err != nil {
		log.Printf("[api] violation count failed user=%s: %v", userID, err)
		http.Error(w, "violation lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"violation_count": count,
	})
}

func (s *Server) handleClearViolations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	if err := s.engine.ClearUserViolations(r.Context(), userID); err != nil {
		log.Printf("[api] violation clear failed user=%s: %v", userID, err)
		http.Error(w, "violation clear failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Cleared violations for user " + userID,
	})
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit log disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := s.audit.Recent(ctx, limit)
	if err != nil {
		log.Printf("[api] audit query failed: %v", err)
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": ServiceVersion,
		"status":  "running",
		"features": []string{
			"toxicity_detection",
			"spam_detection",
			"banned_words_filter",
			"link_safety",
			"ai_contextual_moderation",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}
