// Package http exposes a Storygraph over a JSON API.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
)

//go:embed openapi.yaml
var rawSpec []byte

// PlayerHeader carries the caller's player ID. Absent means anonymous.
const PlayerHeader = "X-Player-ID"

// Service is the slice of the Storygraph facade served over HTTP.
type Service interface {
	StartStory(ctx context.Context, storyID, playerID int64) (domain.NodeView, error)
	MakeChoice(ctx context.Context, req domain.ChoiceRequest) (domain.ChoiceResult, error)
	CurrentNode(ctx context.Context, storyID, playerID int64) (domain.NodeView, error)
	PlayerStats(ctx context.Context, playerID int64) (*domain.Stats, error)
	Validate(ctx context.Context, storyID int64) (domain.ValidationResult, error)
	Mermaid(ctx context.Context, storyID, playerID int64) (string, error)
	ListStories(ctx context.Context, filter ports.StoryFilter) ([]domain.Story, error)
	Categories(ctx context.Context, publishedOnly bool) ([]string, error)
}

// RequestObserver records served requests and exposes them for scraping.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	Handler() http.Handler
}

// Server serves a Service.
type Server struct {
	service Service
	streams *StreamManager
	metrics RequestObserver
	origins []string
	version string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams enables GET /events. The same manager's Hooks must be
// registered on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetrics records request durations and serves GET /metrics.
func WithMetrics(m RequestObserver) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigins sets the allowed origins. Defaults to "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithVersion sets the application version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(service Service, opts ...Option) http.Handler {
	s := &Server{
		service: service,
		origins: []string{"*"},
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/game/start/{story_id}", s.StartStory)
	r.Post("/game/choice", s.MakeChoice)
	r.Get("/game/current/{story_id}", s.CurrentNode)

	r.Get("/stories", s.ListStories)
	r.Get("/stories/categories", s.ListCategories)
	r.Get("/stories/{story_id}/validate", s.ValidateStory)
	r.Get("/stories/{story_id}/graph", s.StoryGraph)

	r.Get("/players/{player_id}/stats", s.PlayerStats)

	if s.streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})

	return s.enableCORS(r)
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+PlayerHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// observe feeds the request observer with the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

// StartStory handles POST /game/start/{story_id}.
func (s *Server) StartStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := s.pathID(w, r, "story_id")
	if !ok {
		return
	}
	playerID, ok := s.playerID(w, r)
	if !ok {
		return
	}

	view, err := s.service.StartStory(r.Context(), storyID, playerID)
	if err != nil {
		s.fail(w, "StartStory", err)
		return
	}
	s.respond(w, http.StatusOK, view)
}

// MakeChoice handles POST /game/choice. The player header, when present,
// takes precedence over user_id in the body.
func (s *Server) MakeChoice(w http.ResponseWriter, r *http.Request) {
	var req domain.ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "Invalid request body", err)
		return
	}
	if req.ChoiceID <= 0 || req.CurrentNodeID <= 0 {
		s.badRequest(w, "current_node_id and choice_id are required", nil)
		return
	}
	if r.Header.Get(PlayerHeader) != "" {
		playerID, ok := s.playerID(w, r)
		if !ok {
			return
		}
		req.PlayerID = playerID
	}

	result, err := s.service.MakeChoice(r.Context(), req)
	if err != nil {
		s.fail(w, "MakeChoice", err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

// CurrentNode handles GET /game/current/{story_id}.
func (s *Server) CurrentNode(w http.ResponseWriter, r *http.Request) {
	storyID, ok := s.pathID(w, r, "story_id")
	if !ok {
		return
	}
	playerID, ok := s.playerID(w, r)
	if !ok {
		return
	}

	view, err := s.service.CurrentNode(r.Context(), storyID, playerID)
	if err != nil {
		s.fail(w, "CurrentNode", err)
		return
	}
	s.respond(w, http.StatusOK, view)
}

// ListStories handles GET /stories.
func (s *Server) ListStories(w http.ResponseWriter, r *http.Request) {
	published, ok := s.publishedParam(w, r)
	if !ok {
		return
	}
	filter := ports.StoryFilter{
		Category:      r.URL.Query().Get("category"),
		PublishedOnly: published,
	}

	stories, err := s.service.ListStories(r.Context(), filter)
	if err != nil {
		s.fail(w, "ListStories", err)
		return
	}
	s.respond(w, http.StatusOK, stories)
}

// ListCategories handles GET /stories/categories.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	published, ok := s.publishedParam(w, r)
	if !ok {
		return
	}

	categories, err := s.service.Categories(r.Context(), published)
	if err != nil {
		s.fail(w, "ListCategories", err)
		return
	}
	s.respond(w, http.StatusOK, categories)
}

// ValidateStory handles GET /stories/{story_id}/validate.
func (s *Server) ValidateStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := s.pathID(w, r, "story_id")
	if !ok {
		return
	}

	result, err := s.service.Validate(r.Context(), storyID)
	if err != nil {
		s.fail(w, "ValidateStory", err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

// StoryGraph handles GET /stories/{story_id}/graph.
func (s *Server) StoryGraph(w http.ResponseWriter, r *http.Request) {
	storyID, ok := s.pathID(w, r, "story_id")
	if !ok {
		return
	}
	playerID, ok := s.playerID(w, r)
	if !ok {
		return
	}

	chart, err := s.service.Mermaid(r.Context(), storyID, playerID)
	if err != nil {
		s.fail(w, "StoryGraph", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, chart)
}

// PlayerStats handles GET /players/{player_id}/stats.
func (s *Server) PlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.pathID(w, r, "player_id")
	if !ok {
		return
	}

	stats, err := s.service.PlayerStats(r.Context(), playerID)
	if err != nil {
		s.fail(w, "PlayerStats", err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if spec, err := LoadSpec(r.Context()); err == nil && spec.Info != nil {
		apiVersion = spec.Info.Version
	}

	s.respond(w, http.StatusOK, map[string]string{
		"app":         "storygraph-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// -- Helpers --

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		s.logger.Warn(msg, "err", err)
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	s.respond(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// fail maps error kinds to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

// StatusFor returns the HTTP status code for an engine error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(w, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func (s *Server) playerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(PlayerHeader)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		s.badRequest(w, "invalid "+PlayerHeader+" header", nil)
		return 0, false
	}
	return id, true
}

func (s *Server) publishedParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("published")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.badRequest(w, "invalid published parameter", nil)
		return false, false
	}
	return v, true
}
