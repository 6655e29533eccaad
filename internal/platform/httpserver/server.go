package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	votingengine "animevote/contexts/anime-voting/voting-engine"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	votingerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	votinghttp "animevote/contexts/anime-voting/voting-engine/transport/http"
	_ "animevote/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	defaultStorageTimeout = 5 * time.Second
	maxRequestBodyBytes   = 1 << 20
)

type Options struct {
	Addr           string
	Verifier       TokenVerifier
	Metrics        http.Handler
	StorageTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	mux            *http.ServeMux
	http           *http.Server
	logger         *slog.Logger
	addr           string
	voting         votingengine.Module
	verifier       TokenVerifier
	metrics        http.Handler
	storageTimeout time.Duration
}

func New(voting votingengine.Module, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	storageTimeout := opts.StorageTimeout
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}

	s := &Server{
		mux:            http.NewServeMux(),
		logger:         logger,
		addr:           addr,
		voting:         voting,
		verifier:       opts.Verifier,
		metrics:        opts.Metrics,
		storageTimeout: storageTimeout,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed mux wrapped in request logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	return s.withRecovery(s.withRequestLog(s.mux))
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("GET /api/voting/grades", s.handleGrades)
	s.mux.HandleFunc("POST /api/voting/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/voting/sessions/public", s.handleListPublicSessions)
	s.mux.HandleFunc("GET /api/voting/sessions/{session_id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/voting/sessions/{session_id}/anime", s.handleAddAnime)
	s.mux.HandleFunc("POST /api/voting/sessions/{session_id}/vote", s.handleCastVote)
	s.mux.HandleFunc("GET /api/voting/sessions/{session_id}/results", s.handleSessionResults)
	s.mux.HandleFunc("GET /api/voting/my-sessions", s.handleListMySessions)

	s.mux.HandleFunc("GET /api/user/votes", s.handleUserVotes)
	s.mux.HandleFunc("GET /api/user/sessions", s.handleListMySessions)
	s.mux.HandleFunc("GET /api/user/stats", s.handleUserStats)

	s.mux.HandleFunc("GET /api/admin/sessions", s.handleListAllSessions)
	s.mux.HandleFunc("GET /api/search/anime", s.handleSearchAnime)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleGrades(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.voting.Handler.GradesHandler())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req votinghttp.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.CreateSessionHandler(ctx, actor, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListPublicSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.ListPublicSessionsHandler(ctx)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.optionalActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.GetSessionHandler(ctx, actor, r.PathValue("session_id"))
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddAnime(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req votinghttp.AddAnimeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.AddAnimeHandler(ctx, actor, r.PathValue("session_id"), req)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req votinghttp.CastVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.CastVoteHandler(ctx, actor, r.PathValue("session_id"), req)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.SessionResultsHandler(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMySessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.ListMySessionsHandler(ctx, actor)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAllSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.ListAllSessionsHandler(ctx, actor)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserVotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.UserVotesHandler(ctx, actor)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.storageContext(r)
	defer cancel()
	resp, err := s.voting.Handler.UserStatsHandler(ctx, actor)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchAnime(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if limitRaw := strings.TrimSpace(query.Get("limit")); limitRaw != "" {
		value, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		if value == 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 50")
			return
		}
		limit = value
	}

	resp, err := s.voting.Handler.SearchAnimeHandler(r.Context(), query.Get("keyword"), limit)
	if err != nil {
		s.writeVotingDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) (entities.Actor, bool) {
	actor, err := s.verifier.Actor(r)
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, errMissingToken) {
			code = "missing_token"
		}
		s.logger.Warn("request authentication failed",
			"event", "http_auth_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusUnauthorized, code, "valid bearer token is required")
		return entities.Actor{}, false
	}
	return actor, true
}

func (s *Server) optionalActor(w http.ResponseWriter, r *http.Request) (entities.Actor, bool) {
	actor, err := s.verifier.Actor(r)
	if errors.Is(err, errMissingToken) {
		return actor, true
	}
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "valid bearer token is required")
		return entities.Actor{}, false
	}
	return actor, true
}

func (s *Server) storageContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storageTimeout)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) writeVotingDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyVotingError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("voting request failed",
			"event", "http_voting_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err.Error(),
		)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeError(w, status, code, message)
}

func classifyVotingError(err error) (int, string) {
	switch {
	case errors.Is(err, votingerrors.ErrInvalidActor):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, votingerrors.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, votingerrors.ErrIdempotencyInProgress):
		return http.StatusConflict, "idempotency_in_progress"
	case errors.Is(err, votingerrors.ErrItemAlreadyPresent):
		return http.StatusConflict, "item_already_present"
	case errors.Is(err, votingerrors.ErrSessionNotPublic):
		return http.StatusForbidden, "session_not_public"
	case errors.Is(err, votingerrors.ErrCatalogUnavailable):
		return http.StatusBadGateway, "catalog_unavailable"
	case errors.Is(err, votingerrors.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, votingerrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, votingerrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, votingerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, votingerrors.ErrLimitExceeded):
		return http.StatusUnprocessableEntity, "limit_exceeded"
	case errors.Is(err, votingerrors.ErrStorage),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
