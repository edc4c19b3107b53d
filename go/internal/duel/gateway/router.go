package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mcdev12/wordduel/go/internal/auth"
	"github.com/mcdev12/wordduel/go/internal/duel/answers"
	"github.com/mcdev12/wordduel/go/internal/duel/coordinator"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MatchService serves the HTTP match endpoints.
type MatchService interface {
	GetMatch(ctx context.Context, playerID string, matchID uuid.UUID) (*models.Match, error)
	CheckAnswer(ctx context.Context, playerID string, matchID uuid.UUID, wordID, candidate string) (answers.Result, error)
}

type StatsReader interface {
	GetStats(ctx context.Context, playerID string) (*models.PlayerStats, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Verifier       *auth.Verifier
	Connections    *ConnectionManager
	Frames         FrameHandler
	Matches        MatchService
	Stats          StatsReader // optional
	HealthChecks   map[string]HealthCheck
	RequestTimeout time.Duration
}

type router struct {
	cfg RouterConfig
}

// NewRouter builds the HTTP surface: health, the WebSocket endpoint and the
// authenticated match API.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	rt := &router{cfg: cfg}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", rt.handleHealth)
	r.With(cfg.Verifier.RequireAuth).Get("/ws", rt.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(jsonContentType)
		r.Use(cfg.Verifier.RequireAuth)

		r.Get("/matches/{matchID}", rt.handleGetMatch)
		r.Post("/matches/{matchID}/answers", rt.handleCheckAnswer)
		r.Get("/stats/me", rt.handleMyStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (rt *router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.cfg.HealthChecks))
	for name, check := range rt.cfg.HealthChecks {
		if err := check(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"ok":          status == http.StatusOK,
		"checks":      checks,
		"connections": rt.cfg.Connections.ConnectionCount(),
	})
}

func (rt *router) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	// The request context ends with this handler; frames outlive it.
	ctx := auth.WithPlayer(context.WithoutCancel(r.Context()), player)
	if _, err := rt.cfg.Connections.UpgradeConnection(ctx, w, r, player.ID, rt.cfg.Frames); err != nil {
		// Upgrade has already written the HTTP error response.
		log.Warn().Err(err).Str("player_id", player.ID).Msg("WebSocket upgrade rejected")
	}
}

func (rt *router) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		writeError(w, coordinator.ErrMatchNotFound)
		return
	}

	match, err := rt.cfg.Matches.GetMatch(r.Context(), player.ID, matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type checkAnswerReq struct {
	WordID    string `json:"wordId"`
	Candidate string `json:"candidate"`
}

func (rt *router) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		writeError(w, coordinator.ErrMatchNotFound)
		return
	}

	var req checkAnswerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WordID == "" {
		writeError(w, ErrMalformedFrame)
		return
	}

	res, err := rt.cfg.Matches.CheckAnswer(r.Context(), player.ID, matchID, req.WordID, req.Candidate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *router) handleMyStats(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.Stats == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "stats are not enabled"})
		return
	}
	player, _ := auth.PlayerFromContext(r.Context())
	stats, err := rt.cfg.Stats.GetStats(r.Context(), player.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var cerr coordinator.CoordinatorError
	status := http.StatusInternalServerError
	if errors.As(err, &cerr) {
		switch cerr {
		case coordinator.ErrUnauthenticated:
			status = http.StatusUnauthorized
		case coordinator.ErrMatchNotFound:
			status = http.StatusNotFound
		case coordinator.ErrNotInMatch:
			status = http.StatusForbidden
		case coordinator.ErrMatchNotActive, coordinator.ErrAlreadyInMatch:
			status = http.StatusConflict
		case coordinator.ErrUnknownWord, coordinator.ErrInvalidResult, ErrMalformedFrame:
			status = http.StatusBadRequest
		case coordinator.ErrPuzzleUnavailable:
			status = http.StatusServiceUnavailable
		}
	} else {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": coordinator.UserMessage(err)})
}
