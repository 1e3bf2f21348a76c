package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lastclick/tntrun/internal/entity"
	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/store"
)

// ArenaView is the read-only arena state served over HTTP.
type ArenaView struct {
	Round   round.Snapshot       `json:"round"`
	Players []entity.PlayerState `json:"players"`
	Chunks  int                  `json:"loaded_chunks"`
}

// ArenaSource publishes the latest ArenaView. Implementations must be safe
// for concurrent use.
type ArenaSource interface {
	Arena() ArenaView
}

// ProfileReader looks up stored player profiles.
type ProfileReader interface {
	Get(ctx context.Context, id int64) (*store.Player, error)
}

type Server struct {
	db       *pgxpool.Pool
	rdb      *redis.Client
	hub      *Hub
	arena    ArenaSource
	profiles ProfileReader
	metrics  *Metrics
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New builds the HTTP server. db and rdb may be nil when the backing service
// is disabled.
func New(db *pgxpool.Pool, rdb *redis.Client, hub *Hub, metrics *Metrics, logger *slog.Logger) *Server {
	s := &Server{
		db:      db,
		rdb:     rdb,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) SetArenaSource(a ArenaSource) {
	s.arena = a
}

func (s *Server) SetProfiles(p ProfileReader) {
	s.profiles = p
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	if s.hub != nil {
		s.mux.Handle("GET /ws", s.hub)
	}

	s.mux.HandleFunc("GET /api/arena", s.handleArena)
	s.mux.HandleFunc("GET /api/players/{id}", s.handleGetPlayer)
}

func (s *Server) handleArena(w http.ResponseWriter, r *http.Request) {
	if s.arena == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.arena.Arena())
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	pid, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad player id", http.StatusBadRequest)
		return
	}
	player, err := s.profiles.Get(r.Context(), pid)
	if err != nil {
		s.logger.Error("get player", "player", pid, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if player == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, player)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}

	switch {
	case s.db == nil:
		status["db"] = "disabled"
	case s.db.Ping(ctx) != nil:
		status["db"] = "down"
		status["status"] = "degraded"
	default:
		status["db"] = "ok"
	}

	switch {
	case s.rdb == nil:
		status["redis"] = "disabled"
	case s.rdb.Ping(ctx).Err() != nil:
		status["redis"] = "down"
		status["status"] = "degraded"
	default:
		status["redis"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if status["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("write json", "err", err)
		return
	}
}

func (s *Server) Handler(limiter *RateLimiter) http.Handler {
	return ChainMiddleware(s.mux,
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(limiter, s.logger),
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
