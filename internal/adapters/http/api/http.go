// Package api serves the read-only status API: metrics, run progress and the
// latest leaderboard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/earnsignal/internal/adapters/repository"
	"github.com/okian/earnsignal/internal/domain/model"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 100
	requestTimeout  = 15 * time.Second
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, ticker string) (repository.Entry, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit bounds the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// Server wires HTTP routes for the status API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	maxLimit           int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	r.Get("/rank/{ticker}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	return r
}

// entryResponse is the JSON shape of a leaderboard row.
type entryResponse struct {
	Rank     int      `json:"rank"`
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Score    *float64 `json:"score"`
	AIS      *float64 `json:"ais"`
	AISDelta *float64 `json:"ais_delta"`
	SUE      *float64 `json:"sue"`
}

func toResponse(e repository.Entry) entryResponse {
	return entryResponse{
		Rank:     e.Rank,
		Ticker:   e.Ticker,
		Date:     model.FormatDate(e.Date),
		Score:    e.Score,
		AIS:      e.AIS,
		AISDelta: e.AISDelta,
		SUE:      e.SUE,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
