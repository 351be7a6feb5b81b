// Package server exposes the pipeline as JSON HTTP endpoints for the
// browser dashboard. Every response uses the same success/error envelope.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/app"
	"github.com/adpulse/adpulse/internal/model"
)

// Server serves the dashboard API.
type Server struct {
	app *app.App
}

// New creates a Server over the pipeline.
func New(a *app.App) *Server {
	return &Server{app: a}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.app.Cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ads", s.handleAds)
		r.Get("/ads/{id}/insights", s.handleAdInsights)
		r.Get("/campaigns", s.handleCampaigns)
		r.Get("/adsets", s.handleAdsets)
		r.Get("/account", s.handleAccount)
		r.Get("/account/spend", s.handleAccountSpend)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
	})

	return r
}

// envelope is the uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data, meta any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// windowFromQuery parses ?date= or ?since=&until=, defaulting to today.
func windowFromQuery(r *http.Request) (model.DateRange, bool) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		if !validDate(date) {
			return model.DateRange{}, false
		}
		return model.SingleDay(date), true
	}
	since, until := q.Get("since"), q.Get("until")
	if since != "" || until != "" {
		if !validDate(since) || !validDate(until) {
			return model.DateRange{}, false
		}
		return model.DateRange{Since: since, Until: until}, true
	}
	return model.SingleDay(time.Now().Format("2006-01-02")), true
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func bypassFromQuery(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}

func (s *Server) handleAds(w http.ResponseWriter, r *http.Request) {
	window, ok := windowFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date parameter, expected YYYY-MM-DD")
		return
	}

	ads, err := s.app.EnrichedAds(r.Context(), window, bypassFromQuery(r))
	if err != nil {
		zap.L().Error("ads request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch ads from upstream")
		return
	}

	writeData(w, http.StatusOK, ads, map[string]any{
		"count":  len(ads),
		"window": window,
	})
}

func (s *Server) handleAdInsights(w http.ResponseWriter, r *http.Request) {
	window, ok := windowFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date parameter, expected YYYY-MM-DD")
		return
	}
	adID := chi.URLParam(r, "id")

	ad := s.app.AdInsights(r.Context(), adID, window, bypassFromQuery(r))
	writeData(w, http.StatusOK, ad, map[string]any{"window": window})
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	cs, err := s.app.Campaigns(r.Context(), bypassFromQuery(r))
	if err != nil {
		zap.L().Error("campaigns request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch campaigns from upstream")
		return
	}
	writeData(w, http.StatusOK, cs, map[string]any{"count": len(cs)})
}

func (s *Server) handleAdsets(w http.ResponseWriter, r *http.Request) {
	as, err := s.app.Adsets(r.Context(), bypassFromQuery(r))
	if err != nil {
		zap.L().Error("adsets request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch ad sets from upstream")
		return
	}
	writeData(w, http.StatusOK, as, map[string]any{"count": len(as)})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.app.Account(r.Context(), bypassFromQuery(r))
	if err != nil {
		zap.L().Error("account request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch account from upstream")
		return
	}
	writeData(w, http.StatusOK, acct, nil)
}

func (s *Server) handleAccountSpend(w http.ResponseWriter, r *http.Request) {
	window, ok := windowFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date parameter, expected YYYY-MM-DD")
		return
	}
	spend := s.app.AccountSpend(r.Context(), window, bypassFromQuery(r))
	writeData(w, http.StatusOK, map[string]any{"spend": spend}, map[string]any{"window": window})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.app.Cache.Stats(), nil)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.Clear(); err != nil {
		zap.L().Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "cleared"}, nil)
}
