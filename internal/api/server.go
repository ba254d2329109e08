// Package api serves the game over HTTP.
// GET endpoints and player commands are public.
// Admin endpoints (speed, reset, save, tick, snapshots) require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khalecl/supply-chain-idle/internal/engine"
	"github.com/khalecl/supply-chain-idle/internal/geology"
	"github.com/khalecl/supply-chain-idle/internal/metrics"
	"github.com/khalecl/supply-chain-idle/internal/persistence"
)

const (
	maxSSEConns      = 8
	maxHeatmapPoints = 10_000
	maxTickStep      = time.Hour
)

// Store is the save slot used by the admin save endpoint.
type Store interface {
	SaveGame(ctx context.Context, s engine.Snapshot) error
	History(ctx context.Context, limit int) ([]persistence.HistoryEntry, error)
}

// Server serves the game over HTTP.
type Server struct {
	Game        *engine.Game
	Eng         *engine.Engine
	Geo         *geology.Map // nil disables the heatmap
	DB          Store        // nil disables saving
	Metrics     *metrics.CommandMetrics
	Gatherer    prometheus.Gatherer // nil disables /metrics
	Limiter     *RateLimiter        // nil disables rate limiting
	Port        int
	AdminKey    string // Bearer token for admin endpoints. Empty = admin disabled.
	CORSOrigins []string

	// Active SSE connection count (atomic).
	sseConns int32

	hub *Hub
	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.hub == nil {
		s.hub = NewHub(s.Game)
	}
	limit := func(h http.HandlerFunc) http.HandlerFunc { return RateLimitMiddleware(s.Limiter, h) }

	mux := http.NewServeMux()

	// Queries.
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/market", s.handleMarket)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/speed", s.handleGetSpeed)
	mux.HandleFunc("GET /api/v1/geology/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	mux.HandleFunc("GET /api/v1/ws", s.hub.ServeWS)

	// Player commands.
	mux.HandleFunc("POST /api/v1/farms", limit(s.command("buy_farm", s.buyFarm)))
	mux.HandleFunc("POST /api/v1/farms/cancel", limit(s.command("cancel_farm", s.cancelFarm)))
	mux.HandleFunc("POST /api/v1/farms/{id}/crop", limit(s.command("select_crop", s.selectCrop)))
	mux.HandleFunc("POST /api/v1/farms/{id}/harvest", limit(s.command("harvest_farm", s.harvestFarm)))
	mux.HandleFunc("POST /api/v1/processors", limit(s.command("buy_processor", s.buyProcessor)))
	mux.HandleFunc("POST /api/v1/processors/{id}/load", limit(s.command("load_processor", s.loadProcessor)))
	mux.HandleFunc("POST /api/v1/processors/{id}/harvest", limit(s.command("harvest_processor", s.harvestProcessor)))
	mux.HandleFunc("POST /api/v1/survey-rigs", limit(s.command("buy_survey_rig", s.buySurveyRig)))
	mux.HandleFunc("POST /api/v1/survey-rigs/{id}/complete", limit(s.command("complete_survey", s.completeSurvey)))
	mux.HandleFunc("POST /api/v1/mines", limit(s.command("buy_mine", s.buyMine)))
	mux.HandleFunc("POST /api/v1/mines/{id}/harvest", limit(s.command("harvest_mine", s.harvestMine)))
	mux.HandleFunc("POST /api/v1/sell", limit(s.command("sell", s.sell)))
	mux.HandleFunc("POST /api/v1/prestige", limit(s.command("prestige", s.prestige)))

	// Admin endpoints (require bearer token).
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSetSpeed))
	mux.HandleFunc("POST /api/v1/tick", s.adminOnly(s.command("tick", s.tick)))
	mux.HandleFunc("POST /api/v1/reset", s.adminOnly(s.command("reset", s.reset)))
	mux.HandleFunc("POST /api/v1/save", s.adminOnly(s.handleSave))
	mux.HandleFunc("GET /api/v1/saves", s.adminOnly(s.handleSaves))
	mux.HandleFunc("GET /api/v1/snapshot", s.adminOnly(s.handleSnapshotExport))

	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "metrics", s.Gatherer != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown closes websocket clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins. "*" allows any.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		if o != "" {
			allowed[o] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAny || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no SCIDLE_SERVER_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ── Queries ───────────────────────────────────────────────────────────

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	v := newStateView(s.Game.Catalog(), s.Game.Snapshot())
	if s.Eng != nil {
		v.Speed, v.Running = s.Eng.Speed(), s.Eng.Running()
	}
	writeJSON(w, v)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, newCatalogView(s.Game.Catalog()))
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snap := s.Game.Snapshot()
	writeJSON(w, map[string]any{
		"lastPriceUpdateMs": millis(snap.LastPriceUpdate),
		"gameTimeMs":        millis(snap.GameTime),
		"prices":            newMarketView(s.Game.Catalog(), snap),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, s.Game.RecentEvents(limit))
}

func (s *Server) handleGetSpeed(w http.ResponseWriter, r *http.Request) {
	speed := 0.0
	if s.Eng != nil {
		speed = s.Eng.Speed()
	}
	writeJSON(w, map[string]float64{"speed": speed})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if s.Geo == nil {
		http.Error(w, "geology not available", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	num := func(key string, def float64) (float64, error) {
		v := q.Get(key)
		if v == "" {
			return def, nil
		}
		return strconv.ParseFloat(v, 64)
	}
	x, errX := num("x", 0)
	z, errZ := num("z", 0)
	size, errS := num("size", 100)
	res, errR := num("resolution", 5)
	if err := errors.Join(errX, errZ, errS, errR); err != nil {
		http.Error(w, "invalid query: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !finite(x, z, size, res) {
		http.Error(w, "query values must be finite", http.StatusBadRequest)
		return
	}
	if size <= 0 || res <= 0 {
		http.Error(w, "size and resolution must be positive", http.StatusBadRequest)
		return
	}
	if side := size/res + 1; side*side > maxHeatmapPoints {
		http.Error(w, "heatmap too large, raise resolution or lower size", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Geo.Heatmap(x, z, size, res))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ── Admin ─────────────────────────────────────────────────────────────

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	snap := s.Game.Snapshot()
	if err := s.DB.SaveGame(r.Context(), snap); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"gameTimeMs": millis(snap.GameTime),
		"message":    "game saved",
	})
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	hist, err := s.DB.History(r.Context(), 20)
	if err != nil {
		slog.Error("save history failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, hist)
}

func (s *Server) handleSnapshotExport(w http.ResponseWriter, r *http.Request) {
	name := "scidle-" + time.Now().UTC().Format("20060102T150405Z") + persistence.SnapshotExt
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := persistence.WriteSnapshot(w, s.Game.Snapshot()); err != nil {
		slog.Error("snapshot export failed", "error", err)
	}
}

// ── Responses ─────────────────────────────────────────────────────────

// requestError is a malformed request, reported as 400.
type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return requestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var re requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownBuilding):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownCrop),
		errors.Is(err, engine.ErrUnknownProcessor),
		errors.Is(err, engine.ErrUnknownResource),
		errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusBadRequest
	case engine.IsRuleError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
