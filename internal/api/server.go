// Package api is the HTTP surface the map UI talks to.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/health"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/emperorhan/terra-sync/internal/syncer"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBodyBytes = 1 << 16

// Mirror is the secondary cache as seen by the API.
type Mirror interface {
	ListParcelMetadata(ctx context.Context) (map[model.TokenID]model.TerraRecord, error)
	ListPendingMarkers(ctx context.Context) (map[model.TokenID]model.Action, error)
	ListPendingTxs(ctx context.Context) ([]model.PendingTx, error)
	UpsertMetadata(ctx context.Context, id model.TokenID, terrain string, crops []string) error
	AddPendingMarker(ctx context.Context, id model.TokenID, txHash string, action model.Action, submitter string) (model.PendingTx, error)
	RemovePendingMarkerByHash(ctx context.Context, txHash string) error
	Defaults() model.MetadataDefaults
}

// Snapshotter exposes the synchronizer's latest batch read.
type Snapshotter interface {
	Snapshot() *syncer.Snapshot
	BulkSynced() bool
	ManualRefresh(ctx context.Context) error
}

// ConfirmWatcher follows a submitted transaction in the background.
type ConfirmWatcher interface {
	Watch(ctx context.Context, txHash string, id model.TokenID)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	mirror    Mirror
	snapshots Snapshotter
	watcher   ConfirmWatcher
	roles     chain.RoleReader
	simulator chain.Simulator
	notifier  store.Notifier
	health    HealthChecker
	trackers  []*health.Tracker
	limiter   *RateLimiter
	keepAlive time.Duration
	logger    *slog.Logger
}

type ServerOption func(*Server)

func WithRoleReader(r chain.RoleReader) ServerOption {
	return func(s *Server) { s.roles = r }
}

func WithSimulator(sim chain.Simulator) ServerOption {
	return func(s *Server) { s.simulator = sim }
}

func WithNotifier(n store.Notifier) ServerOption {
	return func(s *Server) { s.notifier = n }
}

func WithHealthChecker(h HealthChecker) ServerOption {
	return func(s *Server) { s.health = h }
}

// WithComponentHealth adds background loops to the /healthz report. Any
// unhealthy component fails the check.
func WithComponentHealth(trackers ...*health.Tracker) ServerOption {
	return func(s *Server) { s.trackers = append(s.trackers, trackers...) }
}

func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// WithKeepAlive sets the comment interval on the change stream.
func WithKeepAlive(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

func NewServer(mirror Mirror, snapshots Snapshotter, watcher ConfirmWatcher, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mirror:    mirror,
		snapshots: snapshots,
		watcher:   watcher,
		keepAlive: 15 * time.Second,
		logger:    logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(AuditMiddleware(s.logger))
	if s.limiter != nil {
		r.Use(s.limiter.Wrap)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/terras", s.handleListTerras)
		r.Get("/terras/{id}", s.handleGetTerra)
		r.Put("/terras/{id}/metadata", s.handlePutMetadata)
		r.Post("/terras/{id}/simulate", s.handleSimulate)
		r.Get("/stats", s.handleStats)

		r.Get("/pending", s.handleListPending)
		r.Post("/pending", s.handleAddPending)
		r.Delete("/pending/{txHash}", s.handleDeletePending)

		r.Post("/refresh", s.handleRefresh)
		r.Get("/admins/{address}", s.handleIsAdmin)
		r.Get("/geometry", s.handleGeometry)
		r.Get("/changes", s.handleChanges)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSONBody writes a 400 and returns false when the body is not valid JSON.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
