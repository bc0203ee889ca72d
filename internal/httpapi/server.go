// Package httpapi is the platform's HTTP surface: the REST API, the
// WebSocket event push, and the Prometheus scrape endpoint. Handlers
// hold no state of their own; every operation delegates to the
// components wired in at boot.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/byoa"
	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/config"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/internal/orchestrator"
	"github.com/casthq/warden/internal/strategy"
	"github.com/casthq/warden/internal/vault"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 10 * time.Second

// BackupExporter produces an encrypted vault backup archive.
type BackupExporter interface {
	Export() ([]byte, error)
}

// Deps are the components the HTTP surface exposes.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Vault        *vault.Vault
	Chain        chain.Client
	Strategies   *strategy.Registry
	Agents       *byoa.Registry
	Binder       *byoa.Binder
	Router       *byoa.Router
	Bus          *events.Bus
	History      *intent.HistoryStore
	Metrics      http.Handler
	Backup       BackupExporter
}

// Options configure the listeners and the auth surface.
type Options struct {
	// Port is the REST API listen port.
	Port int

	// WSPort is the WebSocket listen port.
	WSPort int

	// AdminKey gates admin endpoints. Empty admits everyone (development).
	AdminKey string

	// Network names the target cluster for health and explorer links.
	Network config.Network

	// DefaultCycleIntervalMs fills the cadence when a create request
	// omits it.
	DefaultCycleIntervalMs int
}

// Server owns the REST and WebSocket listeners.
type Server struct {
	orch       *orchestrator.Orchestrator
	vault      *vault.Vault
	chain      chain.Client
	strategies *strategy.Registry
	agents     *byoa.Registry
	binder     *byoa.Binder
	router     *byoa.Router
	bus        *events.Bus
	history    *intent.HistoryStore
	metrics    http.Handler
	backup     BackupExporter

	adminKey          string
	network           config.Network
	defaultIntervalMs int
	port              int
	wsPort            int

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// New creates a server over the given components.
func New(deps Deps, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultCycleIntervalMs <= 0 {
		opts.DefaultCycleIntervalMs = 30_000
	}
	return &Server{
		orch:              deps.Orchestrator,
		vault:             deps.Vault,
		chain:             deps.Chain,
		strategies:        deps.Strategies,
		agents:            deps.Agents,
		binder:            deps.Binder,
		router:            deps.Router,
		bus:               deps.Bus,
		history:           deps.History,
		metrics:           deps.Metrics,
		backup:            deps.Backup,
		adminKey:          opts.AdminKey,
		network:           opts.Network,
		defaultIntervalMs: opts.DefaultCycleIntervalMs,
		port:              opts.Port,
		wsPort:            opts.WSPort,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Handler returns the REST router, mounted under /api with /metrics
// alongside.
func (s *Server) Handler() http.Handler {
	root := mux.NewRouter()
	if s.metrics != nil {
		root.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := root.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents", s.admin(s.handleCreateAgent)).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/config", s.admin(s.handleUpdateAgentConfig)).Methods(http.MethodPatch)
	api.HandleFunc("/agents/{id}/start", s.admin(s.handleStartAgent)).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}/stop", s.admin(s.handleStopAgent)).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}/transactions", s.handleAgentTransactions).Methods(http.MethodGet)

	api.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/intents", s.handleIntents).Methods(http.MethodGet)

	api.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{name}", s.handleGetStrategy).Methods(http.MethodGet)

	api.HandleFunc("/byoa/register", s.admin(s.handleByoaRegister)).Methods(http.MethodPost)
	api.HandleFunc("/byoa/intents", s.handleByoaSubmitIntent).Methods(http.MethodPost)
	api.HandleFunc("/byoa/agents", s.handleByoaListAgents).Methods(http.MethodGet)
	api.HandleFunc("/byoa/agents/{id}", s.handleByoaGetAgent).Methods(http.MethodGet)
	api.HandleFunc("/byoa/agents/{id}/intents", s.handleByoaAgentIntents).Methods(http.MethodGet)
	api.HandleFunc("/byoa/agents/{id}/intents", s.handleByoaSubmitIntentFor).Methods(http.MethodPost)
	api.HandleFunc("/byoa/agents/{id}/activate", s.admin(s.handleByoaActivate)).Methods(http.MethodPost)
	api.HandleFunc("/byoa/agents/{id}/deactivate", s.admin(s.handleByoaDeactivate)).Methods(http.MethodPost)
	api.HandleFunc("/byoa/agents/{id}/revoke", s.admin(s.handleByoaRevoke)).Methods(http.MethodPost)

	api.HandleFunc("/explorer/{signature}", s.handleExplorer).Methods(http.MethodGet)
	api.HandleFunc("/admin/backup", s.admin(s.handleAdminBackup)).Methods(http.MethodGet)

	return s.logRequests(root)
}

// WSHandler returns the WebSocket upgrade handler served on WSPort.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(s.handleWS)
}

// Run starts both listeners and blocks until the context is cancelled
// or a listener fails, then shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ws := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.wsPort),
		Handler:           s.WSHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		s.log.Info("http api listening", zap.Int("port", s.port))
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		s.log.Info("websocket listening", zap.Int("port", s.wsPort))
		if err := ws.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		s.log.Error("listener failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("api shutdown", zap.Error(err))
	}
	if err := ws.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("websocket shutdown", zap.Error(err))
	}
	return runErr
}
