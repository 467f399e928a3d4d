package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakeledger/native/staking"
	"stakeledger/services/stakingd/export"
	"stakeledger/services/stakingd/journal"
	"stakeledger/services/stakingd/ledgerclient"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	Auth          AuthConfig
	RateLimits    map[string]RateLimit
	// RoundBatch is the page size used when a step request names none.
	RoundBatch int
	LedgerSkew time.Duration
}

// EventLog exposes the persisted event journal.
type EventLog interface {
	Events(ctx context.Context, q journal.Query) ([]journal.EventRecord, error)
}

// Exporter produces audit snapshots on demand.
type Exporter interface {
	Run(ctx context.Context, kinds ...string) ([]export.Manifest, error)
}

// Deps collects the collaborators served over HTTP.
type Deps struct {
	Engine      *staking.Engine
	Idempotency IdempotencyStore
	Events      EventLog
	Exporter    Exporter
	Stream      http.Handler
	// Nonces persists consumed ledger callback nonces; nil keeps them in memory.
	Nonces ledgerclient.NoncePersistence
	Logger *slog.Logger
	Now    func() time.Time
}

// Server hosts the public, account, ledger and admin APIs of stakingd.
type Server struct {
	cfg            Config
	engine         *staking.Engine
	idempotency    IdempotencyStore
	events         EventLog
	exporter       Exporter
	stream         http.Handler
	auth           *Authenticator
	limiter        *RateLimiter
	ledgerVerifier ledgerclient.Verifier
	operator       [20]byte
	logger         *slog.Logger
	now            func() time.Time
}

// New constructs a server bound to the supplied engine.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("staking engine required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":7094"
	}
	if cfg.RoundBatch <= 0 {
		cfg.RoundBatch = staking.DefaultRoundBatch
	}
	auth, err := NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}
	limiter := NewRateLimiter(cfg.RateLimits)
	limiter.clockNow = now
	params := deps.Engine.Params()
	return &Server{
		cfg:         cfg,
		engine:      deps.Engine,
		idempotency: deps.Idempotency,
		events:      deps.Events,
		exporter:    deps.Exporter,
		stream:      deps.Stream,
		auth:        auth,
		limiter:     limiter,
		ledgerVerifier: ledgerclient.Verifier{
			Expected: params.TokenLedger,
			Skew:     cfg.LedgerSkew,
			Now:      now,
			Nonces:   ledgerclient.NewNonceCache(cfg.LedgerSkew, 0, deps.Nonces),
		},
		operator: params.Operator,
		logger:   logger,
		now:      now,
	}, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("public"))
			r.Get("/accounts/{address}", s.handleAccount)
			r.Get("/accounts/{address}/records", s.handleRecords)
			r.Get("/accounts/{address}/events", s.handleAccountEvents)
			r.Get("/pool", s.handlePool)
			r.Get("/pool/funding", s.handleFunding)
			r.Get("/settlements", s.handleSettlements)
			r.Get("/weights", s.handleWeights)
			if s.stream != nil {
				r.Handle("/stream", s.stream)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("account"))
			r.Use(s.auth.Middleware())
			r.Use(withIdempotency(s.idempotency, s.logger))
			r.Post("/records/{id}/claim", s.handleClaim)
			r.Post("/records/{id}/unstake", s.handleUnstake)
			r.Post("/transfers/{id}/retry", s.handleOwnerRetry)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Use(s.requireLedger)
			r.Use(withIdempotency(s.idempotency, s.logger))
			r.Post("/notify", s.handleNotify)
			r.Post("/transfers/{id}/confirm", s.handleConfirm)
			r.Post("/transfers/{id}/fail", s.handleFail)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.limiter.Middleware("admin"))
			r.Use(s.auth.Middleware(s.auth.OperatorScope()))
			r.Use(withIdempotency(s.idempotency, s.logger))
			r.Post("/distributions", s.handleDistribute)
			r.Post("/distributions/step", s.handleStep)
			r.Delete("/distributions", s.handleAbort)
			r.Get("/distributions/current", s.handleCurrentRound)
			r.Post("/tiers", s.handleAssignTier)
			r.Get("/transfers", s.handleListTransfers)
			r.Post("/transfers/{id}/retry", s.handleOperatorRetry)
			r.Post("/exports", s.handleExport)
		})
	})

	return otelhttp.NewHandler(r, "stakingd.http")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("stakingd: http server listening", slog.String("addr", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
