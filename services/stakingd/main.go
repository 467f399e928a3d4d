package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stakeledger/core/events"
	"stakeledger/crypto"
	"stakeledger/native/staking"
	"stakeledger/observability/logging"
	telemetry "stakeledger/observability/otel"
	"stakeledger/services/stakingd/config"
	"stakeledger/services/stakingd/export"
	"stakeledger/services/stakingd/journal"
	"stakeledger/services/stakingd/ledgerclient"
	"stakeledger/services/stakingd/recon"
	"stakeledger/services/stakingd/server"
	"stakeledger/services/stakingd/stream"
	stakingtelemetry "stakeledger/services/stakingd/telemetry"
	stakingstate "stakeledger/state/staking"
	"stakeledger/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/stakingd/config.yaml", "path to stakingd configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("stakingd: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("STAKELEDGER_ENV"))
	logger, logCloser := logging.Setup("stakingd", env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("stakingd", env))
	if err != nil {
		log.Fatalf("stakingd: init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := run(cfg, logger); err != nil {
		logger.Error("stakingd: exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := cfg.Engine.Params()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	engine, err := staking.NewEngine(params)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	store, storeCloser, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer storeCloser.Close()
	engine.SetStore(store)

	j, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	hub := stream.NewHub(cfg.Stream.Buffer, logger)
	engine.SetEmitter(events.NewFanout(j, hub, stakingtelemetry.NewEmitter()))

	signerKey, err := hex.DecodeString(cfg.Ledger.SignerKey)
	if err != nil {
		return fmt.Errorf("decode ledger signer key: %w", err)
	}
	signer, err := crypto.PrivateKeyFromBytes(signerKey)
	if err != nil {
		return fmt.Errorf("ledger signer key: %w", err)
	}
	ledger, err := ledgerclient.New(ledgerclient.Config{
		Endpoint: cfg.Ledger.Endpoint,
		Timeout:  cfg.Ledger.Timeout.Duration,
		Memo:     cfg.Ledger.Memo,
		Signer:   signer,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("ledger client: %w", err)
	}
	engine.SetTransferer(ledger)

	exporter, err := export.New(export.Config{
		Source: engine,
		Recorder: export.RecorderFunc(func(ctx context.Context, kind, path, digest string, rows int) error {
			_, err := j.RecordExport(ctx, kind, path, digest, rows)
			return err
		}),
		OutputDir: cfg.Export.Directory,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if !cfg.Reconciler.Disabled {
		reconciler, err := recon.New(recon.Config{
			Engine:     engine,
			Operator:   params.Operator,
			Interval:   cfg.Reconciler.Interval.Duration,
			StaleAfter: cfg.Reconciler.StaleAfter.Duration,
			Batch:      cfg.Reconciler.Batch,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("reconciler: %w", err)
		}
		go func() {
			if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("stakingd: reconciler stopped", slog.Any("error", err))
			}
		}()
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Auth: server.AuthConfig{
			HMACSecret:    cfg.Auth.HMACSecret,
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			ScopeClaim:    cfg.Auth.ScopeClaim,
			OperatorScope: cfg.Auth.OperatorScope,
			ClockSkew:     cfg.Auth.ClockSkew.Duration,
		},
		RateLimits: map[string]server.RateLimit{
			"public":  server.RateLimit(cfg.RateLimits.Public),
			"account": server.RateLimit(cfg.RateLimits.Account),
			"admin":   server.RateLimit(cfg.RateLimits.Admin),
		},
		RoundBatch: cfg.Engine.RoundBatch,
		LedgerSkew: ledgerclient.DefaultSkew,
	}, server.Deps{
		Engine:      engine,
		Idempotency: j,
		Events:      j,
		Nonces:      j,
		Exporter:    exporter,
		Stream:      hub,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("stakingd: starting",
		slog.String("operator", crypto.FormatAddress(params.Operator)),
		slog.String("token_ledger", crypto.FormatAddress(params.TokenLedger)),
		slog.String("store", cfg.Store.Backend))
	return srv.Run(ctx)
}

// openStore selects the ledger persistence backend.
func openStore(cfg config.StoreConfig) (staking.Store, io.Closer, error) {
	switch cfg.Backend {
	case "memory":
		return staking.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	case "leveldb":
		db, err := storage.NewLevelDB(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open leveldb %s: %w", cfg.Path, err)
		}
		return stakingstate.NewKVStore(db), db, nil
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, err
		}
		store, err := stakingstate.OpenBoltStore(cfg.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt %s: %w", cfg.Path, err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
