package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"erthid/internal/analytics"
	"erthid/internal/attestation"
	"erthid/internal/chain"
	"erthid/internal/events"
	"erthid/internal/platform/config"
	"erthid/internal/platform/httpserver"
	"erthid/internal/platform/logger"
	"erthid/internal/platform/metrics"
	"erthid/internal/platform/redis"
	"erthid/internal/registration"
	transporthttp "erthid/internal/transport/http"
	"erthid/internal/verification"
)

// main wires the dependencies and owns the process lifecycle. Business
// logic lives in the internal packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The wallet is the one dependency the server cannot run without.
	mnemonic, err := chain.LoadMnemonic(cfg.WalletKeyFile)
	if err != nil {
		log.Error("load wallet mnemonic", "file", cfg.WalletKeyFile, "error", err)
		os.Exit(1)
	}
	wallet, err := chain.NewWallet(mnemonic)
	if err != nil {
		log.Error("derive wallet", "error", err)
		os.Exit(1)
	}
	log.Info("wallet ready", "address", wallet.Address())

	lcd := chain.NewLCDClient(cfg.ChainLCDURL, cfg.ChainID, log)
	probeBalance(ctx, lcd, wallet.Address(), log)

	store, closeStore := buildAnalyticsStore(cfg, log)
	defer closeStore()

	registrar := chain.NewRegistrar(wallet, lcd, cfg.RegistrationContract, cfg.RegistrationCodeHash, log)
	verifier := verification.NewClient(cfg.VisionAPIURL, cfg.VisionAPIKey, cfg.VisionModel, cfg.VisionTimeout, log)

	opts := []registration.Option{
		registration.WithLogger(log),
		registration.WithMetrics(m),
	}

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		attestations := attestation.NewStore(pool)
		if err := attestations.EnsureSchema(ctx); err != nil {
			log.Error("prepare attestation schema", "error", err)
			os.Exit(1)
		}
		opts = append(opts, registration.WithAttestations(attestations))
		log.Info("attestation log enabled")
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		opts = append(opts, registration.WithEvents(publisher))
		log.Info("event publishing enabled", "topic", cfg.KafkaTopic)
	}

	service := registration.NewService(verifier, registrar, store, opts...)
	handler := transporthttp.New(service, store, log)
	router := transporthttp.NewRouter(handler, lcd, log, m, transporthttp.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   50 << 20,
		RequestTimeout: 60 * time.Second,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	scheduler := analytics.NewScheduler(store, cfg.SnapshotInterval, log)
	if err := scheduler.Start(); err != nil {
		log.Error("start snapshot scheduler", "error", err)
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		scheduler.Stop()
		if publisher != nil {
			if err := publisher.Close(shutdownCtx); err != nil {
				log.Error("close event publisher", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// probeBalance logs the registration wallet balance at startup. A zero or
// unknown balance is worth an operator's attention but not fatal.
func probeBalance(ctx context.Context, lcd *chain.LCDClient, address string, log *slog.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	coins, err := lcd.Balance(probeCtx, address)
	if err != nil {
		log.Warn("wallet balance unavailable", "error", err)
		return
	}
	for _, coin := range coins {
		log.Info("wallet balance", "denom", coin.Denom, "amount", coin.Amount)
	}
	if len(coins) == 0 {
		log.Warn("wallet has no funds, broadcasts will fail", "address", address)
	}
}

// buildAnalyticsStore prefers Redis when configured and falls back to the
// JSON file store otherwise.
func buildAnalyticsStore(cfg config.Config, log *slog.Logger) (analytics.Store, func()) {
	if cfg.RedisURL != "" {
		client, err := redis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		log.Info("analytics backed by redis")
		return analytics.NewRedisStore(client.Client, log), func() { client.Close() }
	}

	store, err := analytics.NewFileStore(cfg.AnalyticsFile, log)
	if err != nil {
		log.Error("open analytics file", "file", cfg.AnalyticsFile, "error", err)
		os.Exit(1)
	}
	log.Info("analytics backed by file", "file", cfg.AnalyticsFile)
	return store, func() {}
}
