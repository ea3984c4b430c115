package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attest/internal/alerting"
	kafkasink "attest/internal/alerting/sinks/kafka"
	redissink "attest/internal/alerting/sinks/redis"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/catalog"
	"attest/internal/engine"
	jwttoken "attest/internal/jwt_token"
	"attest/internal/platform/config"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/kafka"
	"attest/internal/platform/logger"
	"attest/internal/platform/metrics"
	"attest/internal/platform/postgres"
	"attest/internal/platform/redis"
	"attest/internal/records/store/memory"
	pgstore "attest/internal/records/store/postgres"
	"attest/internal/retention"
	"attest/internal/retention/archive"
	httptransport "attest/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	tokenRole := flag.String("token", "", "print an admin token for this role and exit")
	tokenSubject := flag.String("token-subject", "cli", "subject of the printed token")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "lifetime of the printed token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	if *tokenRole != "" {
		token, err := jwt.GenerateToken(*tokenSubject, *tokenRole, *tokenTTL)
		if err != nil {
			log.Error("failed to generate token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, jwt, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, jwt *jwttoken.JWTService, log *slog.Logger) error {
	opts, checks, cleanup, err := buildOptions(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		return err
	}

	eng, err := engine.New(memory.New(cfg.Records.CategoryCap), opts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			log.Warn("engine shutdown incomplete", "error", err)
		}
	}()

	handler := httptransport.New(eng, jwt, log)
	router := httptransport.NewRouter(handler, metrics.New(), log, checks...)
	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting attest", "addr", cfg.Server.Addr, "regulations", eng.Catalog().Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// buildOptions connects the optional backends and returns a readiness check
// for each. The returned cleanup closes whatever was opened and is safe to
// call after an error.
func buildOptions(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]engine.Option, []httptransport.ReadinessCheck, func(), error) {
	var (
		closers []func()
		checks  []httptransport.ReadinessCheck
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cat := catalog.Default()
	if cfg.Compliance.CatalogFile != "" {
		loaded, err := catalog.LoadFile(cfg.Compliance.CatalogFile)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}
	scoring, err := assessment.NewScoringPolicy(cfg.Compliance.AutomatedWeight, cfg.Compliance.CategoryWeights)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("scoring policy: %w", err)
	}
	policy, err := retention.NewPolicy(cfg.Retention.LevelDays, cfg.Retention.CategoryDays)
	if err != nil {
		return nil, nil, cleanup, err
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(engine.NewMetrics()),
		engine.WithCatalog(cat),
		engine.WithScoringPolicy(scoring),
		engine.WithBuiltinProbes(cfg.Compliance.BuiltinProbes),
		engine.WithProbeTimeout(cfg.Compliance.ProbeTimeout),
		engine.WithEvidenceWindow(cfg.Compliance.EvidenceWindow),
		engine.WithRetentionPolicy(policy),
		engine.WithFingerprintKey(cfg.Retention.FingerprintKey),
		engine.WithAuditCapacity(cfg.Audit.BufferCap),
		engine.WithSchedule(engine.Schedule{
			Cleanup: cfg.Retention.CleanupInterval,
			Monitor: cfg.Compliance.MonitorInterval,
			Summary: cfg.Compliance.SummaryInterval,
		}),
	}
	if len(cfg.Records.Triggers) > 0 {
		triggers := make([]alerting.Trigger, 0, len(cfg.Records.Triggers))
		for _, t := range cfg.Records.Triggers {
			triggers = append(triggers, alerting.Trigger{Name: t.Name, Pattern: t.Pattern, Severity: alerting.Severity(t.Severity)})
		}
		opts = append(opts, engine.WithTriggers(triggers))
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, cleanup, err
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
		checks = append(checks, httptransport.ReadinessCheck{Name: "postgres", Check: db.PingContext})
		if err := postgres.Migrate(db, pgstore.Migrations, pgstore.MigrationsDir, "schema_migrations_records"); err != nil {
			return nil, nil, cleanup, err
		}
		opts = append(opts, engine.WithMirror(pgstore.New(db), cfg.Records.MirrorQueue, cfg.Postgres.RestoreWindow))
		log.Info("postgres mirror enabled")
	}

	var sinks []alerting.Sink
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, cleanup, err
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		checks = append(checks, httptransport.ReadinessCheck{Name: "redis", Check: rc.Health})
		sink, err := redissink.New(rc.Client, cfg.Redis.ChannelPrefix)
		if err != nil {
			return nil, nil, cleanup, err
		}
		sinks = append(sinks, sink)
		log.Info("redis notification sink enabled", "prefix", cfg.Redis.ChannelPrefix)
	}

	kc, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, nil, cleanup, err
	}
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			kc.Close()
			return nil, nil, cleanup, err
		}
		// The sink owns the client and closes it on engine stop.
		sink, err := kafkasink.New(kc, cfg.Kafka.Topic)
		if err != nil {
			kc.Close()
			return nil, nil, cleanup, err
		}
		sinks = append(sinks, sink)
		log.Info("kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	}
	if len(sinks) > 0 {
		opts = append(opts, engine.WithSinks(sinks...))
	}

	if cfg.Archive.Bucket != "" {
		arch, err := archive.NewFromConfig(ctx, cfg.Archive)
		if err != nil {
			return nil, nil, cleanup, err
		}
		opts = append(opts, engine.WithArchiver(arch))
		log.Info("retention archive enabled", "bucket", cfg.Archive.Bucket)
	}

	return opts, checks, cleanup, nil
}
