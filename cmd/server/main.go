// Command server runs the trustline ledger API. main wires configuration,
// stores, services, and the HTTP surface; business logic lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trustline/internal/arbitration"
	arbitrationhandler "trustline/internal/arbitration/handler"
	arbitrationmetrics "trustline/internal/arbitration/metrics"
	"trustline/internal/billing"
	billinghandler "trustline/internal/billing/handler"
	billingmetrics "trustline/internal/billing/metrics"
	"trustline/internal/directory"
	directoryhandler "trustline/internal/directory/handler"
	directorymetrics "trustline/internal/directory/metrics"
	"trustline/internal/escrow"
	escrowhandler "trustline/internal/escrow/handler"
	escrowmetrics "trustline/internal/escrow/metrics"
	"trustline/internal/jwttoken"
	"trustline/internal/platform/config"
	"trustline/internal/platform/httpserver"
	"trustline/internal/platform/logger"
	platformmetrics "trustline/internal/platform/metrics"
	"trustline/internal/platform/middleware"
	"trustline/internal/platform/postgres"
	platformredis "trustline/internal/platform/redis"
	"trustline/internal/token"
	httptransport "trustline/internal/transport/http"
	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
	auditpublisher "trustline/pkg/platform/audit/publisher"
	auditmemory "trustline/pkg/platform/audit/store/memory"
	auditpostgres "trustline/pkg/platform/audit/store/postgres"
	auditworker "trustline/pkg/platform/audit/worker"
)

const auditInboxSize = 256

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin, err := domain.ParseAddress(cfg.EscrowAdmin)
	if err != nil {
		return fmt.Errorf("ESCROW_ADMIN: %w", err)
	}
	policy, err := billing.ParseFundingPolicy(cfg.FundingPolicy)
	if err != nil {
		return fmt.Errorf("FUNDING_POLICY: %w", err)
	}

	health := map[string]httptransport.HealthCheck{}

	var (
		directoryStore   directory.Store
		billingStore     billing.Store
		escrowStore      escrow.Store
		arbitrationStore arbitration.Store
		auditStore       audit.Store
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		directoryStore = directory.NewPostgresStore(db)
		billingStore = billing.NewPostgresStore(db)
		escrowStore = escrow.NewPostgresStore(db)
		arbitrationStore = arbitration.NewPostgresStore(db)
		auditStore = auditpostgres.New(db)
		health["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		directoryStore = directory.NewInMemoryStore()
		billingStore = billing.NewInMemoryStore()
		escrowStore = escrow.NewInMemoryStore()
		arbitrationStore = arbitration.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		directoryStore = directory.NewCachedStore(directoryStore, redisClient.Client, cfg.DirectoryCacheTTL)
		health["redis"] = redisClient.Health
		log.Info("directory reads cached in redis", "ttl", cfg.DirectoryCacheTTL)
	}

	inbox := make(chan audit.Event, auditInboxSize)
	var publisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := auditpublisher.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafka.Close(context.Background())
		publisher = kafka
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	}
	worker := auditworker.NewWorker(auditStore, publisher, inbox, log)

	// Value movement is in-process. A production deployment would swap in an
	// adapter to the host's token ledger behind token.Transferor.
	bank := token.NewMemoryBank()

	transportMetrics := platformmetrics.New()

	arbitrationSvc := arbitration.NewService(arbitrationStore,
		arbitration.WithLogger(log),
		arbitration.WithMetrics(arbitrationmetrics.New()),
		arbitration.WithAudit(inbox),
	)
	escrowSvc, err := escrow.NewService(escrowStore, bank, admin,
		escrow.WithArbitration(arbitrationSvc),
		escrow.WithLogger(log),
		escrow.WithMetrics(escrowmetrics.New()),
		escrow.WithAudit(inbox),
	)
	if err != nil {
		return fmt.Errorf("escrow service: %w", err)
	}
	billingSvc := billing.NewService(billingStore, bank,
		billing.WithFundingPolicy(policy),
		billing.WithLogger(log),
		billing.WithMetrics(billingmetrics.New()),
		billing.WithAudit(inbox),
	)
	directorySvc := directory.NewService(directoryStore,
		directory.WithLogger(log),
		directory.WithMetrics(directorymetrics.New()),
		directory.WithAudit(inbox),
	)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "trustline")
	requireAuth := middleware.RequireAuth(jwttoken.NewServiceAdapter(tokens), log)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:       log,
		Metrics:      transportMetrics,
		Auth:         httptransport.NewAuthHandler(tokens, time.Hour, log),
		Directory:    directoryhandler.New(directorySvc, log),
		Billing:      billinghandler.New(billingSvc, log),
		Escrow:       escrowhandler.New(escrowSvc, log),
		Arbitration:  arbitrationhandler.New(arbitrationSvc, log),
		RequireAuth:  requireAuth,
		HealthChecks: health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
