// Command server wires the reservation engine behind its HTTP surface.
// Business logic lives in the internal service packages; main only selects
// backends from configuration and manages the process lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"safeharbor/internal/access"
	"safeharbor/internal/admin"
	"safeharbor/internal/audit"
	"safeharbor/internal/caserecord"
	casestore "safeharbor/internal/caserecord/store"
	"safeharbor/internal/client"
	clientstore "safeharbor/internal/client/store"
	"safeharbor/internal/identity"
	"safeharbor/internal/platform/config"
	"safeharbor/internal/platform/httpserver"
	"safeharbor/internal/platform/logger"
	"safeharbor/internal/platform/metrics"
	platformredis "safeharbor/internal/platform/redis"
	"safeharbor/internal/provider"
	providerstore "safeharbor/internal/provider/store"
	"safeharbor/internal/request"
	requeststore "safeharbor/internal/request/store"
	"safeharbor/internal/reservation"
	"safeharbor/internal/systemconfig"
	httptransport "safeharbor/internal/transport/http"
	"safeharbor/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return errors.New("SAFEHARBOR_JWT_SIGNING_KEY is required")
	}

	log := logger.New()
	slog.SetDefault(log)
	m := metrics.NewDefault()

	sysCfg := systemconfig.NewStore(systemconfig.Config{
		MaxReservationTime:        cfg.MaxReservationTime,
		DefaultPriorityDecay:      cfg.DefaultPriorityDecay,
		MinimumCaseUpdateInterval: cfg.MinimumCaseUpdateInterval,
		PrivacyRetentionPeriod:    cfg.PrivacyRetentionPeriod,
		EmergencyOverrideEnabled:  cfg.EmergencyOverrideEnabled,
	})

	salt, err := identity.NewSalt()
	if err != nil {
		return err
	}
	hasher := identity.NewHasher(salt)

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	publisher := audit.NewPublisher(stores.audit,
		audit.WithLogger(log),
		audit.WithAsyncBuffer(cfg.AuditBufferSize),
	)
	defer publisher.Close()

	assignments := access.NewInMemoryAssignments()
	authorizer := access.New(domain.Actor(cfg.OwnerActor), assignments, sysCfg, stores.retention, log,
		access.WithLastAccessSource(stores.lastAccess))

	clients := client.New(stores.clients, hasher, authorizer,
		client.WithLogger(log), client.WithAuditPublisher(publisher), client.WithMetrics(m))
	providers := provider.New(stores.providers,
		provider.WithLogger(log), provider.WithAuditPublisher(publisher), provider.WithMetrics(m))
	engine := reservation.New(stores.slots,
		reservation.WithLogger(log), reservation.WithAuditPublisher(publisher), reservation.WithMetrics(m))
	requests := request.New(stores.requests, engine, clients, providers, authorizer, sysCfg,
		request.WithLogger(log), request.WithAuditPublisher(publisher), request.WithMetrics(m))
	cases := caserecord.New(stores.cases, clients, authorizer, assignments, sysCfg,
		caserecord.WithLogger(log), caserecord.WithAuditPublisher(publisher), caserecord.WithMetrics(m))
	adminSvc := admin.New(authorizer, sysCfg, hasher, assignments,
		admin.WithLogger(log), admin.WithAuditPublisher(publisher))

	router := httptransport.NewRouter(httptransport.Services{
		Clients:   clients,
		Providers: providers,
		Requests:  requests,
		Cases:     cases,
		Admin:     adminSvc,
	}, []byte(cfg.JWTSigningKey), log, m)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// backends groups the selected storage implementations. lastAccess is the
// client store again, read through the authorizer's retention fallback.
type backends struct {
	clients    client.Store
	providers  provider.Store
	slots      reservation.SlotStore
	requests   request.Store
	cases      caserecord.Store
	retention  access.RetentionTracker
	lastAccess access.LastAccessSource
	audit      audit.Store
}

// buildStores selects Postgres, Redis and Kafka when configured and falls
// back to in-memory implementations otherwise. The returned cleanup closes
// whatever was opened.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (backends, func(), error) {
	var b backends
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return b, cleanup, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return b, cleanup, fmt.Errorf("ping postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		for _, schema := range []string{
			clientstore.Schema, providerstore.Schema,
			requeststore.Schema, casestore.Schema,
		} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return b, cleanup, fmt.Errorf("apply schema: %w", err)
			}
		}

		providerPG := providerstore.NewPostgres(db)
		clientPG := clientstore.NewPostgres(db)
		b.clients = clientPG
		b.lastAccess = clientPG
		b.providers = providerPG
		b.slots = providerPG
		b.requests = requeststore.NewPostgres(db)
		b.cases = casestore.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		providerMem := providerstore.NewInMemory()
		clientMem := clientstore.NewInMemory()
		b.clients = clientMem
		b.lastAccess = clientMem
		b.providers = providerMem
		b.slots = providerMem
		b.requests = requeststore.NewInMemory()
		b.cases = casestore.NewInMemory()
		log.Info("using in-memory storage")
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return b, cleanup, err
	}
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		b.retention = access.NewRedisRetention(redisClient)
		log.Info("using redis retention tracking")
	} else {
		b.retention = access.NewInMemoryRetention()
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(ctx, cfg.KafkaBrokers)
		if err != nil {
			return b, cleanup, err
		}
		closers = append(closers, kafkaStore.Close)
		b.audit = kafkaStore
		log.Info("using kafka audit trail", "brokers", cfg.KafkaBrokers)
	} else {
		b.audit = audit.NewInMemoryStore()
	}

	return b, cleanup, nil
}
