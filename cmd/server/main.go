package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"keygate/internal/audit"
	"keygate/internal/auth"
	"keygate/internal/decision"
	decisionhandler "keygate/internal/decision/handler"
	decisionmetrics "keygate/internal/decision/metrics"
	"keygate/internal/identity"
	identityhandler "keygate/internal/identity/handler"
	"keygate/internal/platform/config"
	"keygate/internal/platform/httpserver"
	"keygate/internal/platform/logger"
	"keygate/internal/platform/metrics"
	platformredis "keygate/internal/platform/redis"
	"keygate/internal/registry"
	registryhandler "keygate/internal/registry/handler"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		rootStore identity.RootStore
		subStore  identity.SubIdentityStore
		regStore  registry.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		rootStore = identity.NewPostgresRootStore(db)
		subStore = identity.NewPostgresSubIdentityStore(db)
		regStore = registry.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		rootStore = identity.NewInMemoryRootStore()
		subStore = identity.NewInMemorySubIdentityStore()
		regStore = registry.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("decision cache enabled")
	}

	// Audit pipeline: local store always, Kafka sink when brokers are set.
	auditStores := []audit.Store{audit.NewInMemoryStore()}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditStores = append(auditStores, sink)
		log.Info("audit events published to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	publisher := audit.NewPublisher(auditStores,
		audit.WithAsyncBuffer(1024),
		audit.WithLogger(log),
	)
	defer publisher.Close()

	m := metrics.New()
	jwtValidator := auth.NewValidator(cfg.JWTSigningKey)

	identitySvc := identity.NewService(rootStore, subStore, publisher, log)
	registrySvc := registry.NewService(regStore, publisher, log)
	decisionSvc := decision.NewService(regStore,
		decision.NewCache(redisClient, 5*time.Minute),
		decisionmetrics.New(),
	)

	router := chi.NewRouter()
	identityhandler.New(identitySvc, log, m, jwtValidator).Register(router)
	registryhandler.New(registrySvc, log, m, jwtValidator).Register(router)
	decisionhandler.New(decisionSvc, log, m, jwtValidator).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting keygate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
