// Command server runs the transaction decision engine: HTTP API, risk
// scoring, review queue, and event publishing. Dependency wiring happens
// here; business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"txgate/internal/audit"
	"txgate/internal/engine"
	enginemetrics "txgate/internal/engine/metrics"
	"txgate/internal/events"
	httpapi "txgate/internal/http"
	"txgate/internal/jwtauth"
	"txgate/internal/platform/config"
	"txgate/internal/platform/httpserver"
	"txgate/internal/platform/logger"
	"txgate/internal/platform/postgres"
	platformredis "txgate/internal/platform/redis"
	"txgate/internal/policy"
	"txgate/internal/queue"
	queuemetrics "txgate/internal/queue/metrics"
	"txgate/internal/reviewconfig"
	"txgate/internal/risk"
	"txgate/internal/risk/graph"
	riskmetrics "txgate/internal/risk/metrics"
	"txgate/internal/risk/ml"
	"txgate/internal/risk/profile"
	"txgate/internal/stats"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthCheck{}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		queueStore  queue.Store
		auditStore  audit.Store
		configStore reviewconfig.Store
		txRunner    queue.TxRunner
	)
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		queueStore = queue.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		configStore = reviewconfig.NewPostgresStore(db)
		txRunner = queue.NewPostgresTxRunner(db)
		health["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		queueStore = queue.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		configStore = reviewconfig.NewInMemoryStore()
		txRunner = queue.NewMemoryTxRunner()
		log.Warn("postgres not configured, using in-memory stores")
	}

	// Profile and velocity history: Redis when configured.
	var (
		profiles profile.Store
		velocity profile.VelocityStore
	)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store := profile.NewRedis(redisClient.Client)
		profiles, velocity = store, store
		health["redis"] = redisClient.Health
		log.Info("using redis profile store")
	} else {
		profiles = profile.NewInMemoryStore()
		velocity = profile.NewInMemoryVelocityStore()
		log.Warn("redis not configured, using in-memory profile store")
	}

	// Event publishing: Kafka when configured, otherwise drop.
	var (
		emitter events.Emitter = events.Discard{}
		worker  *events.Worker
	)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		worker = events.NewWorker(sink, 0, log, events.NewMetrics())
		emitter = worker
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		log.Warn("kafka not configured, events are dropped")
	}

	// Risk layers. Without an inference service the statistical layer is
	// omitted; the scorer renormalizes weights over the remaining layers.
	layers := []risk.Weighted{
		{Layer: risk.NewRuleLayer(velocity, cfg.BlacklistedVendors), Weight: risk.WeightRule},
		{Layer: risk.NewBehavioralLayer(profiles), Weight: risk.WeightBehavioral},
		{Layer: risk.NewRelationalLayer(graph.NewInMemoryGraph()), Weight: risk.WeightRelational},
	}
	if cfg.ML.BaseURL != "" {
		client := ml.New(cfg.ML.BaseURL, cfg.ML.Timeout)
		layers = append(layers, risk.Weighted{
			Layer:  risk.NewStatisticalLayer(client, cfg.ML.Timeout),
			Weight: risk.WeightStatistical,
		})
	} else {
		log.Warn("inference service not configured, statistical layer disabled")
	}
	scorer := risk.NewScorer(log, layers,
		risk.WithJoinTimeout(cfg.ScorerTimeout),
		risk.WithMetrics(riskmetrics.New()),
	)

	// Services.
	configService := reviewconfig.NewService(configStore, log)
	queueService := queue.NewService(queueStore, auditStore, txRunner, emitter, profiles, queuemetrics.New(), log)
	statsService := stats.NewService(queueStore, log)
	engineService := engine.NewService(
		scorer,
		configService,
		queueService,
		auditStore,
		policy.NewEvaluator(policy.DefaultTuning()),
		emitter,
		profiles,
		enginemetrics.New(),
		log,
	)

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "txgate", "txgate-api")

	router := httpapi.NewRouter(httpapi.Deps{
		Engine:    engine.NewHandler(engineService, log),
		Queue:     queue.NewHandler(queueService, log),
		Config:    reviewconfig.NewHandler(configService, log),
		Stats:     stats.NewHandler(statsService, log),
		Validator: jwtauth.NewAdapter(tokens),
		Logger:    log,
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("starting txgate", "addr", cfg.Addr)
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
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
}
