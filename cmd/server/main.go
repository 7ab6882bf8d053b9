package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tracehub/internal/anchor"
	ametrics "tracehub/internal/anchor/metrics"
	"tracehub/internal/chain"
	"tracehub/internal/events"
	jwttoken "tracehub/internal/jwt_token"
	"tracehub/internal/passport/handler"
	pmetrics "tracehub/internal/passport/metrics"
	"tracehub/internal/passport/service"
	"tracehub/internal/passport/store"
	"tracehub/internal/platform/config"
	"tracehub/internal/platform/httpserver"
	"tracehub/internal/platform/logger"
	"tracehub/internal/platform/metrics"
	platformredis "tracehub/internal/platform/redis"
	"tracehub/internal/queue"
	"tracehub/internal/registry"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages. Optional backends
// degrade to in-memory modes so a bare `go run ./cmd/server` works.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store: postgres when configured, in-memory otherwise.
	var recordStore store.Store
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate postgres", "error", err)
			os.Exit(1)
		}
		recordStore = pg
		log.Info("using postgres store")
	} else {
		recordStore = store.NewInMemoryStore()
		log.Warn("TRACEHUB_POSTGRES_URL not set, using in-memory store")
	}

	// Anchor queue: redis when configured, in-memory otherwise.
	policy := queue.DefaultPolicy()
	policy.MaxAttempts = cfg.Worker.MaxAttempts
	policy.BaseBackoff = cfg.Worker.BaseBackoff

	var anchorQueue queue.Queue
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		anchorQueue = queue.NewRedis(redisClient.Client, policy)
		log.Info("using redis queue")
	} else {
		mem := queue.NewMemory(policy)
		defer mem.Stop()
		anchorQueue = mem
		log.Warn("TRACEHUB_REDIS_URL not set, using in-memory queue")
	}

	reg, confirmer, err := buildChainBackend(cfg.Chain, log)
	if err != nil {
		log.Error("configure chain backend", "error", err)
		os.Exit(1)
	}

	// Lifecycle events: kafka when brokers are configured.
	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
		log.Info("publishing lifecycle events", "topic", cfg.Kafka.Topic)
	} else {
		publisher = events.NewMemory()
		log.Warn("TRACEHUB_KAFKA_BROKERS not set, lifecycle events stay in-process")
	}

	svc, err := service.New(recordStore, anchorQueue,
		service.WithLogger(log),
		service.WithPublisher(publisher),
		service.WithMetrics(pmetrics.New()),
		service.WithRegistry(reg),
	)
	if err != nil {
		log.Error("build passport service", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "tracehub")

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	handler.New(svc, log, metrics.New(), jwtService).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	if reg != nil {
		worker, err := anchor.NewWorker(recordStore, reg, confirmer,
			anchor.WithLogger(log),
			anchor.WithPublisher(publisher),
			anchor.WithMetrics(ametrics.New()),
			anchor.WithBaseURL(cfg.Server.BaseURL),
		)
		if err != nil {
			log.Error("build anchor worker", "error", err)
			os.Exit(1)
		}
		pool, err := anchor.NewPool(anchorQueue, worker, cfg.Worker.Concurrency, log)
		if err != nil {
			log.Error("build anchor pool", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			return pool.Run(groupCtx)
		})
	} else {
		log.Warn("anchoring disabled, passports will not be registered on chain")
	}

	group.Go(func() error {
		log.Info("starting tracehub", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("tracehub stopped")
}

// buildChainBackend selects the anchoring target. "memory" runs the contract
// state machine in-process with the service key as both admin and hub, which
// is enough for local and staging work. Anything else dials an RPC node.
func buildChainBackend(cfg config.Chain, log *slog.Logger) (chain.Registry, chain.Confirmer, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}

	if cfg.Memory() {
		hub := common.HexToAddress("0x0000000000000000000000000000000000000001")
		if cfg.PrivateKey != "" {
			key, err := crypto.HexToECDSA(cfg.PrivateKey)
			if err != nil {
				return nil, nil, err
			}
			hub = crypto.PubkeyToAddress(key.PublicKey)
		}
		contract, err := registry.New(hub)
		if err != nil {
			return nil, nil, err
		}
		if err := contract.GrantHubRole(hub, hub); err != nil {
			return nil, nil, err
		}
		backend := registry.NewBackend(contract, hub)
		log.Info("using in-process ledger backend", "hub", hub.Hex())
		return backend, backend, nil
	}

	node, err := ethclient.Dial(cfg.NodeURL)
	if err != nil {
		return nil, nil, err
	}
	client, err := chain.NewClient(node, cfg.RegistryAddress, cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return nil, nil, err
	}
	poller := chain.NewPoller(node, cfg.ConfirmInterval, cfg.ConfirmTimeout)
	log.Info("using chain backend", "node", cfg.NodeURL, "registry", cfg.RegistryAddress, "signer", client.From().Hex())
	return client, poller, nil
}
