package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/coordinator/api"
	"github.com/datafed/cloudnode/coordinator/middleware"
	"github.com/datafed/cloudnode/pkg/prometheus"
	"github.com/datafed/cloudnode/pkg/registry"
	"github.com/datafed/cloudnode/pkg/selector"
	"github.com/datafed/cloudnode/pkg/session"
	"github.com/datafed/cloudnode/pkg/storage"
	"github.com/datafed/cloudnode/pkg/tracing"
	"github.com/datafed/cloudnode/ws"
)

const (
	svcName         = "cloudnode"
	pathEnv         = ".env"
	stopWaitTime    = 5 * time.Second
	readHeaderLimit = 10 * time.Second
)

type envConfig struct {
	LogLevel        string            `env:"CLOUDNODE_LOG_LEVEL"    envDefault:"info"`
	InstanceID      string            `env:"CLOUDNODE_INSTANCE_ID"`
	Host            string            `env:"CLOUDNODE_HOST"         envDefault:"localhost"`
	Port            string            `env:"CLOUDNODE_PORT"         envDefault:"8999"`
	DataDir         string            `env:"CLOUDNODE_DATA_DIR"`
	RepoKeys        map[string]string `env:"CLOUDNODE_REPO_KEYS"`
	ArtifactBaseURL string            `env:"CLOUDNODE_ARTIFACT_BASE_URL"`
	MaxFrameSize    int64             `env:"CLOUDNODE_MAX_FRAME_SIZE"  envDefault:"67108864"`
	OTELEndpoint    string            `env:"CLOUDNODE_OTEL_ENDPOINT"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.ArtifactBaseURL == "" {
		cfg.ArtifactBaseURL = fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	tp, shutdownTracing, err := tracing.Setup(ctx, svcName, cfg.OTELEndpoint)
	if err != nil {
		logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("error shutting down tracer provider", slog.Any("error", err))
		}
	}()
	tracer := tp.Tracer(svcName)

	var store storage.Storage
	switch cfg.DataDir {
	case "":
		store = storage.NewInMemoryStorage()
	default:
		store, err = storage.NewBadgerStorage(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open badger storage", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if closer, ok := store.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					logger.Error("error closing storage", slog.Any("error", err))
				}
			}
		}()
	}

	keys := coordinator.NewKeyStore(store)
	for repoID, key := range cfg.RepoKeys {
		if err := keys.SetRepoKey(ctx, repoID, key); err != nil {
			logger.Error("failed to provision repo key",
				slog.String("repo_id", repoID),
				slog.Any("error", err),
			)

			return
		}
	}

	svc := coordinator.NewService(
		registry.New(),
		session.NewStore(),
		selector.NewAllNodes(),
		keys,
		coordinator.NewCheckpointStore(store),
		coordinator.NewArtifactPublisher(store, cfg.ArtifactBaseURL),
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	wsHandler := ws.NewHandler(svc, logger, cfg.MaxFrameSize)
	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           api.MakeHandler(svc, wsHandler, store, logger, cfg.InstanceID),
		ReadHeaderTimeout: readHeaderLimit,
	}

	g.Go(func() error {
		logger.Info(svcName+" service started",
			slog.String("address", srv.Addr),
			slog.String("instance_id", cfg.InstanceID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), stopWaitTime)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
