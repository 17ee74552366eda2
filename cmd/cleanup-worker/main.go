// Command cleanup-worker runs the orphaned-upload sweep on its own schedule,
// for deployments that keep the API replicas free of background jobs. It
// serves /metrics and /health on CLEANUP_WORKER_PORT.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitework/sitework/internal/cleanup"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/server"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	port := os.Getenv("CLEANUP_WORKER_PORT")
	if port == "" {
		port = "5010"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MinIO.Endpoint == "" {
		logger.Fatalf("MINIO_ENDPOINT is required for the cleanup worker")
	}
	b, release, err := server.Connect(ctx, cfg)
	if err != nil {
		logger.Fatalf("connect backends: %v", err)
	}
	defer release()
	if b.Postgres == nil {
		// without the database every object would look unreferenced
		logger.Fatalf("%s is required for the cleanup worker", config.DatabaseURLEnv)
	}
	svc, err := server.Build(ctx, cfg, b)
	if err != nil {
		logger.Fatalf("build services: %v", err)
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		logger.Infof("cleanup worker listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server: %v", err)
		}
	}()

	cleanup.NewScheduler(svc.Cleaner, cfg.Cleanup.Interval, svc.CleanupOpts).Start(ctx)
	_ = srv.Shutdown(context.Background())
}
