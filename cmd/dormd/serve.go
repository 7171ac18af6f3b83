package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"dorm-assignment-backend/internal/api"
	"dorm-assignment-backend/internal/assign"
	"dorm-assignment-backend/internal/metrics"
	"dorm-assignment-backend/internal/mw"
	"dorm-assignment-backend/internal/notification"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. When assigner.auto_interval_seconds is set, an
assignment pass also runs on that interval. Web push notifications are sent
when VAPID keys are configured.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appStore, gormDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	responseCache := mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, 10*time.Minute)
	limiter := mw.NewClientLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	opts := []assign.Option{
		assign.WithMetrics(metrics.NewCollector(registry)),
		assign.WithInterval(cfg.Assigner.AutoInterval),
		assign.WithCommitHook(responseCache.Flush),
	}

	g, gctx := errgroup.WithContext(ctx)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger.Named("notification"))
		pool.Start(gctx)
		g.Go(func() error {
			pool.Wait()
			return nil
		})
		opts = append(opts, assign.WithNotifier(pool))
	} else {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	g.Go(func() error {
		limiter.EvictIdle(gctx, limiterSweepInterval, limiterIdleTimeout)
		return nil
	})

	service := assign.NewService(appStore, logger.Named("assign"), opts...)
	g.Go(func() error {
		service.Run(gctx)
		return nil
	})

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(appStore, service, webpushOptions, logger.Named("api"))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, limiter, responseCache, registry, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}
