// Command redigo-server runs the RESP key/value store and pub/sub server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/redigo/internal/config"
	"github.com/adred-codev/redigo/internal/logging"
	"github.com/adred-codev/redigo/internal/metrics"
	"github.com/adred-codev/redigo/internal/server"
	"github.com/adred-codev/redigo/internal/store"
	"github.com/adred-codev/redigo/internal/sysstats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("redigo-server: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  logging.Level(cfg.LogLevel),
		Format: logging.Format(cfg.LogFormat),
	})
	cfg.Log(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	st := store.New()
	defer st.Shutdown()

	sampler := sysstats.New(logger, 15*time.Second)
	go sampler.Run(ctx)

	var guard *server.ResourceGuard
	if cfg.CPURejectPercent > 0 || cfg.MemoryLimitBytes > 0 || sampler.CgroupMemoryLimit() > 0 {
		guard = server.NewResourceGuard(server.GuardConfig{
			CPURejectPercent: cfg.CPURejectPercent,
			MemoryLimitBytes: cfg.MemoryLimitBytes,
		}, sampler, logger)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	srv := server.New(server.Config{
		Addr:              cfg.Addr,
		MaxConnections:    cfg.MaxConnections,
		ConnectRatePerSec: cfg.ConnectRatePerSec,
		ConnectBurst:      cfg.ConnectBurst,
		Guard:             guard,
	}, st, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}
