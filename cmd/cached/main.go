package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docuflow/tiercache/internal/cache"
	"github.com/docuflow/tiercache/internal/config"
	"github.com/docuflow/tiercache/internal/metrics"
)

func main() {
	cfg := config.GetConfig()
	logger := config.GetLogger()

	logger.Info().
		Str("backing_store_url", cfg.BackingStoreURL).
		Str("key_prefix", cfg.KeyPrefix).
		Int("l1_max_entries", cfg.L1.MaxEntries).
		Str("compression_codec", cfg.CompressionCodec).
		Msg("Starting cache service")

	svc, err := cache.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to construct cache service")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close cache service")
		}
	}()

	// Start Prometheus metrics HTTP server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer("", cfg.Metrics.Port, svc)
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
				logger.Fatal().Err(err).Msg("Failed to serve metrics")
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to shutdown metrics server")
			}
		}()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			logger.Info().Msg("Cache service stopped gracefully")
			return
		case <-ticker.C:
			stats := svc.Stats()
			logger.Info().
				Uint64("hits", stats.Hits).
				Uint64("misses", stats.Misses).
				Uint64("evictions", stats.Evictions).
				Uint64("invalidations", stats.Invalidations).
				Dur("avg_get_latency", stats.AvgGetLatency).
				Msg("Cache stats")
		}
	}
}
