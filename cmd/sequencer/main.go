// Main sequencer coordination daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xkanth/mojave-sequencer/internal/config"
	"github.com/0xkanth/mojave-sequencer/internal/logging"
	"github.com/0xkanth/mojave-sequencer/internal/node"
	"github.com/0xkanth/mojave-sequencer/internal/rpc"
)

func main() {
	configPath := flag.String("config", "sequencer.toml", "path to the sequencer TOML config file")
	flag.Parse()

	logger := logging.Init()
	logger.Info().Msg("starting mojave sequencer")

	ko, err := config.Load(logger, *configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.SetLevel(logger, ko.String("logging.level"))

	cfg := config.FromKoanf(ko)
	logger.Info().
		Str("datadir", cfg.DataDir).
		Bool("cluster_mode", cfg.ClusterMode).
		Dur("block_interval", cfg.BlockInterval).
		Dur("batch_interval", cfg.BatchInterval).
		Msg("loaded sequencer configuration")

	n, err := node.New(cfg, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble sequencer node")
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error().Err(err).Msg("node close error")
		}
	}()

	rpcService := rpc.NewService(n.Registry, *logger)
	rpcServer := &http.Server{Addr: cfg.RPCAddress, Handler: rpcService.Handler()}
	go func() {
		logger.Info().Str("address", cfg.RPCAddress).Msg("starting RPC server")
		if err := rpcServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("address", cfg.MetricsAddress).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	healthServer := &http.Server{Addr: cfg.HealthAddress, Handler: http.HandlerFunc(healthCheckHandler(n.Ingestor))}
	go func() {
		logger.Info().Str("address", cfg.HealthAddress).Msg("starting health check server")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-done:
		logger.Warn().Msg("node loop exited unexpectedly")
	}

	logger.Info().Msg("shutting down")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("RPC server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("health server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

func healthCheckHandler(n interface{ PendingLen() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "healthy\npending: %d\n", n.PendingLen())
	}
}
