// Standalone prover process: drains proof requests through a proving
// backend and posts signed results back to the requesting sequencer.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.etcd.io/bbolt"

	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/config"
	"github.com/0xkanth/mojave-sequencer/internal/logging"
	"github.com/0xkanth/mojave-sequencer/internal/metrics"
	"github.com/0xkanth/mojave-sequencer/internal/prover"
	"github.com/0xkanth/mojave-sequencer/internal/rpc"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

func main() {
	configPath := flag.String("config", "prover.toml", "path to the prover TOML config file")
	flag.Parse()

	logger := logging.Init()
	logger.Info().Msg("starting mojave prover")

	ko, err := config.Load(logger, *configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.SetLevel(logger, ko.String("logging.level"))
	cfg := config.FromKoanf(ko)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create prover data directory")
	}

	db, err := bbolt.Open(cfg.DataDir+"/prover.db", 0o600, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open prover job database")
	}
	defer db.Close()
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chainstore.BucketJobs())
		return err
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize jobs bucket")
	}

	store, err := prover.NewJobStore(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to replay job store")
	}

	var signer signature.Signer
	if cfg.SigningKeyHex != "" {
		keyBytes, err := hex.DecodeString(cfg.SigningKeyHex)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to decode prover signing key")
		}
		signer, err = signature.FromSlice(rolluptypes.Scheme(cfg.SigningScheme), keyBytes)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build prover signer")
		}
	}

	c := client.New()
	service := prover.NewService(store, prover.DeterministicBackend{}, c, signer, cfg.ProverType, prover.DefaultQueueCapacity, *logger)

	registry := rpc.NewRegistry()
	registerProverHandlers(registry, service)
	rpcService := rpc.NewService(registry, *logger)

	rpcServer := &http.Server{Addr: cfg.RPCAddress, Handler: rpcService.Handler()}
	go func() {
		logger.Info().Str("address", cfg.RPCAddress).Msg("starting prover RPC server")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		service.Run(ctx)
		close(done)
	}()

	<-sigChan
	logger.Info().Msg("received shutdown signal")
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

	logger.Info().Msg("shutdown complete")
}

// sendProofInputParams decodes moj_sendProofInput's two-element tuple
// ([ProverData, sequencer_url]) per rpc.DecodeParams's "whole array
// decoded as T" contract for multi-element params.
type sendProofInputParams struct {
	Data         rolluptypes.ProverData
	SequencerURL string
}

func (p *sendProofInputParams) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &p.Data); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &p.SequencerURL)
}

func registerProverHandlers(registry *rpc.Registry, service *prover.Service) {
	registry.Register("moj_sendProofInput", func(ctx context.Context, params json.RawMessage) (any, error) {
		p, err := rpc.DecodeParams[sendProofInputParams](params)
		if err != nil {
			return nil, err
		}
		jobId, err := service.SendProofInput(ctx, p.Data, p.SequencerURL)
		if err != nil {
			return nil, err
		}
		metrics.ProofJobsPending.Inc()
		return jobId, nil
	})

	registry.Register("moj_getPendingJobIds", func(ctx context.Context, params json.RawMessage) (any, error) {
		return service.GetPendingJobIds(ctx)
	})

	registry.Register("moj_getProof", func(ctx context.Context, params json.RawMessage) (any, error) {
		id, err := rpc.DecodeParams[rolluptypes.JobId](params)
		if err != nil {
			return nil, err
		}
		return service.GetProof(ctx, id)
	})
}
