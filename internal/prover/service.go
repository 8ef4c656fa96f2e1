package prover

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/metrics"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// DefaultQueueCapacity bounds the MPSC between sendProofInput and the
// proof worker.
const DefaultQueueCapacity = 64

// Backend is the CPU-bound proving collaborator; real implementations
// shell out to a zkVM prover. It is called synchronously by the single
// proof worker, so only one proof runs at a time per Service instance.
type Backend interface {
	Prove(ctx context.Context, data rolluptypes.ProverData) (*rolluptypes.BatchProof, error)
}

// Service owns the job store, the backend, and the worker that drains
// it.
type Service struct {
	store      *JobStore
	backend    Backend
	client     *client.Client
	signer     signature.Signer
	proverType string
	logger     zerolog.Logger

	queue chan rolluptypes.JobRecord
}

func NewService(store *JobStore, backend Backend, c *client.Client, signer signature.Signer, proverType string, queueCapacity int, logger zerolog.Logger) *Service {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Service{
		store:      store,
		backend:    backend,
		client:     c,
		signer:     signer,
		proverType: proverType,
		logger:     logger.With().Str("component", "prover").Logger(),
		queue:      make(chan rolluptypes.JobRecord, queueCapacity),
	}
}

// SendProofInput is the moj_sendProofInput handler: derives the job id,
// rejects an already-requested batch, and enqueues the job for the
// worker.
func (s *Service) SendProofInput(ctx context.Context, data rolluptypes.ProverData, sequencerURL string) (rolluptypes.JobId, error) {
	jobId, err := rolluptypes.NewJobId(data.BlockHashes())
	if err != nil {
		return "", mjerr.Internal(err, "derive job id")
	}

	if s.store.AlreadyRequested(jobId) {
		return "", mjerr.BadParams("this batch already requested")
	}

	record := rolluptypes.JobRecord{JobId: jobId, ProverData: data, SequencerURL: sequencerURL}
	if err := s.store.Insert(record); err != nil {
		return "", mjerr.Internal(err, "persist job")
	}

	select {
	case s.queue <- record:
	default:
		return "", mjerr.Full()
	}

	return jobId, nil
}

// GetPendingJobIds is the moj_getPendingJobIds handler.
func (s *Service) GetPendingJobIds(ctx context.Context) ([]rolluptypes.JobId, error) {
	return s.store.PendingIds(), nil
}

// GetProof is the moj_getProof handler.
func (s *Service) GetProof(ctx context.Context, id rolluptypes.JobId) (rolluptypes.ProofResponse, error) {
	resp, ok := s.store.Proof(id)
	if !ok {
		return rolluptypes.ProofResponse{}, mjerr.ItemNotFound("proof")
	}
	return resp, nil
}

// Run drains the queue until ctx is cancelled or the queue is closed; it
// exits cleanly in either case (spec.md: "if the channel is closed, the
// worker exits cleanly").
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-s.queue:
			if !ok {
				return
			}
			s.processOne(ctx, record)
		}
	}
}

func (s *Service) processOne(ctx context.Context, record rolluptypes.JobRecord) {
	result := rolluptypes.ProofResult{}
	proof, err := s.backend.Prove(ctx, record.ProverData)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Proof = proof
	}

	resp := rolluptypes.ProofResponse{
		JobId:       record.JobId,
		BatchNumber: record.ProverData.BatchNumber,
		Result:      result,
		ProverType:  s.proverType,
	}

	if err := s.store.Complete(record, resp); err != nil {
		s.logger.Error().Err(err).Str("job_id", string(record.JobId)).Msg("persist completed job failed")
	}
	metrics.ProofJobsPending.Dec()

	signed, sigErr := s.sign(resp)
	if sigErr != nil {
		s.logger.Error().Err(sigErr).Msg("sign proof response failed")
		return
	}

	if err := s.client.SendProofResponse(ctx, signed, record.SequencerURL); err != nil {
		s.logger.Warn().Err(err).Str("job_id", string(record.JobId)).Msg("deliver proof response failed")
	}
}

func (s *Service) sign(resp rolluptypes.ProofResponse) (*rolluptypes.SignedProofResponse, error) {
	payload, err := marshalForSigning(resp)
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	return &rolluptypes.SignedProofResponse{
		ProofResponse: resp,
		Signature:     sig,
		VerifyingKey:  s.signer.VerifyingKey(),
	}, nil
}
