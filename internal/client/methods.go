package client

import (
	"context"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// SendBroadcastBlock announces a signed block to the full-node pool,
// racing every configured URL.
func (c *Client) SendBroadcastBlock(ctx context.Context, block *rolluptypes.SignedBlock) error {
	return c.Call(ctx, PoolFullNodes, Race, "moj_sendBroadcastBlock", []any{block}, nil)
}

// SendProofInput dispatches prover input sequentially across the prover
// pool and returns the assigned JobId.
func (c *Client) SendProofInput(ctx context.Context, data *rolluptypes.ProverData, sequencerURL string) (rolluptypes.JobId, error) {
	var jobID rolluptypes.JobId
	err := c.Call(ctx, PoolProvers, Sequential, "moj_sendProofInput", []any{data, sequencerURL}, &jobID)
	return jobID, err
}

// GetPendingJobIds lists jobs still awaiting proof from the prover pool.
func (c *Client) GetPendingJobIds(ctx context.Context) ([]rolluptypes.JobId, error) {
	var ids []rolluptypes.JobId
	err := c.Call(ctx, PoolProvers, Sequential, "moj_getPendingJobIds", []any{}, &ids)
	return ids, err
}

// GetProof fetches a completed proof by JobId.
func (c *Client) GetProof(ctx context.Context, id rolluptypes.JobId) (*rolluptypes.ProofResponse, error) {
	var resp rolluptypes.ProofResponse
	err := c.Call(ctx, PoolProvers, Sequential, "moj_getProof", []any{id}, &resp)
	return &resp, err
}

// SendProofResponse posts a signed proof response back to the
// sequencer that originally dispatched the job.
func (c *Client) SendProofResponse(ctx context.Context, resp *rolluptypes.SignedProofResponse, sequencerURL string) error {
	return c.CallURL(ctx, sequencerURL, "moj_sendProofResponse", []any{resp}, nil)
}
