package prover_test

import (
	"context"
	"crypto/ed25519"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/prover"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

func headerWithHash(number byte) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(uint64(number))}
}

func newSigner(t *testing.T) signature.Signer {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	require.NoError(t, err)
	return signer
}

func sampleData(n byte) rolluptypes.ProverData {
	return rolluptypes.ProverData{
		BatchNumber: 1,
		Input: rolluptypes.ProgramInput{
			Blocks: []*rolluptypes.Block{{Header: headerWithHash(n)}},
		},
	}
}

func TestSendProofInputRejectsDuplicate(t *testing.T) {
	store, err := prover.NewJobStore(nil)
	require.NoError(t, err)
	c := client.New()
	svc := prover.NewService(store, prover.DeterministicBackend{}, c, newSigner(t), "sp1", 8, zerolog.Nop())

	data := sampleData(1)
	id1, err := svc.SendProofInput(context.Background(), data, "http://seq")
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	_, err = svc.SendProofInput(context.Background(), data, "http://seq")
	require.Error(t, err)
}

func TestWorkerCompletesAndDeliversProof(t *testing.T) {
	var delivered atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Store(true)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	defer srv.Close()

	store, err := prover.NewJobStore(nil)
	require.NoError(t, err)
	c := client.New()
	svc := prover.NewService(store, prover.DeterministicBackend{}, c, newSigner(t), "sp1", 8, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	data := sampleData(2)
	jobId, err := svc.SendProofInput(context.Background(), data, srv.URL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := store.Proof(jobId)
		return ok
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, delivered.Load, time.Second, 5*time.Millisecond)

	ids := store.PendingIds()
	require.Empty(t, ids)
}

func TestGetProofNotFound(t *testing.T) {
	store, err := prover.NewJobStore(nil)
	require.NoError(t, err)
	svc := prover.NewService(store, prover.DeterministicBackend{}, client.New(), newSigner(t), "sp1", 8, zerolog.Nop())

	_, err = svc.GetProof(context.Background(), "nope")
	require.Error(t, err)
}
