package blockproducer_test

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/blockproducer"
	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/engine"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

func newSigner(t *testing.T) signature.Signer {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	require.NoError(t, err)
	return signer
}

func TestProducerBuildsSignsAndBroadcasts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	defer srv.Close()

	eng := engine.NewInMemoryEngine(1)
	signer := newSigner(t)
	c := client.New(client.WithFullNodeURLs(srv.URL))
	p := blockproducer.New(eng, signer, c, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle := blockproducer.Spawn(ctx, p, 10*time.Millisecond, zerolog.Nop())
	defer handle.Release()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestProducerSurvivesBroadcastFailure(t *testing.T) {
	eng := engine.NewInMemoryEngine(1)
	signer := newSigner(t)
	c := client.New(client.WithFullNodeURLs("http://127.0.0.1:0"))
	p := blockproducer.New(eng, signer, c, zerolog.Nop())

	resp, err := p.HandleRequest(context.Background(), struct{}{})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, uint64(1), resp.Block.Number())
}
