package node_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/config"
	"github.com/0xkanth/mojave-sequencer/internal/node"
)

func TestNewAssemblesStandaloneNodeWithoutNetworkDependencies(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := config.Node{
		DataDir:        t.TempDir(),
		SigningScheme:  "ed25519",
		SigningKeyHex:  hex.EncodeToString(priv),
		BlockInterval:  10 * time.Millisecond,
		BatchInterval:  10 * time.Millisecond,
		LeaseTTL:       15 * time.Second,
		Namespace:      "default",
		LeaseName:      "sequencer-leader",
	}

	n, err := node.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, n.Queue)
	require.NotNil(t, n.Processor)
	require.NotNil(t, n.Ingestor)
	require.NotNil(t, n.Leader)
	require.NotNil(t, n.Registry)

	require.NoError(t, n.Close())
}

func TestRegisteredMethodsRejectMalformedParams(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := config.Node{
		DataDir:       t.TempDir(),
		SigningScheme: "ed25519",
		SigningKeyHex: hex.EncodeToString(priv),
	}

	n, err := node.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer n.Close()

	_, err = n.Registry.Dispatch(context.Background(), "moj_sendBroadcastBlock", nil)
	require.Error(t, err)

	_, err = n.Registry.Dispatch(context.Background(), "moj_sendProofResponse", nil)
	require.Error(t, err)
}

func TestEthNamespaceServesBlockNumberAndFallsBackOtherwise(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := config.Node{
		DataDir:       t.TempDir(),
		SigningScheme: "ed25519",
		SigningKeyHex: hex.EncodeToString(priv),
	}
	n, err := node.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer n.Close()

	result, err := n.Registry.Dispatch(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), result)

	_, err = n.Registry.Dispatch(context.Background(), "eth_getBalance", nil)
	require.Error(t, err)
}
