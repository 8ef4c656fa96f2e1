package ingestor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// EthclientUpstream implements Upstream against a full node's standard
// Ethereum JSON-RPC API, the same client library the teacher uses for
// its own chain reads (internal/chain/on_chain_client.go).
type EthclientUpstream struct {
	client *ethclient.Client
}

func DialUpstream(rpcURL string) (*EthclientUpstream, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial upstream %s: %w", rpcURL, err)
	}
	return &EthclientUpstream{client: c}, nil
}

func (u *EthclientUpstream) BlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, error) {
	full, err := u.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("fetch upstream block %d: %w", number, err)
	}
	return rolluptypes.FromUpstream(full), nil
}

func (u *EthclientUpstream) Close() {
	u.client.Close()
}

var _ Upstream = (*EthclientUpstream)(nil)
