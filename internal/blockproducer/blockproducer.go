// Package blockproducer implements the block producer (C7): a periodic
// task that asks the engine to build the next block, signs it, and
// broadcasts it to every full node, racing all of them for the first
// acknowledgement.
package blockproducer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/engine"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/internal/task"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// DefaultBlockTime is the interval between build attempts absent config.
const DefaultBlockTime = 1000 * time.Millisecond

// tick is the periodic request the ticker feeds into HandleRequest; it
// carries no data, the block content comes from the engine at tick time.
type tick struct{}

// Producer implements task.Task[tick, *rolluptypes.SignedBlock].
type Producer struct {
	engine engine.Engine
	signer signature.Signer
	client *client.Client
	logger zerolog.Logger
}

func New(eng engine.Engine, signer signature.Signer, c *client.Client, logger zerolog.Logger) *Producer {
	return &Producer{engine: eng, signer: signer, client: c, logger: logger.With().Str("component", "blockproducer").Logger()}
}

func (p *Producer) OnStart(ctx context.Context) error {
	p.logger.Info().Msg("block producer starting")
	return nil
}

func (p *Producer) OnShutdown(ctx context.Context) {
	p.logger.Info().Msg("block producer stopping")
}

// HandleRequest builds, signs and broadcasts one block. A build or
// signing failure is returned as an error. A broadcast failure is logged
// and swallowed rather than propagated, and the signed block is still
// returned, since a periodic tick has no caller waiting on the result
// besides the ticker itself.
func (p *Producer) HandleRequest(ctx context.Context, _ tick) (*rolluptypes.SignedBlock, error) {
	block, err := p.engine.BuildBlock(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("build_block failed")
		return nil, mjerr.Internal(err, "build block")
	}

	hash := block.Hash()
	sig, err := p.signer.Sign(hash.Bytes())
	if err != nil {
		return nil, mjerr.Internal(err, "sign block")
	}

	sb := &rolluptypes.SignedBlock{Block: block, Signature: sig, VerifyingKey: p.signer.VerifyingKey()}

	if err := p.client.SendBroadcastBlock(ctx, sb); err != nil {
		p.logger.Warn().Err(err).Uint64("number", block.Number()).Msg("broadcast failed")
		return sb, nil
	}

	p.logger.Debug().Uint64("number", block.Number()).Msg("block broadcast")
	return sb, nil
}

// Spawn starts the periodic producer task on interval. The worker and
// its ticker stop when ctx is cancelled; the leader coordinator stops
// them that way and does not call Release on the returned handle.
func Spawn(ctx context.Context, p *Producer, interval time.Duration, logger zerolog.Logger) *task.Handle[tick, *rolluptypes.SignedBlock] {
	if interval <= 0 {
		interval = DefaultBlockTime
	}
	return task.SpawnPeriodic(ctx, p, task.DefaultCapacity, interval, func() tick { return tick{} }, logger)
}

var _ task.Task[tick, *rolluptypes.SignedBlock] = (*Producer)(nil)
