package leader

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/batchproducer"
	"github.com/0xkanth/mojave-sequencer/internal/blockproducer"
	"github.com/0xkanth/mojave-sequencer/internal/metrics"
	"github.com/0xkanth/mojave-sequencer/internal/proofcoordinator"
	"github.com/0xkanth/mojave-sequencer/internal/task"
)

// Factories constructs the leader-only tasks; the coordinator calls
// these fresh on every follower->leader transition so each run gets a
// clean task instance.
type Factories struct {
	BlockProducer    func() *blockproducer.Producer
	BlockInterval    time.Duration
	BatchProducer    func() *batchproducer.Producer
	BatchInterval    time.Duration
	ProofCoordinator func() *proofcoordinator.Coordinator
}

// Coordinator polls an Elector and starts/stops the leader-only tasks
// in step with leadership transitions.
type Coordinator struct {
	elector      Elector
	factories    Factories
	pollInterval time.Duration
	logger       zerolog.Logger

	isLeader bool
	cancel   context.CancelFunc

	proofMu     sync.RWMutex
	proofHandle *task.Handle[proofcoordinator.Request, proofcoordinator.Response]
}

// ProofHandle returns the currently running proof coordinator's handle,
// or nil if this process is not currently the leader. The
// moj_sendProofResponse handler uses this to reach StoreProof; on a
// follower it gets nil and answers with mjerr.Stopped.
func (c *Coordinator) ProofHandle() *task.Handle[proofcoordinator.Request, proofcoordinator.Response] {
	c.proofMu.RLock()
	defer c.proofMu.RUnlock()
	return c.proofHandle
}

func New(elector Elector, factories Factories, pollInterval time.Duration, logger zerolog.Logger) *Coordinator {
	if pollInterval <= 0 {
		pollInterval = MinRenewInterval
	}
	return &Coordinator{elector: elector, factories: factories, pollInterval: pollInterval, logger: logger.With().Str("component", "leader").Logger()}
}

// Run polls the elector until ctx is cancelled, starting and stopping
// leader-only tasks on each transition, and stepping down on exit.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.stopIfLeader(context.Background())
			if err := c.elector.StepDown(context.Background()); err != nil {
				c.logger.Warn().Err(err).Msg("step down on shutdown failed")
			}
			return
		case <-ticker.C:
			acquired, err := c.elector.TryAcquireOrRenew(ctx)
			if err != nil {
				c.logger.Error().Err(err).Msg("leader election poll failed")
				continue
			}
			c.transition(ctx, acquired)
		}
	}
}

func (c *Coordinator) transition(ctx context.Context, acquired bool) {
	if acquired && !c.isLeader {
		c.logger.Info().Msg("became leader; starting leader-only tasks")
		c.startLeaderTasks(ctx)
		c.isLeader = true
		metrics.SetLeader(true)
	} else if !acquired && c.isLeader {
		c.logger.Info().Msg("lost leadership; stopping leader-only tasks")
		c.stopIfLeader(ctx)
		c.isLeader = false
		metrics.SetLeader(false)
	}
}

func (c *Coordinator) startLeaderTasks(ctx context.Context) {
	leaderCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	blockproducer.Spawn(leaderCtx, c.factories.BlockProducer(), c.factories.BlockInterval, c.logger)
	batchproducer.Spawn(leaderCtx, c.factories.BatchProducer(), c.factories.BatchInterval, c.logger)
	handle := proofcoordinator.Spawn(leaderCtx, c.factories.ProofCoordinator(), c.logger)

	c.proofMu.Lock()
	c.proofHandle = handle
	c.proofMu.Unlock()
}

// stopIfLeader cancels the leader-task context; the spawned task
// workers exit via their own ctx.Done() case (see internal/task). The
// block and batch producer handles are intentionally not retained, and
// the proof coordinator handle is kept only for ProofHandle and cleared
// here: nothing else holds a Clone of them, so there is no reference
// count to release, and calling Handle.Release after ctx cancellation
// would wait on a shutdown acknowledgement nobody can deliver.
func (c *Coordinator) stopIfLeader(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.proofMu.Lock()
	c.proofHandle = nil
	c.proofMu.Unlock()
}
