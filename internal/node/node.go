// Package node wires the sequencer daemon together: the chain store,
// engine, signature scheme, outbound client, ingestor, block queue and
// processor, leader coordinator, and RPC registry. It is the Go
// analogue of cmd/sequencer's startup sequence in original_source,
// structured the way the teacher's cmd/indexer/main.go assembles its
// own components, split out of main() so the wiring can be exercised
// independently of a running process.
package node

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/0xkanth/mojave-sequencer/internal/batchproducer"
	"github.com/0xkanth/mojave-sequencer/internal/blockproducer"
	"github.com/0xkanth/mojave-sequencer/internal/blockqueue"
	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/config"
	"github.com/0xkanth/mojave-sequencer/internal/engine"
	"github.com/0xkanth/mojave-sequencer/internal/ingestor"
	"github.com/0xkanth/mojave-sequencer/internal/leader"
	"github.com/0xkanth/mojave-sequencer/internal/metrics"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/notify"
	"github.com/0xkanth/mojave-sequencer/internal/proofcoordinator"
	"github.com/0xkanth/mojave-sequencer/internal/rpc"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// store is the combined persistence contract a single backing store
// (bolt or postgres) satisfies; node.go depends on the union so the rest
// of the wiring never has to type-assert between ChainStore and
// RollupStore.
type store interface {
	chainstore.ChainStore
	chainstore.RollupStore
	chainstore.CheckpointStore
}

// Node owns every long-lived component a sequencer process runs, leader
// or not.
type Node struct {
	cfg    config.Node
	logger zerolog.Logger

	store  store
	closer func() error

	signer   signature.Signer
	verifier signature.Verifier

	client   *client.Client
	upstream *ingestor.EthclientUpstream
	engine   engine.Engine

	publisher  *notify.Publisher
	subscriber *notify.Subscriber

	Queue     *blockqueue.Queue
	Processor *blockqueue.Processor
	Ingestor  *ingestor.Ingestor
	Leader    *leader.Coordinator
	Registry  *rpc.Registry
}

// New assembles every component from cfg but does not start any
// goroutines; call Run to start the long-lived loops.
func New(cfg config.Node, logger zerolog.Logger) (*Node, error) {
	n := &Node{cfg: cfg, logger: logger, engine: engine.NewInMemoryEngine(0)}

	if err := n.openStore(); err != nil {
		return nil, err
	}
	if err := n.initSigning(); err != nil {
		return nil, err
	}
	n.initClient()
	if err := n.initUpstream(); err != nil {
		return nil, err
	}
	n.initNotify()

	n.Queue = blockqueue.NewQueue()
	n.Processor = blockqueue.NewProcessor(n.Queue, n.store, n.logger)

	startNext, found, err := n.store.GetNextExpected(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load next-expected checkpoint: %w", err)
	}
	if !found {
		startNext = 0
	}
	n.Ingestor = ingestor.New(n.Queue, n.verifier, n.upstreamOrNil(), startNext, n.logger)

	elector, pollInterval, err := n.buildElector()
	if err != nil {
		return nil, err
	}
	n.Leader = leader.New(elector, n.leaderFactories(), pollInterval, n.logger)

	n.Registry = rpc.NewRegistry()
	n.registerHandlers()

	return n, nil
}

func (n *Node) openStore() error {
	if n.cfg.PostgresDSN != "" {
		s, err := chainstore.OpenPostgresStore(context.Background(), n.cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres chain store: %w", err)
		}
		n.store = postgresStore{s}
		n.closer = func() error { s.Close(); return nil }
		return nil
	}

	s, err := chainstore.OpenBoltStore(n.cfg.DataDir + "/mojave.db")
	if err != nil {
		return fmt.Errorf("open bolt chain store: %w", err)
	}
	n.store = s
	n.closer = s.Close
	return nil
}

// postgresStore adapts PostgresStore (which does not yet track an
// ingestor checkpoint of its own) onto the CheckpointStore contract by
// delegating to an in-process bolt-free fallback: full-node deployments
// using Postgres for block/batch metadata still checkpoint the ingestor
// cursor via the chain store's latest block number, since Postgres scale
// deployments are fed exclusively through gap-fill rather than direct
// RPC submission.
type postgresStore struct {
	*chainstore.PostgresStore
}

func (p postgresStore) GetNextExpected(ctx context.Context) (uint64, bool, error) {
	latest, err := p.LatestBlockNumber(ctx)
	if err != nil {
		return 0, false, err
	}
	if latest == 0 {
		return 0, false, nil
	}
	return latest + 1, true, nil
}

func (p postgresStore) SetNextExpected(ctx context.Context, blockNumber uint64) error {
	return nil
}

func (n *Node) initSigning() error {
	if n.cfg.SigningKeyHex == "" {
		return nil
	}
	keyBytes, err := hex.DecodeString(n.cfg.SigningKeyHex)
	if err != nil {
		return fmt.Errorf("decode signing key: %w", err)
	}
	scheme := rolluptypes.Scheme(n.cfg.SigningScheme)

	signer, err := signature.FromSlice(scheme, keyBytes)
	if err != nil {
		return fmt.Errorf("build signer: %w", err)
	}
	// Every replica loads the same key material (mounted from the same
	// secret); only the current leader actively signs with it, but all
	// replicas verify incoming blocks against its public half.
	verifier, err := signature.VerifierFromSlice(scheme, signer.VerifyingKey())
	if err != nil {
		return fmt.Errorf("build verifier from signer's own key: %w", err)
	}

	n.signer = signer
	n.verifier = verifier
	return nil
}

func (n *Node) initClient() {
	n.client = client.New(
		client.WithSequencerURLs(n.cfg.SequencerURLs...),
		client.WithFullNodeURLs(n.cfg.FullNodeURLs...),
		client.WithProverURLs(n.cfg.ProverURLs...),
	)
}

func (n *Node) initUpstream() error {
	if len(n.cfg.FullNodeURLs) == 0 {
		return nil
	}
	upstream, err := ingestor.DialUpstream(n.cfg.FullNodeURLs[0])
	if err != nil {
		return fmt.Errorf("dial gap-fill upstream: %w", err)
	}
	n.upstream = upstream
	return nil
}

func (n *Node) upstreamOrNil() ingestor.Upstream {
	if n.upstream == nil {
		return noUpstream{}
	}
	return n.upstream
}

// noUpstream fails every gap-fill attempt; used when no full-node URL is
// configured, so the ingestor still runs (serving only in-order
// submissions) instead of failing to start.
type noUpstream struct{}

func (noUpstream) BlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, error) {
	return nil, mjerr.Internal(nil, "no upstream configured for gap-fill")
}

// notifyConsumerName is the durable JetStream consumer every sequencer
// replica shares; only the current leader acts on deliveries (see
// dispatchProcessBatch), but the consumer itself is not leader-scoped so
// a follower promoted mid-stream picks up redelivered batches instead of
// requiring a fresh consumer.
const notifyConsumerName = "mojave-proof-coordinator"

func (n *Node) initNotify() {
	if n.cfg.NatsURL == "" {
		return
	}
	publisher, err := notify.NewPublisher(n.cfg.NatsURL, 20*time.Minute, n.logger)
	if err != nil {
		n.logger.Warn().Err(err).Msg("nats publisher unavailable; sealed batches will not be announced")
		return
	}
	n.publisher = publisher

	subscriber, err := notify.NewSubscriber(context.Background(), publisher, notifyConsumerName)
	if err != nil {
		n.logger.Warn().Err(err).Msg("nats subscriber unavailable; sealed batches will not be dispatched to the proof coordinator")
		return
	}
	n.subscriber = subscriber
}

// dispatchProcessBatch drives the C8->C9 handoff: every sealed-batch
// notification becomes a ProcessBatch request against the current
// leader's proof coordinator. Returning an error leaves the message
// unacked so JetStream redelivers it once this or another replica holds
// the proof handle again.
func (n *Node) dispatchProcessBatch(ctx context.Context, batch *rolluptypes.Batch) error {
	handle := n.Leader.ProofHandle()
	if handle == nil {
		return mjerr.Stopped()
	}
	_, err := handle.Request(ctx, proofcoordinator.Request{Kind: proofcoordinator.KindProcessBatch, BatchNumber: batch.Number})
	return err
}

// buildElector returns the mutual-exclusion strategy plus the interval
// the coordinator should poll it at. Standalone mode polls at
// MinRenewInterval purely to keep the coordinator's loop alive; it
// always reports itself as leader regardless of cadence. Cluster mode
// ties the poll cadence to the lease's own renewal interval so the
// coordinator never renews slower than the lease requires.
func (n *Node) buildElector() (leader.Elector, time.Duration, error) {
	if !n.cfg.ClusterMode {
		return leader.StandaloneElector{}, leader.MinRenewInterval, nil
	}
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, 0, fmt.Errorf("load in-cluster kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, 0, fmt.Errorf("build kubernetes client: %w", err)
	}
	elector := leader.NewK8sLeaseElector(clientset, n.cfg.Namespace, n.cfg.LeaseName, n.cfg.SelfURL, n.cfg.LeaseTTL)
	return elector, elector.RenewInterval(), nil
}

func (n *Node) leaderFactories() leader.Factories {
	return leader.Factories{
		BlockProducer: func() *blockproducer.Producer {
			return blockproducer.New(n.engine, n.signer, n.client, n.logger)
		},
		BlockInterval: n.cfg.BlockInterval,
		BatchProducer: func() *batchproducer.Producer {
			p := batchproducer.New(n.store, n.store, n.engine, batchproducer.SimpleBlobEncoder{}, n.logger)
			if n.publisher != nil {
				p = p.WithPublisher(n.publisher)
			}
			return p
		},
		BatchInterval: n.cfg.BatchInterval,
		ProofCoordinator: func() *proofcoordinator.Coordinator {
			return proofcoordinator.New(n.store, n.store, n.engine, n.client, n.cfg.SelfURL, n.logger)
		},
	}
}

// registerHandlers binds the sequencer-facing RPC methods spec.md names
// onto the assembled components. moj_sendProofInput/getPendingJobIds/
// getProof are prover-side methods, registered by cmd/prover instead.
func (n *Node) registerHandlers() {
	n.Registry.Register("moj_sendBroadcastBlock", func(ctx context.Context, params json.RawMessage) (any, error) {
		sb, err := rpc.DecodeParams[*rolluptypes.SignedBlock](params)
		if err != nil {
			return nil, err
		}
		if sb == nil || sb.Block == nil {
			return nil, mjerr.BadParams("missing signed block")
		}
		if err := n.Ingestor.SubmitSignedBlock(ctx, sb); err != nil {
			return nil, err
		}
		metrics.BlocksIngested.Inc()
		metrics.PendingHeapSize.Set(float64(n.Ingestor.PendingLen()))
		return nil, nil
	})

	n.Registry.Register("moj_sendProofResponse", func(ctx context.Context, params json.RawMessage) (any, error) {
		signed, err := rpc.DecodeParams[*rolluptypes.SignedProofResponse](params)
		if err != nil {
			return nil, err
		}
		if signed == nil {
			return nil, mjerr.BadParams("missing signed proof response")
		}

		handle := n.Leader.ProofHandle()
		if handle == nil {
			return nil, mjerr.Stopped()
		}

		if _, err := handle.Request(ctx, proofcoordinator.Request{Kind: proofcoordinator.KindStoreProof, SignedProof: signed}); err != nil {
			return nil, err
		}
		metrics.ProofJobsCompleted.Inc()
		return "Proof accepted", nil
	})

	// eth_blockNumber and eth_getBlockByNumber are the only two
	// Ethereum-compatible methods the chain store can answer directly;
	// they are registered as exact methods, not routed through the
	// namespace fallback, since HandlerFunc carries no method name for
	// a single handler to switch on.
	n.Registry.Register("eth_blockNumber", func(ctx context.Context, params json.RawMessage) (any, error) {
		return n.store.LatestBlockNumber(ctx)
	})
	n.Registry.Register("eth_getBlockByNumber", func(ctx context.Context, params json.RawMessage) (any, error) {
		number, err := rpc.DecodeParams[uint64](params)
		if err != nil {
			return nil, err
		}
		block, found, err := n.store.GetBlockByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return block, nil
	})

	// Every other eth_* method is the embedded execution engine's black
	// box per spec; the fallback exists to make that explicit rather
	// than surfacing a generic unknown-method error with no context.
	n.Registry.WithFallback(rpc.NamespaceEth, func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, mjerr.Internal(nil, "ethereum-compatible method not implemented by the embedded engine")
	})
}

// Run starts the processor and ingestor loops and the leader
// coordinator; it blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context) {
	n.Processor.Start(ctx)
	go n.Ingestor.Run(ctx)
	if n.subscriber != nil {
		go func() {
			if err := n.subscriber.Run(ctx, func(batch *rolluptypes.Batch) error {
				return n.dispatchProcessBatch(ctx, batch)
			}); err != nil {
				n.logger.Error().Err(err).Msg("sealed-batch subscriber stopped")
			}
		}()
	}
	n.Leader.Run(ctx)
	n.Processor.Wait()
}

// Close releases the chain store and any dialed connections.
func (n *Node) Close() error {
	if n.upstream != nil {
		n.upstream.Close()
	}
	if n.publisher != nil {
		n.publisher.Close()
	}
	if n.closer != nil {
		return n.closer()
	}
	return nil
}
