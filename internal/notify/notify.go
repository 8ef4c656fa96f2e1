// Package notify supplies the sealed-batch notification queue the
// batch producer publishes to and the batch committer consumes from.
// original_source's k8s_leader.rs wires this gap with a placeholder
// ("TODO: replace by implementation backed by a real queue",
// mojave_msgio::dummy::Dummy); this package replaces that stub with a
// real NATS JetStream queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

const (
	streamName          = "MOJAVE_BATCHES"
	streamSubject       = "MOJAVE.BATCH.SEALED"
	streamCreateTimeout = 10 * time.Second
)

// Publisher announces sealed batches to whatever downstream consumer is
// responsible for committing/verifying them on the settlement layer.
type Publisher struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	logger zerolog.Logger
}

func NewPublisher(natsURL string, persistDuration time.Duration, logger zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("mojave-sequencer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateTimeout)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{streamSubject},
		MaxAge:     persistDuration,
		Storage:    jetstream.FileStorage,
		Duplicates: 20 * time.Minute,
		Retention:  jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	logger.Info().Str("stream", streamName).Msg("batch notification publisher initialized")
	return &Publisher{js: js, nc: nc, logger: logger}, nil
}

// PublishSealed announces a newly sealed batch; the NATS message id
// (the batch number) dedupes retried publishes within the stream's
// duplicate window.
func (p *Publisher) PublishSealed(ctx context.Context, batch *rolluptypes.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	msgID := fmt.Sprintf("batch-%d", batch.Number)
	_, err = p.js.Publish(ctx, streamSubject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		p.logger.Error().Err(err).Uint64("batch", batch.Number).Msg("publish sealed batch failed")
		return fmt.Errorf("publish to NATS: %w", err)
	}

	p.logger.Debug().Uint64("batch", batch.Number).Msg("sealed batch published")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

func (p *Publisher) Healthy() bool { return p.nc != nil && p.nc.IsConnected() }
