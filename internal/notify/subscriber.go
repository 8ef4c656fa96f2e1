package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Subscriber drains sealed-batch notifications through a durable
// JetStream consumer; the sequencer node uses it to hand each sealed
// batch to the proof coordinator (see internal/node).
type Subscriber struct {
	consumer jetstream.Consumer
}

func NewSubscriber(ctx context.Context, p *Publisher, consumerName string) (*Subscriber, error) {
	consumer, err := p.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: streamSubject,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return &Subscriber{consumer: consumer}, nil
}

// Run drains sealed-batch notifications until ctx is cancelled, calling
// handle for each one and acking only on success so a crash mid-handle
// redelivers the batch.
func (s *Subscriber) Run(ctx context.Context, handle func(*rolluptypes.Batch) error) error {
	cc, err := s.consumer.Consume(func(msg jetstream.Msg) {
		var batch rolluptypes.Batch
		if err := json.Unmarshal(msg.Data(), &batch); err != nil {
			msg.Nak()
			return
		}
		if err := handle(&batch); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
