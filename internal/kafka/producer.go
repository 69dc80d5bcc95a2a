package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

// EventProducer publishes notification status events to a Kafka topic.
// It implements service.EventPublisher.
type EventProducer struct {
	asyncProducer sarama.AsyncProducer
	topic         string
	log           *slog.Logger
	wg            *sync.WaitGroup
	closeOnce     sync.Once
}

// NewEventProducer wires the async producer. The WaitGroup tracks the
// success/error handler goroutines for graceful shutdown.
func NewEventProducer(asyncProducer sarama.AsyncProducer, topic string, log *slog.Logger, wg *sync.WaitGroup) *EventProducer {
	if asyncProducer == nil || log == nil || wg == nil {
		panic("NewEventProducer: nil dependencies provided")
	}
	if topic == "" {
		panic("NewEventProducer: topic must not be empty")
	}
	return &EventProducer{
		asyncProducer: asyncProducer,
		topic:         topic,
		log:           log,
		wg:            wg,
	}
}

// Start launches background handlers for success and error channels.
func (p *EventProducer) Start(ctx context.Context) {
	p.log.Info("Starting Kafka event producer handlers")
	p.wg.Add(2)
	go p.handleSuccess(ctx)
	go p.handleErrors(ctx)
}

func (p *EventProducer) handleSuccess(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case msg, ok := <-p.asyncProducer.Successes():
			if !ok {
				p.log.Info("Kafka successes channel closed")
				return
			}
			key, _ := msg.Key.Encode()
			p.log.Debug("Event delivered",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("key", string(key)))
		case <-ctx.Done():
			p.log.Info("Kafka success handler stopped by context")
			return
		}
	}
}

func (p *EventProducer) handleErrors(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case err, ok := <-p.asyncProducer.Errors():
			if !ok {
				p.log.Info("Kafka errors channel closed")
				return
			}
			p.log.Error("Event delivery failed",
				slog.String("topic", err.Msg.Topic),
				slog.Any("error", err.Err))
		case <-ctx.Done():
			p.log.Info("Kafka error handler stopped by context")
			return
		}
	}
}

// Publish queues one status event, keyed by notification ID so all
// events for a record land on the same partition.
func (p *EventProducer) Publish(ctx context.Context, ev model.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(ev.NotificationID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	select {
	case p.asyncProducer.Input() <- msg:
		return nil
	case <-ctx.Done():
		p.log.Warn("Event publish cancelled by context",
			slog.String("notification_id", ev.NotificationID))
		return ctx.Err()
	}
}

// Close shuts down the producer and waits for its handlers.
func (p *EventProducer) Close() {
	p.closeOnce.Do(func() {
		p.log.Info("Closing Kafka event producer")
		p.asyncProducer.AsyncClose()
		p.wg.Wait()
		p.log.Info("Kafka event producer closed")
	})
}
