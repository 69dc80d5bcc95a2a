package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/service"
)

// Consumer ingests dispatch requests from a Kafka topic through a
// consumer group and hands them to the dispatch orchestrator.
type Consumer struct {
	topic         string
	dispatcher    service.DispatchService
	consumerGroup sarama.ConsumerGroup
	log           *slog.Logger
}

// NewConsumer constructs a new Kafka consumer. The consumer group is
// injected so tests and main control its configuration.
func NewConsumer(
	topic string,
	consumerGroup sarama.ConsumerGroup,
	dispatcher service.DispatchService,
	log *slog.Logger,
) *Consumer {
	return &Consumer{
		topic:         topic,
		dispatcher:    dispatcher,
		consumerGroup: consumerGroup,
		log:           log,
	}
}

// Start begins the consumer loop, blocking until the context is
// cancelled or the consumer group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumerGroup.Close(); err != nil {
			c.log.Warn("Failed to close consumer group", slog.Any("error", err))
		}
	}()

	c.log.Info("Kafka consumer started", slog.String("topic", c.topic))

	backoff := 1 * time.Second
	for {
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			c.log.Error("Error consuming messages", slog.Any("error", err))

			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}

			// Back off on transient errors.
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		if ctx.Err() != nil {
			c.log.Info("Context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

// Setup logs the partition assignment when a session starts.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("Partition assignment",
			slog.String("topic", topic),
			slog.Any("partitions", partitions),
		)
	}
	return nil
}

// Cleanup is called once when the consumer session ends.
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	c.log.Info("Kafka session cleanup complete")
	return nil
}

// ConsumeClaim processes messages for one assigned partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.log.Debug("Message received",
			slog.String("topic", message.Topic),
			slog.Int("partition", int(message.Partition)),
			slog.Int64("offset", message.Offset),
		)

		var payload model.DispatchPayload
		if err := json.Unmarshal(message.Value, &payload); err != nil {
			c.log.Error("Failed to decode dispatch request", slog.Any("error", err))
			// Skip malformed messages rather than wedging the partition.
			session.MarkMessage(message, "")
			continue
		}

		_, err := c.dispatcher.Dispatch(session.Context(), payload)
		switch {
		case err == nil:
		case apperr.IsRateLimited(err):
			// A denied send is final for this message; the caller is
			// expected to re-request once the window opens.
			c.log.Warn("Dispatch rate limited", slog.String("customer_id", payload.CustomerID))
		case apperr.IsNotFound(err) || errors.Is(err, apperr.ErrInvalidPayload) || errors.Is(err, apperr.ErrUnknownTemplate):
			c.log.Error("Dispatch rejected", slog.Any("error", err))
		default:
			// Infrastructure errors: leave the offset uncommitted so
			// the message is redelivered.
			c.log.Error("Dispatch failed", slog.Any("error", err))
			continue
		}

		session.MarkMessage(message, "")
	}
	return nil
}
