package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

const (
	receiveBatchSize = 10
	receiveRetryWait = 2 * time.Second
)

// serviceBus implements Bus on Azure Service Bus. Messages are received in
// peek-lock mode: completed after the handler succeeds, abandoned for
// redelivery when it fails.
type serviceBus struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

func newServiceBus(cfg Config) (*serviceBus, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &serviceBus{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// Publish sends one notice to the queue.
func (b *serviceBus) Publish(ctx context.Context, notice Notice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	correlationID := notice.CorrelationID.String()
	msg := &azservicebus.Message{
		Body:          data,
		CorrelationID: &correlationID,
		ApplicationProperties: map[string]interface{}{
			"kind": notice.Kind,
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	}

	return b.sender.SendMessage(ctx, msg, nil)
}

// Subscribe receives notices in batches until ctx is cancelled.
func (b *serviceBus) Subscribe(ctx context.Context, handler Handler) error {
	receiver, err := b.client.NewReceiverForQueue(b.queueName, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return fmt.Errorf("failed to create Service Bus receiver: %w", err)
	}
	defer func() {
		if closeErr := receiver.Close(context.Background()); closeErr != nil {
			log.Error().Err(closeErr).Str("queue", b.queueName).Msg("Error closing Service Bus receiver")
		}
	}()

	log.Info().Str("queue", b.queueName).Msg("Consuming notices")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		messages, err := receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.Error().Err(err).Str("queue", b.queueName).Msg("Error receiving messages")

			select {
			case <-time.After(receiveRetryWait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, msg := range messages {
			b.dispatch(ctx, receiver, msg, handler)
		}
	}
}

func (b *serviceBus) dispatch(
	ctx context.Context,
	receiver *azservicebus.Receiver,
	msg *azservicebus.ReceivedMessage,
	handler Handler,
) {
	var notice Notice
	if err := jsoniter.ConfigFastest.Unmarshal(msg.Body, &notice); err != nil {
		// Redelivering an undecodable message would loop forever.
		log.Error().Err(err).Str("messageId", msg.MessageID).Msg("Dead-lettering undecodable notice")

		if dlErr := receiver.DeadLetterMessage(ctx, msg, nil); dlErr != nil {
			log.Error().Err(dlErr).Str("messageId", msg.MessageID).Msgf("(DeadLetterMessage) err: %v", dlErr)
		}
		return
	}

	if err := handler(ctx, notice); err != nil {
		log.Error().
			Err(err).
			Str("messageId", msg.MessageID).
			Str("kind", notice.Kind).
			Str("aggregateId", notice.AggregateID.String()).
			Msg("Handler failed, returning notice to the queue")

		if abandonErr := receiver.AbandonMessage(ctx, msg, nil); abandonErr != nil {
			log.Error().Err(abandonErr).Str("messageId", msg.MessageID).Msgf("(AbandonMessage) err: %v", abandonErr)
		}
		return
	}

	if err := receiver.CompleteMessage(ctx, msg, nil); err != nil {
		log.Error().Err(err).Str("messageId", msg.MessageID).Msgf("(CompleteMessage) err: %v", err)
	}
}

// Close closes the sender and the underlying client.
func (b *serviceBus) Close(ctx context.Context) error {
	if b.sender != nil {
		if err := b.sender.Close(ctx); err != nil {
			return err
		}
	}

	if b.client != nil {
		return b.client.Close(ctx)
	}

	return nil
}
