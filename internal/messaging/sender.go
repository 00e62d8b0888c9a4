package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"
)

// Sender publishes full message payloads to a queue. Notifications use it:
// their consumers are external mail and webhook workers that cannot reload
// event streams, so unlike Notice traffic the body carries the content.
type Sender interface {
	SendMessage(ctx context.Context, body interface{}, messageType string) error
	Close() error
}

// NewSender creates an Azure Service Bus sender, or a log-only sender when
// no connection string is configured.
func NewSender(cfg Config) (Sender, error) {
	if cfg.ConnectionString == "" {
		return &logSender{queueName: cfg.QueueName}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &queueSender{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

type queueSender struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// SendMessage marshals the body to JSON and sends it with the message type
// in the application properties.
func (s *queueSender) SendMessage(ctx context.Context, body interface{}, messageType string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"type": messageType,
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// Close closes the sender and the underlying client.
func (s *queueSender) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}

// logSender logs messages instead of sending them. Local development fallback.
type logSender struct {
	queueName string
}

func (s *logSender) SendMessage(_ context.Context, body interface{}, messageType string) error {
	log.Info().
		Str("queue", s.queueName).
		Str("type", messageType).
		Interface("body", body).
		Msg("Service Bus disabled, logging message instead")

	return nil
}

func (s *logSender) Close() error { return nil }
