// Package messaging moves notices between command handlers and background
// consumers. Notices are claim checks: they identify an aggregate and the
// consumer reloads the event stream for truth, so at-least-once delivery
// without ordering guarantees stays correct. Azure Service Bus carries them
// in production; a channel-backed bus stands in when no broker is configured.
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NoticeKindRequestApproved signals that a request entered APPROVED and the
// provisioning workflow should pick it up.
const NoticeKindRequestApproved = "request.approved"

// Notice identifies an aggregate needing follow-up work. It never carries
// request content.
type Notice struct {
	Kind          string    `json:"kind"`
	AggregateID   uuid.UUID `json:"aggregateId"`
	TenantID      uuid.UUID `json:"tenantId"`
	CorrelationID uuid.UUID `json:"correlationId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Handler processes one notice. A non-nil error returns the notice to the
// queue for redelivery.
type Handler func(ctx context.Context, notice Notice) error

// Bus publishes and consumes notices.
type Bus interface {
	Publish(ctx context.Context, notice Notice) error

	// Subscribe blocks consuming notices until ctx is cancelled.
	Subscribe(ctx context.Context, handler Handler) error

	Close(ctx context.Context) error
}

// Config holds the Service Bus connection settings. An empty connection
// string selects the in-process implementations.
type Config struct {
	ConnectionString string
	QueueName        string
}

// NewBus returns the Azure Service Bus implementation, or the in-process bus
// when no connection string is configured (local development and tests).
func NewBus(cfg Config) (Bus, error) {
	if cfg.ConnectionString == "" {
		log.Info().Msg("No Service Bus connection string configured, using in-process bus")
		return NewInProcessBus(), nil
	}

	return newServiceBus(cfg)
}
