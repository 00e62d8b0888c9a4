package cancelrequest

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "CancelRequest"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid cancel request command")

var validate = validator.New()

// Command carries the intent to withdraw a pending VM request. ActingUserID
// is the user asking for the cancellation; only the original requester may
// cancel, which the handler enforces against the loaded aggregate.
type Command struct {
	RequestID    uuid.UUID `validate:"required"`
	TenantID     uuid.UUID `validate:"required"`
	ActingUserID uuid.UUID `validate:"required"`
	Reason       string    `validate:"max=2000"`
	OccurredAt   core.OccurredAtTS
}

// CommandType returns the command type identifier.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a validated Command. The reason is optional.
func BuildCommand(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	actingUserID uuid.UUID,
	reason string,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:    requestID,
		TenantID:     tenantID,
		ActingUserID: actingUserID,
		Reason:       reason,
		OccurredAt:   core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
