package rejectrequest

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "RejectRequest"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid reject request command")

var validate = validator.New()

// Command carries an approver's decision to decline a pending request.
// Unlike cancellation, a rejection always names its reason.
type Command struct {
	RequestID  uuid.UUID `validate:"required"`
	TenantID   uuid.UUID `validate:"required"`
	RejectedBy uuid.UUID `validate:"required"`
	Reason     string    `validate:"required,max=2000"`
	OccurredAt core.OccurredAtTS
}

// CommandType returns the command type identifier.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a validated Command.
func BuildCommand(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	rejectedBy uuid.UUID,
	reason string,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:  requestID,
		TenantID:   tenantID,
		RejectedBy: rejectedBy,
		Reason:     reason,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
