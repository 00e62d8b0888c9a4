package approverequest

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "ApproveRequest"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid approve request command")

var validate = validator.New()

// Command carries an approver's decision to let a pending request proceed.
type Command struct {
	RequestID  uuid.UUID `validate:"required"`
	TenantID   uuid.UUID `validate:"required"`
	ApprovedBy uuid.UUID `validate:"required"`
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
	approvedBy uuid.UUID,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:  requestID,
		TenantID:   tenantID,
		ApprovedBy: approvedBy,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
