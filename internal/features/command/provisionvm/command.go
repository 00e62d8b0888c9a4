package provisionvm

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "ProvisionVM"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid provision vm command")

var validate = validator.New()

// Command asks for the actual backend provisioning of a request that is
// already in PROVISIONING. Everything the backend needs (size, name, project)
// is taken from the aggregate, not the command: the command only names the
// stream to work on. WorkflowID is optional; when set, appended events are
// correlated to that workflow instead of starting a new one.
type Command struct {
	RequestID   uuid.UUID `validate:"required"`
	TenantID    uuid.UUID `validate:"required"`
	InitiatedBy uuid.UUID `validate:"required"`
	WorkflowID  uuid.UUID
	OccurredAt  core.OccurredAtTS
}

// CommandType returns the command type identifier.
func (c Command) CommandType() string {
	return commandType
}

// InWorkflow returns a copy of the command tagged with the workflow that
// dispatched it.
func (c Command) InWorkflow(workflowID uuid.UUID) Command {
	c.WorkflowID = workflowID
	return c
}

// BuildCommand creates a validated Command.
func BuildCommand(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	initiatedBy uuid.UUID,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:   requestID,
		TenantID:    tenantID,
		InitiatedBy: initiatedBy,
		OccurredAt:  core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
