package markprovisioning

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "MarkProvisioning"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid mark provisioning command")

var validate = validator.New()

// Command moves an approved request into PROVISIONING before any backend work
// starts. StartedBy is whoever kicked provisioning off, usually the approver
// relayed by the saga. WorkflowID is optional; when set, the appended event's
// metadata is correlated to that workflow instead of starting a new one.
type Command struct {
	RequestID  uuid.UUID `validate:"required"`
	TenantID   uuid.UUID `validate:"required"`
	StartedBy  uuid.UUID `validate:"required"`
	WorkflowID uuid.UUID
	OccurredAt core.OccurredAtTS
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
	startedBy uuid.UUID,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:  requestID,
		TenantID:   tenantID,
		StartedBy:  startedBy,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
