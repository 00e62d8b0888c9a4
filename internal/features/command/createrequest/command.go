package createrequest

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vmgatelabs/vmgate/internal/core"
)

const commandType = "CreateRequest"

// ErrInvalidCommand is joined with the validator details when command input is rejected.
var ErrInvalidCommand = errors.New("invalid create request command")

var validate = validator.New()

// Command carries the intent to submit a new VM request for approval.
type Command struct {
	RequestID      uuid.UUID `validate:"required"`
	TenantID       uuid.UUID `validate:"required"`
	RequesterID    uuid.UUID `validate:"required"`
	RequesterEmail string    `validate:"required,email"`
	ProjectID      uuid.UUID `validate:"required"`
	VMName         string    `validate:"required,hostname_rfc1123,max=63"`
	Size           string    `validate:"required,oneof=S M L XL"`
	Justification  string    `validate:"required,max=2000"`
	OccurredAt     core.OccurredAtTS
}

// CommandType returns the command type identifier.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a validated Command. Bad input is rejected here so it
// never reaches the decision logic or the store.
func BuildCommand(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	requesterID uuid.UUID,
	requesterEmail string,
	projectID uuid.UUID,
	vmName string,
	size core.SizeString,
	justification string,
	occurredAt time.Time,
) (Command, error) {

	command := Command{
		RequestID:      requestID,
		TenantID:       tenantID,
		RequesterID:    requesterID,
		RequesterEmail: requesterEmail,
		ProjectID:      projectID,
		VMName:         vmName,
		Size:           size,
		Justification:  justification,
		OccurredAt:     core.ToOccurredAt(occurredAt),
	}

	if err := validate.Struct(command); err != nil {
		return Command{}, errors.Join(ErrInvalidCommand, err)
	}

	return command, nil
}
