package listrequests

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const queryType = "ListRequests"

// ErrInvalidQuery is joined with the validator details when query input is rejected.
var ErrInvalidQuery = errors.New("invalid list requests query")

var validate = validator.New()

// Query asks for one tenant's request records, optionally narrowed to a status.
type Query struct {
	TenantID uuid.UUID `validate:"required"`
	Status   string    `validate:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED PROVISIONING READY FAILED"`
}

// QueryType returns the query type identifier.
func (q Query) QueryType() string {
	return queryType
}

// BuildQuery creates a validated Query. An empty status means all statuses.
func BuildQuery(tenantID uuid.UUID, status string) (Query, error) {
	query := Query{
		TenantID: tenantID,
		Status:   status,
	}

	if err := validate.Struct(query); err != nil {
		return Query{}, errors.Join(ErrInvalidQuery, err)
	}

	return query, nil
}
