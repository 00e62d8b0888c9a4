// Package quota enforces per-tenant request limits. The create handler runs
// the check before constructing any event, so a rejected request never
// touches a stream.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/projection"
)

// ErrQuotaExceeded is the sentinel matched by errors.Is for any QuotaExceededError.
var ErrQuotaExceeded = errors.New("tenant quota exceeded")

// QuotaExceededError reports which limit a create request would break.
type QuotaExceededError struct {
	TenantID string
	Active   int
	Limit    int
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("tenant %s has %d active requests, limit is %d", e.TenantID, e.Active, e.Limit)
}

// Is makes the typed error match the ErrQuotaExceeded sentinel.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Checker decides whether a tenant may submit another VM request. The size
// is part of the contract so capacity-aware checkers can weigh it.
type Checker interface {
	Check(ctx context.Context, tenantID uuid.UUID, size string) error
}

// AllowAll performs no quota checking. It is the default when no limit is
// configured.
type AllowAll struct{}

// Check implements Checker and always allows.
func (AllowAll) Check(_ context.Context, _ uuid.UUID, _ string) error { return nil }

// ActiveCountLimit caps how many non-terminal requests a tenant can hold at
// once. It counts projection rows on the read handle; projection lag can let
// a burst slip through, which is acceptable for a soft quota. A failing
// count query fails the check: quota enforcement degrades closed.
type ActiveCountLimit struct {
	readOnlyDB *gorm.DB
	limit      int
}

// NewActiveCountLimit creates a checker allowing up to limit active requests
// per tenant.
func NewActiveCountLimit(readOnlyDB *gorm.DB, limit int) *ActiveCountLimit {
	return &ActiveCountLimit{
		readOnlyDB: readOnlyDB,
		limit:      limit,
	}
}

// Check implements Checker.
func (c *ActiveCountLimit) Check(ctx context.Context, tenantID uuid.UUID, _ string) error {
	var active int64

	err := c.readOnlyDB.WithContext(ctx).
		Model(&projection.RequestRecord{}).
		Where("tenant_id = ? AND status NOT IN ?", tenantID.String(), terminalStatuses()).
		Count(&active).Error
	if err != nil {
		return pkgerrors.Wrap(err, "failed to count active requests")
	}

	if int(active) >= c.limit {
		return &QuotaExceededError{
			TenantID: tenantID.String(),
			Active:   int(active),
			Limit:    c.limit,
		}
	}

	return nil
}

func terminalStatuses() []string {
	statuses := make([]string, 0, 4)
	for _, status := range core.AllStatuses() {
		if status.IsTerminal() {
			statuses = append(statuses, string(status))
		}
	}

	return statuses
}
