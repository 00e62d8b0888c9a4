package projection

import (
	"context"

	"gorm.io/gorm"
)

// Reader serves read-model queries against the projection read handle.
// Queries never touch the event store; they see whatever the projection has
// caught up to.
type Reader struct {
	db *gorm.DB
}

// NewReader creates a reader on the given read handle.
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// ListByTenant returns a tenant's request records, newest first. An empty
// status lists all of them; otherwise only rows in that status are returned.
func (r *Reader) ListByTenant(ctx context.Context, tenantID, status string) ([]RequestRecord, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("requested_at DESC")

	if status != "" {
		query = query.Where("status = ?", status)
	}

	var records []RequestRecord
	if result := query.Find(&records); result.Error != nil {
		return nil, &DatabaseError{Operation: "listByTenant", Err: result.Error}
	}

	return records, nil
}

