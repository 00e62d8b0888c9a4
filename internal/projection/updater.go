package projection

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmgatelabs/vmgate/internal/core"
)

// Updater writes request records against the projection write handle.
// Every method is idempotent: redelivered side effects converge on the same
// row instead of failing.
type Updater struct {
	db *gorm.DB
}

// NewUpdater creates an updater on the given write handle.
func NewUpdater(db *gorm.DB) *Updater {
	return &Updater{db: db}
}

// StatusUpdate carries the fields a lifecycle transition writes. Zero-valued
// actor fields are left untouched on the row.
type StatusUpdate struct {
	Status          core.RequestStatus
	ApprovedBy      string
	RejectedBy      string
	RejectionReason string
	CancelledBy     string
	FailureReason   string
	RetryCount      int
	StreamVersion   int
}

// VMDetails carries the backend coordinates recorded when provisioning
// succeeds. Applying them marks the record READY.
type VMDetails struct {
	HypervisorRef string
	IPAddress     string
	Hostname      string
	Warning       string
	StreamVersion int
}

// Insert writes the record, replacing an existing row for the same request.
// Redelivered create side effects and rebuild passes converge on the stream
// state instead of conflicting.
func (u *Updater) Insert(ctx context.Context, rec RequestRecord) error {
	result := u.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		UpdateAll: true,
	}).Create(&rec)

	if result.Error != nil {
		return &DatabaseError{Operation: "insert", Err: result.Error}
	}

	return nil
}

// UpdateStatus applies a lifecycle transition to a tenant's record.
func (u *Updater) UpdateStatus(ctx context.Context, tenantID, requestID string, update StatusUpdate) error {
	result := u.db.WithContext(ctx).
		Model(&RequestRecord{}).
		Where("tenant_id = ? AND request_id = ?", tenantID, requestID).
		Updates(statusColumns(update))

	return translateUpdateResult("updateStatus", tenantID, requestID, result)
}

// UpdateVMDetails stores the provisioned VM's coordinates and marks the
// record READY.
func (u *Updater) UpdateVMDetails(ctx context.Context, tenantID, requestID string, details VMDetails) error {
	result := u.db.WithContext(ctx).
		Model(&RequestRecord{}).
		Where("tenant_id = ? AND request_id = ?", tenantID, requestID).
		Updates(map[string]interface{}{
			"status":            string(core.StatusReady),
			"hypervisor_ref":    details.HypervisorRef,
			"ip_address":        details.IPAddress,
			"hostname":          details.Hostname,
			"provision_warning": details.Warning,
			"stream_version":    details.StreamVersion,
		})

	return translateUpdateResult("updateVmDetails", tenantID, requestID, result)
}

// Remove deletes a tenant's record. A row that is already gone is success;
// removal stays idempotent under redelivery.
func (u *Updater) Remove(ctx context.Context, tenantID, requestID string) error {
	result := u.db.WithContext(ctx).
		Where("tenant_id = ? AND request_id = ?", tenantID, requestID).
		Delete(&RequestRecord{})

	return translateRemoveResult(result)
}

// statusColumns builds the column set for one transition. Status and stream
// version are always written; actor fields only when the transition carries
// them, so earlier actors survive later updates.
func statusColumns(update StatusUpdate) map[string]interface{} {
	columns := map[string]interface{}{
		"status":         string(update.Status),
		"stream_version": update.StreamVersion,
	}

	if update.ApprovedBy != "" {
		columns["approved_by"] = update.ApprovedBy
	}

	if update.RejectedBy != "" {
		columns["rejected_by"] = update.RejectedBy
		columns["rejection_reason"] = update.RejectionReason
	}

	if update.CancelledBy != "" {
		columns["cancelled_by"] = update.CancelledBy
	}

	if update.FailureReason != "" {
		columns["failure_reason"] = update.FailureReason
		columns["retry_count"] = update.RetryCount
	}

	return columns
}

// translateUpdateResult turns a GORM result into the updater's error
// taxonomy: infrastructure failure → DatabaseError, zero matched rows →
// NotFoundError.
func translateUpdateResult(operation, tenantID, requestID string, result *gorm.DB) error {
	if result.Error != nil {
		return &DatabaseError{Operation: operation, Err: result.Error}
	}

	if result.RowsAffected == 0 {
		return &NotFoundError{TenantID: tenantID, RequestID: requestID}
	}

	return nil
}

// translateRemoveResult differs from updates on zero rows: the desired end
// state is "row absent", so deleting nothing is success.
func translateRemoveResult(result *gorm.DB) error {
	if result.Error != nil {
		return &DatabaseError{Operation: "remove", Err: result.Error}
	}

	return nil
}
