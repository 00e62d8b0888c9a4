package projection

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/vmgatelabs/vmgate/internal/core"
)

// RequestRecord is the read-model row for one VM request. JSON tags define
// the shape handed to API consumers and stored in the Redis list cache.
type RequestRecord struct {
	RequestID string `gorm:"type:uuid;primaryKey" json:"requestId"`
	TenantID  string `gorm:"type:uuid;index;not null" json:"tenantId"`

	RequesterID    string `gorm:"type:uuid" json:"requesterId"`
	RequesterEmail string `json:"requesterEmail"`
	ProjectID      string `gorm:"type:uuid" json:"projectId"`
	VMName         string `json:"vmName"`
	Size           string `json:"size"`
	Justification  string `json:"justification"`
	Status         string `gorm:"index" json:"status"`

	ApprovedBy      string `json:"approvedBy,omitempty"`
	RejectedBy      string `json:"rejectedBy,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	CancelledBy     string `json:"cancelledBy,omitempty"`

	HypervisorRef    string `json:"hypervisorRef,omitempty"`
	IPAddress        string `json:"ipAddress,omitempty"`
	Hostname         string `json:"hostname,omitempty"`
	ProvisionWarning string `json:"provisionWarning,omitempty"`

	FailureReason string `json:"failureReason,omitempty"`
	RetryCount    int    `json:"retryCount,omitempty"`

	// StreamVersion is the stream version the row was derived from. It is
	// informational: writers never assume it matches the live stream.
	StreamVersion int `json:"streamVersion"`

	RequestedAt time.Time `json:"requestedAt"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName overrides the GORM default.
func (RequestRecord) TableName() string {
	return "request_records"
}

// RecordFrom flattens reconstituted aggregate state into its read-model row.
// Insert, rebuild and reconcile all converge on this one mapping.
func RecordFrom(request core.Request, streamVersion int) RequestRecord {
	return RequestRecord{
		RequestID:        request.RequestID,
		TenantID:         request.TenantID,
		RequesterID:      request.RequesterID,
		RequesterEmail:   request.RequesterEmail,
		ProjectID:        request.ProjectID,
		VMName:           request.VMName,
		Size:             request.Size,
		Justification:    request.Justification,
		Status:           string(request.Status),
		ApprovedBy:       request.ApprovedBy,
		RejectedBy:       request.RejectedBy,
		RejectionReason:  request.RejectionReason,
		CancelledBy:      request.CancelledBy,
		HypervisorRef:    request.HypervisorRef,
		IPAddress:        request.IPAddress,
		Hostname:         request.Hostname,
		ProvisionWarning: request.ProvisionWarning,
		FailureReason:    request.FailureReason,
		RetryCount:       request.RetryCount,
		StreamVersion:    streamVersion,
		RequestedAt:      request.CreatedAt,
	}
}

// SetupModels migrates the projection schema.
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&RequestRecord{}); err != nil {
		return errors.Wrap(err, "failed to migrate projection models")
	}

	return nil
}
