// Package notify publishes request lifecycle notifications for requesters
// and approvers. Delivery (mail, chat, webhooks) happens in external workers
// consuming the notification queue; this package only publishes. Sends are
// best-effort: callers log failures and never fail the command.
package notify

import (
	"context"

	"github.com/vmgatelabs/vmgate/internal/messaging"
)

// Message types stamped into the queue message application properties so
// downstream workers can route without unmarshalling the body.
const (
	TypeRequestCreated  = "request.created"
	TypeRequestApproved = "request.approved"
	TypeRequestRejected = "request.rejected"
)

// CreatedNotification tells approvers a new request awaits their decision.
type CreatedNotification struct {
	RequestID      string `json:"requestId"`
	TenantID       string `json:"tenantId"`
	RequesterEmail string `json:"requesterEmail"`
	VMName         string `json:"vmName"`
	Size           string `json:"size"`
	ProjectID      string `json:"projectId"`
}

// ApprovedNotification tells the requester their request was approved.
type ApprovedNotification struct {
	RequestID      string `json:"requestId"`
	TenantID       string `json:"tenantId"`
	RequesterEmail string `json:"requesterEmail"`
	VMName         string `json:"vmName"`
	ApprovedBy     string `json:"approvedBy"`
}

// RejectedNotification tells the requester their request was declined.
type RejectedNotification struct {
	RequestID      string `json:"requestId"`
	TenantID       string `json:"tenantId"`
	RequesterEmail string `json:"requesterEmail"`
	VMName         string `json:"vmName"`
	RejectedBy     string `json:"rejectedBy"`
	Reason         string `json:"reason"`
}

// Notifier publishes lifecycle notifications.
type Notifier interface {
	SendCreatedNotification(ctx context.Context, notification CreatedNotification) error
	SendApprovedNotification(ctx context.Context, notification ApprovedNotification) error
	SendRejectedNotification(ctx context.Context, notification RejectedNotification) error
}

// QueueNotifier publishes notifications to the notification queue.
type QueueNotifier struct {
	sender messaging.Sender
}

// NewQueueNotifier creates a notifier publishing through the given sender.
func NewQueueNotifier(sender messaging.Sender) *QueueNotifier {
	return &QueueNotifier{sender: sender}
}

func (n *QueueNotifier) SendCreatedNotification(ctx context.Context, notification CreatedNotification) error {
	return n.sender.SendMessage(ctx, notification, TypeRequestCreated)
}

func (n *QueueNotifier) SendApprovedNotification(ctx context.Context, notification ApprovedNotification) error {
	return n.sender.SendMessage(ctx, notification, TypeRequestApproved)
}

func (n *QueueNotifier) SendRejectedNotification(ctx context.Context, notification RejectedNotification) error {
	return n.sender.SendMessage(ctx, notification, TypeRequestRejected)
}

// Noop discards notifications. Used when no notification queue is configured.
type Noop struct{}

func (Noop) SendCreatedNotification(_ context.Context, _ CreatedNotification) error {
	return nil
}

func (Noop) SendApprovedNotification(_ context.Context, _ ApprovedNotification) error {
	return nil
}

func (Noop) SendRejectedNotification(_ context.Context, _ RejectedNotification) error {
	return nil
}
