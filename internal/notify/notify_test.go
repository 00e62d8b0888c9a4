package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/notify"
)

func Test_QueueNotifier_RoutesEachNotificationWithItsMessageType(t *testing.T) {
	// arrange
	sender := &capturingSender{}
	notifier := notify.NewQueueNotifier(sender)
	ctx := context.Background()

	// act
	require.NoError(t, notifier.SendCreatedNotification(ctx, notify.CreatedNotification{
		VMName: "build-agent-7",
	}))
	require.NoError(t, notifier.SendApprovedNotification(ctx, notify.ApprovedNotification{
		VMName:     "build-agent-7",
		ApprovedBy: "admin@acme.test",
	}))
	require.NoError(t, notifier.SendRejectedNotification(ctx, notify.RejectedNotification{
		VMName: "build-agent-7",
		Reason: "quota review pending",
	}))

	// assert
	require.Len(t, sender.sent, 3)
	assert.Equal(t, notify.TypeRequestCreated, sender.sent[0].messageType)
	assert.Equal(t, notify.TypeRequestApproved, sender.sent[1].messageType)
	assert.Equal(t, notify.TypeRequestRejected, sender.sent[2].messageType)

	created, ok := sender.sent[0].body.(notify.CreatedNotification)
	require.True(t, ok)
	assert.Equal(t, "build-agent-7", created.VMName)

	rejected, ok := sender.sent[2].body.(notify.RejectedNotification)
	require.True(t, ok)
	assert.Equal(t, "quota review pending", rejected.Reason)
}

func Test_Noop_DiscardsEveryNotification(t *testing.T) {
	notifier := notify.Noop{}
	ctx := context.Background()

	assert.NoError(t, notifier.SendCreatedNotification(ctx, notify.CreatedNotification{}))
	assert.NoError(t, notifier.SendApprovedNotification(ctx, notify.ApprovedNotification{}))
	assert.NoError(t, notifier.SendRejectedNotification(ctx, notify.RejectedNotification{}))
}

type sentMessage struct {
	body        interface{}
	messageType string
}

type capturingSender struct {
	sent []sentMessage
}

func (s *capturingSender) SendMessage(_ context.Context, body interface{}, messageType string) error {
	s.sent = append(s.sent, sentMessage{body: body, messageType: messageType})
	return nil
}

func (s *capturingSender) Close() error { return nil }
