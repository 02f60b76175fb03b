package notification_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/tests"
)

func TestService_Notify(t *testing.T) {
	core.ParseEmailTemplates(nil)
	env := testutil.NewEnv()
	ctx := context.Background()

	tests := []struct {
		name     string
		to       notification.Recipient
		wantMail bool
	}{
		{name: "no address", to: notification.Recipient{ID: "f1", Name: "Ada"}},
		{name: "with address", to: notification.Recipient{ID: "f2", Name: "Grace", Email: "grace@test.cd"}, wantMail: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.Mail.Sent())

			n, err := env.Notifications.Notify(ctx, tt.to, notification.TypeHandover, "h1", "You have a new handover request")
			require.NoError(t, err)
			assert.NotEmpty(t, n.ID)
			assert.Equal(t, tt.to.ID, n.UserID)
			assert.False(t, n.IsRead)

			sent := env.Mail.Sent()
			if !tt.wantMail {
				assert.Len(t, sent, before)
				return
			}
			require.Len(t, sent, before+1)
			msg := sent[len(sent)-1]
			assert.Equal(t, tt.to.Email, msg.To[0].Address)
			assert.Contains(t, msg.TextContent, "You have a new handover request")
		})
	}
}

func TestService_QueryAndMarkRead(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	first, err := env.Notifications.Notify(ctx, notification.Recipient{ID: "f1"}, notification.TypeAttendance, "", "first")
	require.NoError(t, err)
	_, err = env.Notifications.Notify(ctx, notification.Recipient{ID: "f1"}, notification.TypeAttendance, "", "second")
	require.NoError(t, err)
	_, err = env.Notifications.Notify(ctx, notification.Recipient{ID: "f2"}, notification.TypeAttendance, "", "other")
	require.NoError(t, err)

	all, err := env.Notifications.Query(ctx, "f1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[0].CreatedAt.Before(all[1].CreatedAt), "newest first")

	tests := []struct {
		name    string
		userID  string
		id      string
		wantErr error
	}{
		{name: "unknown", userID: "f1", id: "nope", wantErr: notification.ErrNotFound},
		{name: "someone else's", userID: "f2", id: first.ID, wantErr: notification.ErrNotFound},
		{name: "own", userID: "f1", id: first.ID},
		{name: "already read", userID: "f1", id: first.ID},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n, err := env.Notifications.MarkRead(ctx, tt.userID, tt.id)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, n.IsRead)
		})
	}

	unread, err := env.Notifications.Query(ctx, "f1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Description)
}
