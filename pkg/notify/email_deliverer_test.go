package notify_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/email"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/notify"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	return m.Called(ctx, p).Error(0)
}

type fakeUsers struct {
	calls atomic.Int32
	users map[string]string
	err   error
}

func (f *fakeUsers) GetUser(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	addr, ok := f.users[uid]
	if !ok {
		return &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: uid}}, nil
	}
	return &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: uid, Email: addr}}, nil
}

func TestEmailDeliverer(t *testing.T) {
	t.Parallel()

	msg := notify.Message{
		ID:        "n1",
		Kind:      entitlement.NoticeDowngrade,
		UserID:    "u1",
		Title:     "Plan <changed>",
		Body:      "You are now on Free.",
		ActionURL: "https://app.example.com/pricing",
	}

	t.Run("sends to the resolved address", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.SendTo == "u1@example.com" &&
				p.Subject == "Plan <changed>" &&
				p.Tag == "subscription_downgrade" &&
				p.BodyText == "You are now on Free.\n\nhttps://app.example.com/pricing" &&
				strings.Contains(p.BodyHTML, "Plan &lt;changed&gt;")
		})).Return(nil).Once()

		d := notify.NewEmailDeliverer(sender, notify.StaticResolver{"u1": "u1@example.com"})
		require.NoError(t, d.Deliver(context.Background(), msg))
		sender.AssertExpectations(t)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}

		d := notify.NewEmailDeliverer(sender, notify.StaticResolver{})
		assert.ErrorIs(t, d.Deliver(context.Background(), msg), notify.ErrNoRecipient)
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}

func TestFirebaseResolver(t *testing.T) {
	t.Parallel()

	t.Run("caches hits", func(t *testing.T) {
		t.Parallel()
		users := &fakeUsers{users: map[string]string{"u1": "u1@example.com"}}
		r := notify.NewFirebaseResolver(users)

		for range 3 {
			addr, err := r.Email(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, "u1@example.com", addr)
		}
		assert.Equal(t, int32(1), users.calls.Load())
	})

	t.Run("user without email", func(t *testing.T) {
		t.Parallel()
		r := notify.NewFirebaseResolver(&fakeUsers{users: map[string]string{}})

		_, err := r.Email(context.Background(), "u2")
		assert.ErrorIs(t, err, notify.ErrNoRecipient)
	})

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("backend down")
		r := notify.NewFirebaseResolver(&fakeUsers{err: boom})

		_, err := r.Email(context.Background(), "u3")
		assert.ErrorIs(t, err, boom)
	})
}
