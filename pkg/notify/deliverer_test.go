package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/quotakit/pkg/notify"
)

type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, msg notify.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func TestMultiDeliverer(t *testing.T) {
	t.Parallel()

	msg := notify.Message{ID: "n1", UserID: "u1", Title: "Hi"}

	t.Run("all channels receive the message", func(t *testing.T) {
		t.Parallel()
		d1, d2 := &mockDeliverer{}, &mockDeliverer{}
		d1.On("Deliver", mock.Anything, msg).Return(nil).Once()
		d2.On("Deliver", mock.Anything, msg).Return(nil).Once()

		m := notify.NewMultiDeliverer(nil, d1, nil, d2)
		assert.NoError(t, m.Deliver(context.Background(), msg))
		d1.AssertExpectations(t)
		d2.AssertExpectations(t)
	})

	t.Run("a failing channel does not stop the rest", func(t *testing.T) {
		t.Parallel()
		d1, d2 := &mockDeliverer{}, &mockDeliverer{}
		d1.On("Deliver", mock.Anything, msg).Return(errors.New("smtp down")).Once()
		d2.On("Deliver", mock.Anything, msg).Return(nil).Once()

		m := notify.NewMultiDeliverer(nil, d1, d2)
		assert.NoError(t, m.Deliver(context.Background(), msg))
		d2.AssertExpectations(t)
	})
}

func TestLogDeliverer(t *testing.T) {
	t.Parallel()
	assert.NoError(t, notify.NewLogDeliverer(nil).Deliver(context.Background(), notify.Message{ID: "n1"}))
}
