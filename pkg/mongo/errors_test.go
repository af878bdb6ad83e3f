package mongo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/pkg/mongo"
)

func TestIsUnavailableError(t *testing.T) {
	t.Parallel()

	assert.False(t, mongo.IsUnavailableError(nil))
	assert.True(t, mongo.IsUnavailableError(context.DeadlineExceeded))
	assert.False(t, mongo.IsUnavailableError(errors.New("duplicate")))
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	_, err := mongo.New(context.Background(), mongo.Config{})
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
}
