package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/requestid"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, incoming string) (ctxID, headerID string) {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
	if incoming != "" {
		req.Header.Set(requestid.Header, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates a time ordered id", func(t *testing.T) {
		t.Parallel()
		ctxID, headerID := serve(t, requestid.Middleware, "")
		assert.Equal(t, ctxID, headerID)
		parsed, err := uuid.Parse(ctxID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	})

	t.Run("reuses a valid incoming id", func(t *testing.T) {
		t.Parallel()
		for _, id := range []string{"abc123", "ABC-123_xyz", "550e8400-e29b-41d4-a716-446655440000"} {
			ctxID, headerID := serve(t, requestid.Middleware, id)
			assert.Equal(t, id, ctxID)
			assert.Equal(t, id, headerID)
		}
	})

	t.Run("replaces invalid incoming ids", func(t *testing.T) {
		t.Parallel()
		for _, id := range []string{
			"test@request#id",
			"test request id",
			"test/request/id",
			"<script>alert(1)</script>",
			strings.Repeat("a", 129),
		} {
			ctxID, headerID := serve(t, requestid.Middleware, id)
			assert.NotEqual(t, id, ctxID)
			assert.NotEmpty(t, ctxID)
			assert.Equal(t, ctxID, headerID)
		}
	})

	t.Run("untrusted incoming ids are ignored", func(t *testing.T) {
		t.Parallel()
		ctxID, _ := serve(t, requestid.NewMiddleware(requestid.WithTrustIncoming(false)), "abc123")
		assert.NotEqual(t, "abc123", ctxID)
	})
}

func TestContext(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "req-1", requestid.FromContext(requestid.WithContext(context.Background(), "req-1")))
	assert.Empty(t, requestid.FromContext(context.Background()))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	log.InfoContext(requestid.WithContext(context.Background(), "req-42"), "consumed")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)

	buf.Reset()
	log.InfoContext(context.Background(), "no request")
	assert.NotContains(t, buf.String(), "request_id")

}
