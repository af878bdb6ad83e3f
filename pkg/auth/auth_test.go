package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/auth"
)

type fakeIDTokens map[string]string

func (f fakeIDTokens) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	uid, ok := f[token]
	if !ok {
		return nil, errors.New("ID token has expired")
	}
	return &firebaseauth.Token{UID: uid}, nil
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", tt.header)

			got, err := auth.BearerToken(r)
			if !tt.ok {
				assert.ErrorIs(t, err, auth.ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirebaseVerifier(t *testing.T) {
	t.Parallel()

	v := auth.NewFirebaseVerifier(fakeIDTokens{"good": "uid-1", "empty": ""})

	uid, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = v.Verify(context.Background(), "empty")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestInsecureDevVerifier(t *testing.T) {
	t.Parallel()

	uid, err := auth.InsecureDevVerifier{}.Verify(context.Background(), "dev:alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	_, err = auth.InsecureDevVerifier{}.Verify(context.Background(), "alice")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := auth.Middleware(auth.NewFirebaseVerifier(fakeIDTokens{"good": "uid-1"}), nil)(next)

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "uid-1", seen)
	})

	for name, header := range map[string]string{"missing": "", "invalid": "Bearer bad"} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/entitlements", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body.Error.Code)
		})
	}
}

func TestLogExtractor(t *testing.T) {
	t.Parallel()

	_, ok := auth.LogExtractor(context.Background())
	assert.False(t, ok)

	attr, ok := auth.LogExtractor(auth.WithUserID(context.Background(), "u1"))
	require.True(t, ok)
	assert.Equal(t, "u1", attr.Value.String())
}
