package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const Header = "X-Request-ID"

const maxIDLength = 128

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Option configures NewMiddleware.
type Option func(*options)

type options struct {
	trustIncoming bool
}

// WithTrustIncoming controls whether a well formed X-Request-ID sent by
// the caller is reused. Enable it behind a proxy that sets the header.
func WithTrustIncoming(trust bool) Option {
	return func(o *options) { o.trustIncoming = trust }
}

// NewMiddleware tags every request with an id, stores it in the context
// and echoes it in the response header. Generated ids are UUIDv7, so they
// sort by time in logs.
func NewMiddleware(opts ...Option) func(http.Handler) http.Handler {
	o := options{trustIncoming: true}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if !o.trustIncoming || !valid(id) {
				id = newID()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

// Middleware is NewMiddleware with default options.
func Middleware(next http.Handler) http.Handler {
	return NewMiddleware()(next)
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func valid(id string) bool {
	return id != "" && len(id) <= maxIDLength && validID.MatchString(id)
}
