package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrymomot/quotakit/pkg/auth"
)

// maxKeyLength caps storage key length; longer keys are hashed.
const maxKeyLength = 64

// KeyFunc picks the rate limit key for a request. An empty key skips the
// limit.
type KeyFunc func(*http.Request) string

// ByUser keys on the authenticated user id.
func ByUser(r *http.Request) string {
	if uid := auth.UserID(r.Context()); uid != "" {
		return "user:" + uid
	}
	return ""
}

// ByIP keys on the connection's remote address.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return "ip:" + host
}

// Composite joins the non-empty keys of fns. Long keys are hashed to 32
// hex chars.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		key := strings.Join(parts, ":")
		if len(key) > maxKeyLength {
			sum := sha256.Sum256([]byte(key))
			return hex.EncodeToString(sum[:16])
		}
		return key
	}
}
