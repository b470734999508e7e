// Package fingerprint derives stable recommender keys for anonymous patients.
// The key only needs to be stable per visitor and opaque to the ledger; it is
// never merged with an authenticated identity later.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const anonPrefix = "anon-"

// AnonymousKey builds a recommender key from the visitor's client IP and
// user-agent family. The salt keeps keys unlinkable across deployments.
func AnonymousKey(r *http.Request, salt string) string {
	ua := useragent.New(r.UserAgent())
	browser, _ := ua.Browser()

	h := sha256.New()
	io.WriteString(h, salt)
	io.WriteString(h, "|")
	io.WriteString(h, clientIP(r))
	io.WriteString(h, "|")
	io.WriteString(h, ua.OS())
	io.WriteString(h, "|")
	io.WriteString(h, browser)

	return anonPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}

// IsAnonymous reports whether a recommender key was fingerprint-derived.
func IsAnonymous(key string) bool {
	return strings.HasPrefix(key, anonPrefix)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
