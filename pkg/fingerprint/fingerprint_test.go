package fingerprint

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"
const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

func TestAnonymousKey(t *testing.T) {
	t.Run("is stable for the same client", func(t *testing.T) {
		r1 := httptest.NewRequest("POST", "/", nil)
		r1.Header.Set("User-Agent", firefoxUA)
		r1.RemoteAddr = "203.0.113.7:4123"

		r2 := httptest.NewRequest("POST", "/", nil)
		r2.Header.Set("User-Agent", firefoxUA)
		r2.RemoteAddr = "203.0.113.7:9999" // different ephemeral port

		assert.Equal(t, AnonymousKey(r1, "salt"), AnonymousKey(r2, "salt"))
	})

	t.Run("differs across clients", func(t *testing.T) {
		r1 := httptest.NewRequest("POST", "/", nil)
		r1.Header.Set("User-Agent", firefoxUA)
		r1.RemoteAddr = "203.0.113.7:4123"

		r2 := httptest.NewRequest("POST", "/", nil)
		r2.Header.Set("User-Agent", chromeUA)
		r2.RemoteAddr = "203.0.113.8:4123"

		assert.NotEqual(t, AnonymousKey(r1, "salt"), AnonymousKey(r2, "salt"))
	})

	t.Run("differs across salts", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set("User-Agent", firefoxUA)
		r.RemoteAddr = "203.0.113.7:4123"

		assert.NotEqual(t, AnonymousKey(r, "salt-a"), AnonymousKey(r, "salt-b"))
	})

	t.Run("uses the forwarded client address behind a proxy", func(t *testing.T) {
		direct := httptest.NewRequest("POST", "/", nil)
		direct.Header.Set("User-Agent", firefoxUA)
		direct.RemoteAddr = "203.0.113.7:4123"

		proxied := httptest.NewRequest("POST", "/", nil)
		proxied.Header.Set("User-Agent", firefoxUA)
		proxied.RemoteAddr = "10.0.0.1:1234"
		proxied.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

		assert.Equal(t, AnonymousKey(direct, "salt"), AnonymousKey(proxied, "salt"))
	})

	t.Run("keys carry the anonymous prefix", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set("User-Agent", firefoxUA)

		key := AnonymousKey(r, "salt")
		assert.True(t, IsAnonymous(key))
		assert.False(t, IsAnonymous("profile:"+key))
	})
}
