package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CacheHeaderAdder wraps an http.Handler and adds Cache-Control headers to
// successful responses.  Recorded matches never change, so they can be
// cached for a long time; everything else should not be cached at all.
type CacheHeaderAdder struct {
	next         http.Handler
	maxAge       time.Duration
	immutable    bool
	cachePrivate bool
}

// CacheHeaderAdderConfig configures the caching behavior.
type CacheHeaderAdderConfig struct {
	// Next is the handler to wrap.
	Next http.Handler

	// MaxAge is how long the content may be cached.  Zero means no-store.
	MaxAge time.Duration

	// Immutable indicates that the content will never change.
	Immutable bool

	// CachePrivate keeps shared caches (CDNs, proxies) out of it.
	CachePrivate bool
}

func NewCacheHeaderAdder(config *CacheHeaderAdderConfig) *CacheHeaderAdder {
	return &CacheHeaderAdder{
		next:         config.Next,
		maxAge:       config.MaxAge,
		immutable:    config.Immutable,
		cachePrivate: config.CachePrivate,
	}
}

func (ch *CacheHeaderAdder) header() string {
	maxAgeSeconds := int(ch.maxAge.Seconds())
	if maxAgeSeconds <= 0 {
		return "no-store"
	}
	parts := []string{"public"}
	if ch.cachePrivate {
		parts[0] = "private"
	}
	parts = append(parts, fmt.Sprintf("max-age=%d", maxAgeSeconds))
	if ch.immutable {
		parts = append(parts, "immutable")
	}
	return strings.Join(parts, ", ")
}

func (ch *CacheHeaderAdder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch.next.ServeHTTP(&cacheHeaderWriter{ResponseWriter: w, value: ch.header()}, r)
}

// cacheHeaderWriter sets the header only once the status is known, so
// errors are never cached.
type cacheHeaderWriter struct {
	http.ResponseWriter
	value   string
	decided bool
}

func (cw *cacheHeaderWriter) WriteHeader(code int) {
	if !cw.decided {
		cw.decided = true
		if code < 300 {
			cw.Header().Set("Cache-Control", cw.value)
		} else {
			cw.Header().Set("Cache-Control", "no-store")
		}
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cacheHeaderWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}
