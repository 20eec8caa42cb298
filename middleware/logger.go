package middleware

import (
	"log"
	"net/http"
	"time"
)

type Clock interface {
	Now() time.Time
}

// CodeRecorder counts responses by status.  metrics.Metrics is one.
type CodeRecorder interface {
	RecordHTTP(code int)
}

// RequestLogger writes an access log line per request and reports the
// status to a CodeRecorder, if there is one.
type RequestLogger struct {
	next     http.Handler
	clock    Clock
	recorder CodeRecorder
}

func NewRequestLogger(next http.Handler, clock Clock, recorder CodeRecorder) *RequestLogger {
	return &RequestLogger{next: next, clock: clock, recorder: recorder}
}

func remoteAddr(r *http.Request) string {
	if r.Header.Get("X-Forwarded-For") != "" {
		return r.Header.Get("X-Forwarded-For")
	}
	return r.RemoteAddr
}

func (rl *RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := rl.clock.Now()
	ww := &codeWatcher{w: w}
	rl.next.ServeHTTP(ww, r)
	code := ww.Code()
	if rl.recorder != nil {
		rl.recorder.RecordHTTP(code)
	}
	log.Printf("[access log] %d %v %s %v (%v)", code, remoteAddr(r), r.Method, r.URL.Path, rl.clock.Now().Sub(start))
}
