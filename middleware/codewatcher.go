package middleware

import (
	"net/http"
)

var _ http.ResponseWriter = &codeWatcher{}

// codeWatcher remembers the status code written through it.
type codeWatcher struct {
	code int
	w    http.ResponseWriter
}

func (cw *codeWatcher) Header() http.Header {
	return cw.w.Header()
}

func (cw *codeWatcher) Write(b []byte) (int, error) {
	if cw.code == 0 {
		cw.code = http.StatusOK
	}
	return cw.w.Write(b)
}

func (cw *codeWatcher) WriteHeader(statusCode int) {
	if cw.code == 0 {
		cw.code = statusCode
	}
	cw.w.WriteHeader(statusCode)
}

// Code is 200 if the handler never wrote anything at all.
func (cw *codeWatcher) Code() int {
	if cw.code == 0 {
		return http.StatusOK
	}
	return cw.code
}
