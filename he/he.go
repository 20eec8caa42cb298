// Package he carries an HTTP status along with an error, so that storage can
// say "not found" and the web layer can say 404 without knowing about each
// other.
package he

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ts4z/placerank/rating"
)

// HTTPError is an error with a status code attached.
type HTTPError struct {
	code int
	err  error
}

func HTTPCodedErrorf(code int, f string, more ...any) *HTTPError {
	return &HTTPError{
		code: code,
		err:  fmt.Errorf(f, more...),
	}
}

func New(code int, err error) *HTTPError {
	return &HTTPError{
		code: code,
		err:  err,
	}
}

func (e *HTTPError) Error() string {
	return e.err.Error()
}

func (e *HTTPError) Unwrap() error {
	return e.err
}

func (e *HTTPError) Code() int {
	return e.code
}

// CodeOf picks a status for err.  Bad input to the rating engine is the
// client's fault; anything unrecognized is ours.
func CodeOf(err error) int {
	var he *HTTPError
	switch {
	case errors.As(err, &he):
		return he.code
	case errors.Is(err, rating.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err carries a 404.
func IsNotFound(err error) bool {
	return CodeOf(err) == http.StatusNotFound
}

// SendErrorToHTTPClient sends err to the client as a small JSON document.
func SendErrorToHTTPClient(w http.ResponseWriter, while string, err error) {
	code := CodeOf(err)
	txt := fmt.Sprintf("can't %s: %v", while, err)
	if code >= 500 {
		log.Println(txt)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": txt}); err != nil {
		log.Printf("error writing error to client: %v", err)
	}
}
