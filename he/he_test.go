package he

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ts4z/placerank/rating"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"coded", HTTPCodedErrorf(404, "no such player %d", 3), 404},
		{"wrapped coded", fmt.Errorf("fetching: %w", New(409, errors.New("conflict"))), 409},
		{"invalid input", fmt.Errorf("%w: no participants", rating.ErrInvalidInput), 400},
		{"anything else", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
	if !IsNotFound(HTTPCodedErrorf(404, "gone")) {
		t.Errorf("IsNotFound(404) = false")
	}
}

func TestSendErrorToHTTPClient(t *testing.T) {
	rec := httptest.NewRecorder()
	SendErrorToHTTPClient(rec, "fetch player", HTTPCodedErrorf(http.StatusNotFound, "no such player 9"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "can't fetch player: no such player 9") {
		t.Errorf("body = %q", body)
	}
}
