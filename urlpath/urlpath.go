// Package urlpath pulls typed values out of request paths and queries.  Bad
// values come back as 400-coded errors.
package urlpath

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ts4z/placerank/he"
)

// IDPathValue parses the "{id}" path variable.
func IDPathValue(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return -1, he.HTTPCodedErrorf(http.StatusBadRequest, "can't parse id from url path: %v", err)
	}
	return id, nil
}

// IntQueryValue parses an optional non-negative integer query parameter,
// returning def when it is absent.  Commas are ignored, so 1,000 is fine.
func IntQueryValue(r *http.Request, key string, def int) (int, error) {
	s := strings.ReplaceAll(r.URL.Query().Get(key), ",", "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, he.HTTPCodedErrorf(http.StatusBadRequest, "bad %s %q", key, s)
	}
	return v, nil
}
