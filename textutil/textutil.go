package textutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"maze.io/x/duration"
)

// FormatPlace converts a numeric place (1, 2, 3, ...) to a string ("1st", "2nd", "3rd", ...).
func FormatPlace(place int) string {
	suffix := "th"
	if place%100 < 11 || place%100 > 13 {
		switch place % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", place, suffix)
}

// FormatRating shows a rating to one decimal place, which is all the
// halving in a rating change can produce from whole-number ratings.
func FormatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// FormatChange is FormatRating with the sign always shown.  Anything that
// rounds to zero is "+0.0", never "-0.0".
func FormatChange(c float64) string {
	c = math.Round(c*10) / 10
	if c == 0 {
		return "+0.0"
	}
	return fmt.Sprintf("%+.1f", c)
}

// ParseSince turns a "how far back" argument into a point in time.  It takes
// an RFC 3339 timestamp, or an age such as "36h", "30d" or "1w" counted back
// from now.
func ParseSince(now time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := duration.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("can't parse %q as a time or an age", s)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("age %q is negative", s)
	}
	return now.Add(-time.Duration(d)), nil
}
