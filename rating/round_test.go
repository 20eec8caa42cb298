package rating

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundingModes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		halfUp   string
		halfDown string
	}{
		{"below tie", "0.12344", "0.1234", "0.1234"},
		{"exact tie", "0.12345", "0.1235", "0.1234"},
		{"above tie", "0.123451", "0.1235", "0.1235"},
		{"negative tie", "-0.12345", "-0.1235", "-0.1234"},
		{"already short", "0.5", "0.5", "0.5"},
		{"integer", "3", "3", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.input)
			if got := roundHalfUp(d, 4); !got.Equal(decimal.RequireFromString(tt.halfUp)) {
				t.Errorf("roundHalfUp(%s) = %s, want %s", tt.input, got, tt.halfUp)
			}
			if got := roundHalfDown(d, 4); !got.Equal(decimal.RequireFromString(tt.halfDown)) {
				t.Errorf("roundHalfDown(%s) = %s, want %s", tt.input, got, tt.halfDown)
			}
		})
	}
}

func TestExactDecimalKeepsBinaryValue(t *testing.T) {
	// 0.1 is slightly above one tenth in binary.
	d := exactDecimal(0.1)
	if !d.GreaterThan(decimal.RequireFromString("0.1")) {
		t.Errorf("exactDecimal(0.1) = %s, want something above 0.1", d)
	}
	// A dyadic tie is exact, so half-down applies.
	if got := roundHalfDown(exactDecimal(0.03125), 4); !got.Equal(decimal.RequireFromString("0.0312")) {
		t.Errorf("roundHalfDown(0.03125) = %s, want 0.0312", got)
	}
}

func TestRatingDecimalIsShortest(t *testing.T) {
	if got := ratingDecimal(1500.1).String(); got != "1500.1" {
		t.Errorf("ratingDecimal(1500.1) = %q, want %q", got, "1500.1")
	}
}
