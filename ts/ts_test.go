package ts

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNowIsUTCMillis(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*60*60)
	fake := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 30, 0, 123456789, loc))
	c := NewClock(fake)

	got := c.Now()
	want := time.Date(2026, 3, 1, 19, 30, 0, 123000000, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Now() = %v, want %v", got, want)
	}

	fake.Advance(time.Second)
	if d := c.Now().Sub(got); d != time.Second {
		t.Errorf("after Advance, Now() moved %v, want 1s", d)
	}
}
