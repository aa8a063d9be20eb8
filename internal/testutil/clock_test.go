package testutil

import (
	"testing"
	"time"
)

func TestFixedClockAdvance(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	clock := NewFixedClock(start)
	if !clock.Now().Equal(start) {
		t.Fatalf("expected clock pinned at %v, got %v", start, clock.Now())
	}
	next := clock.Advance(5 * time.Minute)
	if !next.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("expected advance to return the new instant, got %v", next)
	}
	if !clock.Now().Equal(next) {
		t.Fatalf("expected Now to reflect the advance, got %v", clock.Now())
	}
}
