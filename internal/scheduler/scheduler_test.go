package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"turtlestock/internal/market"
)

func TestSessionDate(t *testing.T) {
	loc := market.ETLocation()

	// After Monday's close the session is Monday
	got := sessionDate(time.Date(2025, 6, 2, 17, 0, 0, 0, loc))
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("sessionDate = %s, want %s", got, want)
	}

	// Saturday maps back to Friday's session
	got = sessionDate(time.Date(2025, 6, 7, 12, 0, 0, 0, loc))
	want = time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("sessionDate = %s, want %s", got, want)
	}
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), nil, zap.NewNop())
	if err := s.Register("not a cron spec"); err == nil {
		t.Error("Invalid cron spec should be rejected")
	}
	if err := s.Register("0 30 16 * * 1-5"); err != nil {
		t.Errorf("Valid spec rejected: %v", err)
	}
}
