package slots

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetAvailableSlotsMidMorning(t *testing.T) {
	// Monday 10:00: first slot is two hours out, rounded up to the hour.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	p := NewBusinessHoursProvider(WithClock(fixedClock(now)), WithLocation(time.UTC))

	got, err := p.GetAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableSlots failed: %v", err)
	}
	want := []string{"today 1pm", "today 2pm", "today 3pm"}
	assertSlots(t, got, want)
}

func TestGetAvailableSlotsLateAfternoonRollsToNextDay(t *testing.T) {
	now := time.Date(2026, 8, 31, 16, 30, 0, 0, time.UTC)
	p := NewBusinessHoursProvider(WithClock(fixedClock(now)), WithLocation(time.UTC))

	got, err := p.GetAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableSlots failed: %v", err)
	}
	want := []string{"tomorrow 9am", "tomorrow 10am", "tomorrow 11am"}
	assertSlots(t, got, want)
}

func TestGetAvailableSlotsEarlyMorningWaitsForOpen(t *testing.T) {
	now := time.Date(2026, 8, 31, 5, 15, 0, 0, time.UTC)
	p := NewBusinessHoursProvider(WithClock(fixedClock(now)), WithLocation(time.UTC))

	got, err := p.GetAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableSlots failed: %v", err)
	}
	want := []string{"today 9am", "today 10am", "today 11am"}
	assertSlots(t, got, want)
}

func TestGetAvailableSlotsSpillAcrossClose(t *testing.T) {
	// 14:30 puts the second candidate past closing; the run restarts next
	// morning.
	now := time.Date(2026, 8, 31, 13, 30, 0, 0, time.UTC)
	p := NewBusinessHoursProvider(WithClock(fixedClock(now)), WithLocation(time.UTC))

	got, err := p.GetAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableSlots failed: %v", err)
	}
	want := []string{"today 4pm", "tomorrow 9am", "tomorrow 10am"}
	assertSlots(t, got, want)
}

func TestGetAvailableSlotsCustomCount(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	p := NewBusinessHoursProvider(WithClock(fixedClock(now)), WithLocation(time.UTC), WithSlotCount(1))

	got, err := p.GetAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableSlots failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("slots = %v, want exactly 1", got)
	}
}

func TestGetAvailableSlotsHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewBusinessHoursProvider()
	if _, err := p.GetAvailableSlots(ctx); err == nil {
		t.Error("cancelled context should error")
	}
}

func assertSlots(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
