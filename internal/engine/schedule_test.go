package engine

import "testing"

func TestScheduleGating(t *testing.T) {
	s, err := NewSchedule(10)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Due(0) {
		t.Fatal("a schedule that never fired must be due on the first bar")
	}
	s.Mark(0)

	for bar := 1; bar < 10; bar++ {
		if s.Due(bar) {
			t.Errorf("bar %d: due too early after firing at 0", bar)
		}
	}
	if !s.Due(10) {
		t.Error("bar 10: 10 bars elapsed, must be due")
	}
}

func TestScheduleSkippedRoundsStillAdvance(t *testing.T) {
	s, err := NewSchedule(10)
	if err != nil {
		t.Fatal(err)
	}
	s.Mark(0)

	// a round that could not invest still marks; the next window starts there
	s.Mark(10)
	if s.Due(15) {
		t.Error("bar 15: window restarted at 10, not due yet")
	}
	if !s.Due(20) {
		t.Error("bar 20: due again ten bars after the skipped round")
	}
}

func TestScheduleReset(t *testing.T) {
	s, err := NewSchedule(5)
	if err != nil {
		t.Fatal(err)
	}
	s.Mark(3)
	if s.Due(4) {
		t.Error("bar 4 should not be due")
	}
	s.Reset()
	if !s.Due(4) {
		t.Error("after reset the schedule must be due immediately")
	}
}

func TestNewScheduleValidation(t *testing.T) {
	if _, err := NewSchedule(0); err == nil {
		t.Error("expected error for interval 0")
	}
	if _, err := NewSchedule(-3); err == nil {
		t.Error("expected error for negative interval")
	}
}
