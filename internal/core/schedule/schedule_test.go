package schedule

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 24, hour, min, 30, 0, time.Local)
}

func TestWindowActive(t *testing.T) {
	w, err := ParseWindow("08:00", "18:00")
	if err != nil {
		t.Fatal(err)
	}
	if !w.Active(at(8, 0)) {
		t.Fatal("start minute should be active")
	}
	if !w.Active(at(12, 30)) {
		t.Fatal("midday should be active")
	}
	if w.Active(at(18, 0)) {
		t.Fatal("end is exclusive")
	}
	if w.Active(at(7, 59)) {
		t.Fatal("before start should be inactive")
	}
}

func TestWindowCrossMidnight(t *testing.T) {
	w, err := ParseWindow("22:00", "06:00")
	if err != nil {
		t.Fatal(err)
	}
	if !w.Active(at(23, 15)) {
		t.Fatal("23:15 should be active")
	}
	if !w.Active(at(0, 0)) {
		t.Fatal("midnight should be active")
	}
	if !w.Active(at(5, 59)) {
		t.Fatal("05:59 should be active")
	}
	if w.Active(at(6, 0)) {
		t.Fatal("end is exclusive")
	}
	if w.Active(at(12, 0)) {
		t.Fatal("noon should be inactive")
	}
}

func TestParseWindowInvalid(t *testing.T) {
	if _, err := ParseWindow("8am", "18:00"); err == nil {
		t.Fatal("expected error for malformed start")
	}
	if _, err := ParseWindow("08:00", "25:61"); err == nil {
		t.Fatal("expected error for malformed end")
	}
	if _, err := ParseWindow("08:00", "08:00"); err == nil {
		t.Fatal("expected error for equal start/end")
	}
}
