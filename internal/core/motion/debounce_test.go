package motion

import (
	"math/rand"
	"testing"
	"time"
)

func feedAll(t *testing.T, d *Debounce, samples []bool) []EventKind {
	t.Helper()
	ts := time.Now()
	var out []EventKind
	for i, m := range samples {
		ev, ok := d.Feed(Sample{Motion: m, Area: 2000}, ts.Add(time.Duration(i)*100*time.Millisecond))
		if ok {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func TestDebounceCooldownAbsorption(t *testing.T) {
	d, err := NewDebounce(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 单帧检测间隙被 cooldown 吸收，不产生 Stop
	events := feedAll(t, d, []bool{true, false, true, true})
	want := []EventKind{EventStart, EventContinue, EventContinue}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestDebouncePendingResetOnFalse(t *testing.T) {
	d, err := NewDebounce(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 持续不足 persistence 就中断，不得产生任何事件
	events := feedAll(t, d, []bool{true, true, false, true, true, false})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if d.Phase() != PhaseQuiet {
		t.Fatalf("phase = %v, want quiet", d.Phase())
	}
}

func TestDebounceStartStopCycle(t *testing.T) {
	d, err := NewDebounce(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	events := feedAll(t, d, []bool{true, true, true, true, false, false, true, true, true})
	want := []EventKind{EventStart, EventContinue, EventStop, EventStart}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %v, want %v", i, events[i], want[i])
		}
	}
}

// TestDebounceAlternation 任意输入序列下 Start 与 Stop 必须严格交替
func TestDebounceAlternation(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		persistence := 1 + rnd.Intn(4)
		cooldown := 1 + rnd.Intn(4)
		d, err := NewDebounce(persistence, cooldown)
		if err != nil {
			t.Fatal(err)
		}

		started := false
		ts := time.Now()
		for i := 0; i < 500; i++ {
			ev, ok := d.Feed(Sample{Motion: rnd.Intn(2) == 0, Area: 1600}, ts.Add(time.Duration(i)*time.Millisecond))
			if !ok {
				continue
			}
			switch ev.Kind {
			case EventStart:
				if started {
					t.Fatalf("round %d: consecutive Start without Stop (persistence=%d cooldown=%d)", round, persistence, cooldown)
				}
				started = true
			case EventStop:
				if !started {
					t.Fatalf("round %d: Stop without prior Start (persistence=%d cooldown=%d)", round, persistence, cooldown)
				}
				started = false
			case EventContinue:
				if !started {
					t.Fatalf("round %d: Continue outside an episode", round)
				}
			}
		}
	}
}

func TestDebounceInvalidConfig(t *testing.T) {
	if _, err := NewDebounce(0, 2); err == nil {
		t.Fatal("expected error for persistence=0")
	}
	if _, err := NewDebounce(1, 0); err == nil {
		t.Fatal("expected error for cooldown=0")
	}
}
