package playback

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestClockInitialState(t *testing.T) {
	c := NewClock(time.Hour, 1)
	s := c.Snapshot()
	if s.State != StateRunning || s.Time != 0 || s.MaxTime != 0 {
		t.Fatalf("unexpected initial state %#v", s)
	}
}

func TestClockTickAdvancesAndWraps(t *testing.T) {
	c := NewClock(time.Hour, 3)
	c.SetMaxTime(10)

	want := []float64{3, 6, 9, 0, 3}
	for i, w := range want {
		s := c.Tick()
		if s.Time != w {
			t.Fatalf("tick %d: time = %v, want %v", i, s.Time, w)
		}
		if s.Time > s.MaxTime {
			t.Fatalf("tick %d: time %v exceeded max %v", i, s.Time, s.MaxTime)
		}
	}
}

func TestClockWrapsExactlyAtMax(t *testing.T) {
	c := NewClock(time.Hour, 5)
	c.SetMaxTime(10)
	c.Tick()
	if s := c.Tick(); s.Time != 0 {
		t.Fatalf("reaching maxTime should wrap to exactly 0, got %v", s.Time)
	}
}

func TestClockInertWithoutTrips(t *testing.T) {
	c := NewClock(time.Hour, 1)
	for i := 0; i < 5; i++ {
		if s := c.Tick(); s.Time != 0 {
			t.Fatalf("inert clock advanced to %v", s.Time)
		}
	}
}

func TestClockSeekPauses(t *testing.T) {
	c := NewClock(time.Hour, 1)
	c.SetMaxTime(100)

	s := c.Seek(42)
	if s.State != StatePaused || s.Time != 42 {
		t.Fatalf("unexpected state after seek %#v", s)
	}
	if s := c.Tick(); s.Time != 42 {
		t.Fatalf("paused clock advanced to %v", s.Time)
	}
	if s := c.Seek(500); s.Time != 100 {
		t.Fatalf("seek past end not clamped: %v", s.Time)
	}
	if s := c.Seek(-3); s.Time != 0 {
		t.Fatalf("negative seek not clamped: %v", s.Time)
	}

	c.Seek(10)
	c.Play()
	if s := c.Tick(); s.Time != 11 {
		t.Fatalf("resumed clock at %v, want 11", s.Time)
	}
}

func TestClockSpeedAppliesNextTick(t *testing.T) {
	c := NewClock(time.Hour, 1)
	c.SetMaxTime(100)
	c.Tick()
	c.SetSpeed(10)
	if s := c.Tick(); s.Time != 11 {
		t.Fatalf("time = %v, want 11", s.Time)
	}
	c.SetSpeed(-1)
	if s := c.Snapshot(); s.Speed != 10 {
		t.Fatalf("invalid speed accepted: %v", s.Speed)
	}

	// Speed changes while paused are kept for later.
	c.Pause()
	c.SetSpeed(2)
	c.Play()
	if s := c.Tick(); s.Time != 13 {
		t.Fatalf("time = %v, want 13", s.Time)
	}
}

func TestClockShrinkingMaxTimeResets(t *testing.T) {
	c := NewClock(time.Hour, 1)
	c.SetMaxTime(100)
	c.Seek(80)
	c.SetMaxTime(50)
	if s := c.Snapshot(); s.Time != 0 {
		t.Fatalf("time beyond new bound should reset, got %v", s.Time)
	}
}

func TestClockLoopTicksAndStops(t *testing.T) {
	c := NewClock(time.Millisecond, 1)
	var ticks atomic.Int32
	c.OnTick(func(Snapshot) { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	if c.Snapshot().Ticking {
		t.Fatalf("loop must not run while there are no trips")
	}

	c.SetMaxTime(1000)
	if !c.Snapshot().Ticking {
		t.Fatalf("loop should run once trips exist")
	}

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected ticks, got %d", ticks.Load())
	}

	// Empty trip set releases the tick source.
	c.SetMaxTime(0)
	if c.Snapshot().Ticking {
		t.Fatalf("loop should stop when trips become empty")
	}
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("ticks continued after stop: %d -> %d", after, ticks.Load())
	}

	c.SetMaxTime(1000)
	c.Stop()
	if c.Snapshot().Ticking {
		t.Fatalf("loop should stop on teardown")
	}
	after = ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("ticks continued after teardown: %d -> %d", after, ticks.Load())
	}
}
