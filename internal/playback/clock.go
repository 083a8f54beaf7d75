package playback

import (
	"context"
	"math"
	"sync"
	"time"
)

// State of the playback clock
type State string

// State constants
const (
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Snapshot is a read-only copy of the clock
type Snapshot struct {
	State   State   `json:"state"`
	Time    float64 `json:"time"`
	MaxTime float64 `json:"max_time"`
	Speed   float64 `json:"speed"`
	Ticking bool    `json:"ticking"`
}

// Clock drives the shared simulation time. Each tick advances time by speed
// while running and wraps to 0 once maxTime is reached. The tick loop is a
// goroutine bound to the context passed to Start; it is stopped whenever
// maxTime drops to 0 (no trips) and on Stop.
type Clock struct {
	mu       sync.Mutex
	state    State
	time     float64
	maxTime  float64
	speed    float64
	interval time.Duration

	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}

	onTick func(Snapshot)
}

// NewClock creates a running clock at t=0
func NewClock(interval time.Duration, speed float64) *Clock {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if speed <= 0 || math.IsNaN(speed) {
		speed = 1
	}
	return &Clock{
		state:    StateRunning,
		speed:    speed,
		interval: interval,
	}
}

// OnTick registers a callback invoked after every processed tick
func (c *Clock) OnTick(fn func(Snapshot)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Start binds the tick loop to ctx. The loop only runs while maxTime > 0.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = ctx
	c.syncLoopLocked()
}

// Stop releases the tick source; Start may bind it again
func (c *Clock) Stop() {
	c.mu.Lock()
	c.parent = nil
	done := c.stopLoopLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// SetMaxTime updates the time bound from the current trip set.
// A bound of 0 makes the clock inert and releases the tick loop.
func (c *Clock) SetMaxTime(maxTime float64) {
	if maxTime < 0 || math.IsNaN(maxTime) {
		maxTime = 0
	}

	c.mu.Lock()
	c.maxTime = maxTime
	if c.time >= maxTime {
		c.time = 0
	}
	done := c.syncLoopLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Tick advances the clock by one step. It is what the loop calls on every
// interval and is exported so callers can step time deterministically.
func (c *Clock) Tick() Snapshot {
	c.mu.Lock()
	if c.state == StateRunning && c.maxTime > 0 {
		c.time += c.speed
		if c.time >= c.maxTime {
			c.time = 0
		}
	}
	snap := c.snapshotLocked()
	fn := c.onTick
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return snap
}

// Seek sets the time directly and pauses playback
func (c *Clock) Seek(t float64) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > c.maxTime {
		t = c.maxTime
	}
	c.time = t
	c.state = StatePaused
	return c.snapshotLocked()
}

// Play resumes playback
func (c *Clock) Play() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateRunning
	return c.snapshotLocked()
}

// Pause halts playback without touching time
func (c *Clock) Pause() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePaused
	return c.snapshotLocked()
}

// SetSpeed changes the per-tick increment; it applies from the next tick
func (c *Clock) SetSpeed(speed float64) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if speed > 0 && !math.IsNaN(speed) && !math.IsInf(speed, 0) {
		c.speed = speed
	}
	return c.snapshotLocked()
}

// Now returns the current simulation time
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// Snapshot returns a copy of the clock state
func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Clock) snapshotLocked() Snapshot {
	return Snapshot{
		State:   c.state,
		Time:    c.time,
		MaxTime: c.maxTime,
		Speed:   c.speed,
		Ticking: c.cancel != nil,
	}
}

// syncLoopLocked starts or stops the loop to match parent and maxTime.
// It returns a channel to wait on when a loop was stopped.
func (c *Clock) syncLoopLocked() chan struct{} {
	want := c.parent != nil && c.parent.Err() == nil && c.maxTime > 0
	if want && c.cancel == nil {
		ctx, cancel := context.WithCancel(c.parent)
		done := make(chan struct{})
		c.cancel = cancel
		c.done = done
		go c.loop(ctx, done)
		return nil
	}
	if !want {
		return c.stopLoopLocked()
	}
	return nil
}

func (c *Clock) stopLoopLocked() chan struct{} {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	done := c.done
	c.cancel = nil
	c.done = nil
	return done
}

func (c *Clock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
