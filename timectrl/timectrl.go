package timectrl

import (
	"context"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

const dayDuration = 24 * time.Hour

// DaysBetween returns the signed number of days from start to t. Both
// instants are converted to Julian dates so calendar arithmetic matches the
// astrodynamics convention used for mission planning.
func DaysBetween(start, t time.Time) float64 {
	return julianDate(t) - julianDate(start)
}

// DateAt returns the calendar instant that lies days after start.
func DateAt(start time.Time, days float64) time.Time {
	return start.Add(time.Duration(days * float64(dayDuration)))
}

func julianDate(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	jd := satellite.JDay(year, int(month), day, t.Hour(), t.Minute(), t.Second())
	return jd + float64(t.Nanosecond())/float64(dayDuration)
}

// SimClock exposes simulation time both as days since the scenario start and
// as a calendar instant.
type SimClock interface {
	// Now returns the current simulation instant.
	Now() time.Time
	// Days returns the elapsed simulation time in days.
	Days() float64
}

// Clock is the simulation clock advanced by the replay loop. Listeners are
// notified every time the clock moves forward.
type Clock struct {
	mu    sync.RWMutex
	start time.Time
	days  float64

	listeners []func(days float64, at time.Time)
}

// NewClock returns a clock positioned at start.
func NewClock(start time.Time) *Clock {
	return &Clock{start: start}
}

// Now implements SimClock.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return DateAt(c.start, c.days)
}

// Days implements SimClock.
func (c *Clock) Days() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.days
}

// AddListener registers a callback invoked whenever the clock advances.
func (c *Clock) AddListener(fn func(days float64, at time.Time)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Advance moves the clock to days. Moving backwards or standing still is a
// no-op.
func (c *Clock) Advance(days float64) {
	c.mu.Lock()
	if days <= c.days {
		c.mu.Unlock()
		return
	}
	c.days = days
	at := DateAt(c.start, days)
	listeners := append([]func(float64, time.Time){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(days, at)
	}
}

// Mode describes how a Player paces playback.
type Mode int

const (
	// RealTime waits DayDuration of wall-clock time per simulated day.
	RealTime Mode = iota
	// Accelerated emits frames as fast as listeners consume them.
	Accelerated
)

// Player replays a recorded timeline of frames, each stamped in simulation
// days, to registered listeners.
type Player struct {
	Mode Mode
	// DayDuration is the wall-clock time one simulated day takes in
	// RealTime mode.
	DayDuration time.Duration

	listeners []func(frame int, days float64)
}

// NewPlayer constructs a player.
func NewPlayer(mode Mode, dayDuration time.Duration) *Player {
	return &Player{Mode: mode, DayDuration: dayDuration}
}

// AddListener registers a callback invoked for every frame.
func (p *Player) AddListener(fn func(frame int, days float64)) {
	p.listeners = append(p.listeners, fn)
}

// Start plays frames in a separate goroutine. It returns a channel that is
// closed once every frame has been emitted or ctx is cancelled.
func (p *Player) Start(ctx context.Context, frames []float64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		prev := 0.0
		for i, days := range frames {
			if wait := p.wait(days - prev); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return
			}
			prev = days

			for _, fn := range p.listeners {
				fn(i, days)
			}
		}
	}()
	return done
}

func (p *Player) wait(elapsedDays float64) time.Duration {
	if p.Mode != RealTime || elapsedDays <= 0 || p.DayDuration <= 0 {
		return 0
	}
	return time.Duration(elapsedDays * float64(p.DayDuration))
}
