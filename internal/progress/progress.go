// Package progress models long-running work that reports percent complete.
package progress

import (
	"context"
	"math/rand/v2"
	"time"
)

// Observer receives progress notifications. Either callback may be nil.
type Observer struct {
	OnTick     func(percent float64) // Called with a non-decreasing percent in [0, 100]
	OnComplete func()                // Called once after the final tick of 100
}

func (o Observer) tick(p float64) {
	if o.OnTick != nil {
		o.OnTick(p)
	}
}

func (o Observer) complete() {
	if o.OnComplete != nil {
		o.OnComplete()
	}
}

// Task is a unit of work whose progress can be observed. Start blocks until the
// task completes or ctx is done.
type Task interface {
	Start(ctx context.Context, obs Observer) error
}

const (
	DefaultInterval = 400 * time.Millisecond
	DefaultMaxStep  = 15.0
)

// Simulated advances by a random step on every tick until it reaches 100.
type Simulated struct {
	Interval time.Duration
	// Step returns the next increment; defaults to rand in [0, DefaultMaxStep).
	Step func() float64
}

// NewSimulated returns a Simulated task with default timing.
func NewSimulated() *Simulated {
	return &Simulated{Interval: DefaultInterval}
}

func (s *Simulated) Start(ctx context.Context, obs Observer) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	step := s.Step
	if step == nil {
		step = func() float64 { return rand.Float64() * DefaultMaxStep }
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var percent float64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if inc := step(); inc > 0 {
				percent += inc
			}
			if percent >= 100 {
				obs.tick(100)
				obs.complete()
				return nil
			}
			obs.tick(percent)
		}
	}
}

// Tracker converts byte counts into observer ticks. It never reports a percent lower
// than one already reported.
type Tracker struct {
	total int64
	done  int64
	last  float64
	obs   Observer
}

// NewTracker tracks progress towards total bytes.
func NewTracker(total int64, obs Observer) *Tracker {
	return &Tracker{total: total, obs: obs}
}

// Add records n more bytes.
func (t *Tracker) Add(n int) {
	if n <= 0 || t.total <= 0 {
		return
	}
	t.done += int64(n)
	p := float64(t.done) / float64(t.total) * 100
	if p > 100 {
		p = 100
	}
	if p > t.last {
		t.last = p
		t.obs.tick(p)
	}
}

// Finish reports 100 if not yet reported and signals completion.
func (t *Tracker) Finish() {
	if t.last < 100 {
		t.last = 100
		t.obs.tick(100)
	}
	t.obs.complete()
}
