package engine

import (
	"sort"
	"time"
)

// TimeProvider abstracts wall time and deferred execution so broker logic
// can be driven deterministically in tests. Callbacks always fire on the
// engine loop.
type TimeProvider interface {
	Now() time.Time
	SetTimeout(d time.Duration, fn func())
	SetInterval(d time.Duration, fn func()) (stop func())
}

// RealTime is the production TimeProvider: wall clock plus timers that
// re-post their callbacks onto the loop.
type RealTime struct {
	loop *Loop
}

// NewRealTime creates a TimeProvider bound to the given loop.
func NewRealTime(loop *Loop) *RealTime {
	return &RealTime{loop: loop}
}

func (t *RealTime) Now() time.Time {
	return time.Now().UTC()
}

func (t *RealTime) SetTimeout(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { t.loop.Post(fn) })
}

func (t *RealTime) SetInterval(d time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.loop.Post(fn)
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

type manualTimer struct {
	at       time.Time
	interval time.Duration // 0 for one-shot
	fn       func()
	stopped  bool
}

// ManualTime is a deterministic TimeProvider for tests. Timers only fire
// when Advance moves the clock past their deadline, synchronously on the
// calling goroutine.
type ManualTime struct {
	now    time.Time
	timers []*manualTimer
}

// NewManualTime creates a manual clock starting at now.
func NewManualTime(now time.Time) *ManualTime {
	return &ManualTime{now: now}
}

func (t *ManualTime) Now() time.Time {
	return t.now
}

func (t *ManualTime) SetTimeout(d time.Duration, fn func()) {
	t.timers = append(t.timers, &manualTimer{at: t.now.Add(d), fn: fn})
}

func (t *ManualTime) SetInterval(d time.Duration, fn func()) (stop func()) {
	tm := &manualTimer{at: t.now.Add(d), interval: d, fn: fn}
	t.timers = append(t.timers, tm)
	return func() { tm.stopped = true }
}

// Advance moves the clock forward, firing due timers in deadline order.
func (t *ManualTime) Advance(d time.Duration) {
	target := t.now.Add(d)
	for {
		var next *manualTimer
		for _, tm := range t.timers {
			if tm.stopped || tm.at.After(target) {
				continue
			}
			if next == nil || tm.at.Before(next.at) {
				next = tm
			}
		}
		if next == nil {
			break
		}
		t.now = next.at
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
		} else {
			next.stopped = true
		}
		next.fn()
	}
	t.now = target
	t.gc()
}

func (t *ManualTime) gc() {
	live := t.timers[:0]
	for _, tm := range t.timers {
		if !tm.stopped {
			live = append(live, tm)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].at.Before(live[j].at) })
	t.timers = live
}
