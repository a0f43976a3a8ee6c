// Package engine owns the single logical thread of control. Every broker
// mutation happens on the Loop goroutine: gateways, timers and the UI
// transport hand work to it through Post, so consumers never observe a
// half-applied merge.
package engine

import (
	"context"
	"log/slog"
)

// Loop is the single-threaded event processor.
type Loop struct {
	inbox chan func()
}

// NewLoop creates a loop with the given inbox capacity.
func NewLoop(inboxSize int) *Loop {
	return &Loop{inbox: make(chan func(), inboxSize)}
}

// Post hands a job to the loop. Jobs run in the order they were posted.
// Blocks when the inbox is full.
func (l *Loop) Post(job func()) {
	l.inbox <- job
}

// Run drains the inbox until ctx is cancelled. This MUST be run in a
// single goroutine.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("engine loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("engine loop stopping")
			return
		case job := <-l.inbox:
			job()
		}
	}
}
