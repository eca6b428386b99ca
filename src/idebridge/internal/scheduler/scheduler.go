// Package scheduler provides cancellable recurring and one-shot tasks. Every
// timer in the bridge is owned through a Task handle so that component
// shutdown can deterministically cancel outstanding work.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/fx"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Scheduler schedules functions for later or repeated execution.
type Scheduler interface {
	// Every runs fn on every tick of a d-spaced interval until the returned
	// task is stopped.
	Every(d time.Duration, fn func()) Task
	// After runs fn once after d, unless the returned task is stopped first.
	After(d time.Duration, fn func()) Task
}

// Task is a handle to scheduled work. Stop is idempotent and safe to call
// concurrently with the task firing; a call that loses that race does not
// un-run the function.
type Task interface {
	Stop()
}

type scheduler struct{}

// New creates a Scheduler backed by the runtime's timers.
func New() Scheduler {
	return scheduler{}
}

func (scheduler) Every(d time.Duration, fn func()) Task {
	t := &intervalTask{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				fn()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (scheduler) After(d time.Duration, fn func()) Task {
	return &oneShotTask{timer: time.AfterFunc(d, fn)}
}

type intervalTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *intervalTask) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}

type oneShotTask struct {
	timer *time.Timer
}

func (t *oneShotTask) Stop() {
	t.timer.Stop()
}
