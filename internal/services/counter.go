// Package services – Counter
//
// Counter backs the two demo endpoints: a fixed single value (/mono) and an
// unbounded tick stream (/stream). The stream emits consecutive integers
// starting at 0, one per interval, and stops as soon as its context is done.
package services

import (
	"context"
	"time"
)

const (
	// DefaultStreamInterval is the spacing between emitted values.
	DefaultStreamInterval = time.Second
	// DefaultMonoMessage is the value returned by Mono.
	DefaultMonoMessage = "Hello Mono"
)

// Counter produces the demo values.
type Counter struct {
	Interval time.Duration
	Message  string
}

// NewCounter returns a Counter; non-positive interval or empty message fall
// back to the defaults.
func NewCounter(interval time.Duration, message string) *Counter {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	if message == "" {
		message = DefaultMonoMessage
	}
	return &Counter{Interval: interval, Message: message}
}

// Mono returns the fixed demo string.
func (c *Counter) Mono() string {
	if c.Message == "" {
		return DefaultMonoMessage
	}
	return c.Message
}

// Run starts a goroutine that sends 0, 1, 2, … on the returned channel, one
// value per Interval, and closes the channel once ctx is done. Ticks missed
// by a slow consumer are not queued up.
func (c *Counter) Run(ctx context.Context) <-chan int64 {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	out := make(chan int64)

	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()

		var n int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			select {
			case out <- n:
				n++
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
