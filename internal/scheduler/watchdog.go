package scheduler

import (
	"context"
	"sync"
	"time"
)

// Watchdog runs fn on a fixed interval until stopped. Start on a running watchdog restarts it,
// so a song load can reset the period.
type Watchdog struct {
	interval time.Duration
	fn       func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatchdog(interval time.Duration, fn func()) *Watchdog {
	if interval <= 0 {
		interval = 120 * time.Millisecond
	}
	return &Watchdog{interval: interval, fn: fn}
}

// Interval returns the tick period.
func (w *Watchdog) Interval() time.Duration {
	return w.interval
}

// Start begins ticking. The loop ends when ctx is cancelled or Stop is called.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.fn()
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit. Safe to call when not running.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Running reports whether the loop is active.
func (w *Watchdog) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *Watchdog) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel, w.done = nil, nil
}
