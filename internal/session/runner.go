package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"lyrix/internal/models"
	"lyrix/internal/scheduler"
)

// ErrClosed is returned by Runner calls after Close.
var ErrClosed = errors.New("session: closed")

// Runner confines a Session to one goroutine. Every external event is a closure executed
// run-to-completion on that goroutine, so the session itself needs no locks. While the session
// is embedded a watchdog tick is delivered the same way.
type Runner struct {
	s        *Session
	cmds     chan command
	ticks    chan struct{}
	watchdog *scheduler.Watchdog

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	restart bool
}

// NewRunner starts the actor goroutine for s.
func NewRunner(s *Session, watchdogInterval time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		s:      s,
		cmds:   make(chan command),
		ticks:  make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.watchdog = scheduler.NewWatchdog(watchdogInterval, r.tick)
	go r.loop()
	return r
}

type command struct {
	fn   func(*Session)
	done chan struct{}
}

// Do runs fn on the session goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Session)) error {
	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}
}

// LoadSong resets the session with song and restarts the watchdog period.
func (r *Runner) LoadSong(ctx context.Context, song *models.Song) error {
	return r.Do(ctx, func(s *Session) {
		s.LoadSong(song)
		r.restart = true
	})
}

// WatchdogRunning reports whether the watchdog is ticking.
func (r *Runner) WatchdogRunning() bool {
	return r.watchdog.Running()
}

// Close stops the actor and the watchdog. Pending calls return ErrClosed.
func (r *Runner) Close() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})
}

// Done is closed when the actor has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop() {
	defer close(r.done)
	defer r.watchdog.Stop()

	r.syncWatchdog()
	for {
		select {
		case <-r.ctx.Done():
			return
		case cmd := <-r.cmds:
			cmd.fn(r.s)
			r.syncWatchdog()
			close(cmd.done)
		case <-r.ticks:
			r.s.WatchdogTick()
		}
	}
}

func (r *Runner) syncWatchdog() {
	switch {
	case !r.s.Embedded():
		r.watchdog.Stop()
	case r.restart || !r.watchdog.Running():
		r.watchdog.Start(r.ctx)
	}
	r.restart = false
}

// tick runs on the watchdog goroutine and must never block.
func (r *Runner) tick() {
	select {
	case r.ticks <- struct{}{}:
	default:
	}
}
