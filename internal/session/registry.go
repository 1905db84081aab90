package session

import (
	"context"
	"sync"
	"time"

	"lyrix/internal/models"
)

// Registry keeps one Runner per song for the HTTP service.
type Registry struct {
	mu       sync.Mutex
	runners  map[uint]*Runner
	template Options
	interval time.Duration
	setup    []func(*Session)
}

// NewRegistry creates an empty registry. New sessions are built from template.
func NewRegistry(template Options, watchdogInterval time.Duration) *Registry {
	return &Registry{
		runners:  make(map[uint]*Runner),
		template: template,
		interval: watchdogInterval,
	}
}

// OnOpen registers a hook run on every new session before its first song load, typically to
// subscribe listeners.
func (r *Registry) OnOpen(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setup = append(r.setup, fn)
}

// Open loads song into its runner, creating the runner on first use. Reopening an existing
// song performs a hard reset.
func (r *Registry) Open(ctx context.Context, song *models.Song) (*Runner, error) {
	r.mu.Lock()
	runner, ok := r.runners[song.ID]
	if !ok {
		s := New(r.template)
		for _, fn := range r.setup {
			fn(s)
		}
		runner = NewRunner(s, r.interval)
		r.runners[song.ID] = runner
		openSessions.Set(float64(len(r.runners)))
	}
	r.mu.Unlock()

	if err := runner.LoadSong(ctx, song); err != nil {
		return nil, err
	}
	return runner, nil
}

// Get returns the runner for songID.
func (r *Registry) Get(songID uint) (*Runner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runner, ok := r.runners[songID]
	return runner, ok
}

// Close stops and forgets the runner for songID.
func (r *Registry) Close(songID uint) bool {
	r.mu.Lock()
	runner, ok := r.runners[songID]
	delete(r.runners, songID)
	openSessions.Set(float64(len(r.runners)))
	r.mu.Unlock()

	if ok {
		runner.Close()
	}
	return ok
}

// CloseAll stops every runner.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	runners := r.runners
	r.runners = make(map[uint]*Runner)
	openSessions.Set(0)
	r.mu.Unlock()

	for _, runner := range runners {
		runner.Close()
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runners)
}
