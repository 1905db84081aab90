package session

import "sync"

// lockedPlayer is a SimPlayer guarded for tests that read it from outside the actor.
type lockedPlayer struct {
	mu sync.Mutex
	p  SimPlayer
}

func (l *lockedPlayer) Play() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Play()
}

func (l *lockedPlayer) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Pause()
}

func (l *lockedPlayer) Seek(ms int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Seek(ms)
}

func (l *lockedPlayer) IsPlaying() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.IsPlaying()
}
