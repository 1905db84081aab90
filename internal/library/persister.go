package library

import (
	"context"
	"log/slog"
	"time"

	"lyrix/internal/arbiter"
	"lyrix/internal/models"
	"lyrix/internal/scheduler"
	"lyrix/internal/session"
	"lyrix/internal/transport"
)

// Persister is a session listener that writes timecode changes and transport transitions to
// the database. It runs on the session goroutine. Use one Persister per session.
type Persister struct {
	repo    *Repository
	state   *StateManager
	clock   scheduler.Clock
	timeout time.Duration
	log     *slog.Logger

	s          *session.Session
	lastHostMs int64
}

func NewPersister(repo *Repository, state *StateManager, clock scheduler.Clock) *Persister {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Persister{
		repo:    repo,
		state:   state,
		clock:   clock,
		timeout: 5 * time.Second,
		log:     slog.Default(),
	}
}

// Attach subscribes the persister to s.
func (p *Persister) Attach(s *session.Session) func() {
	p.s = s
	return s.Subscribe(p)
}

func (p *Persister) OnActiveLineChanged(session.ActiveLineChange) {}

func (p *Persister) OnDisplayTimeUpdate(u session.DisplayUpdate) {
	if u.Source == arbiter.SourceHost {
		p.lastHostMs = u.TimeMs
	}
}

func (p *Persister) OnTimecodeCorrected(ev session.TimecodeEvent) {
	if !ev.Cause.Persistent() || ev.SongID == 0 {
		return
	}

	ch := TimecodeChange{
		SongID:      ev.SongID,
		Cause:       string(ev.Cause),
		Corrections: ev.Corrections,
		At:          p.clock.Now(),
	}
	for _, l := range ev.Changed {
		ch.Lines = append(ch.Lines, LineUpdate{LineID: l.LineID, TimeMs: l.TimeMs})
	}
	if ev.Cause == session.CauseOffset {
		off := ev.SongOffsetMs
		ch.OffsetMs = &off
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.repo.ApplyTimecodes(ctx, ch); err != nil {
		p.log.Error("persist timecodes", "song", ev.SongID, "cause", ev.Cause, "error", err)
	}
}

func (p *Persister) OnTransportStateChanged(c transport.Change) {
	if p.state == nil || p.s == nil || p.s.SongID() == 0 {
		return
	}
	songID := p.s.SongID()
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.state.UpdateState(ctx, models.TransportSnapshot{
		SongID:         songID,
		State:          string(c.To),
		Reason:         string(c.Reason),
		HostPositionMs: p.lastHostMs,
	})
	if err != nil {
		p.log.Error("persist transport state", "song", songID, "error", err)
	}
}
