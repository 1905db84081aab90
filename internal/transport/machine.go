// Package transport keeps local playback in step with an embedding host's transport.
package transport

import (
	"fmt"
	"log/slog"

	"lyrix/internal/arbiter"
)

// State of the host-sync machine.
type State string

const (
	Idle        State = "idle"
	Armed       State = "armed"
	PlayingHost State = "playingHost"
	Forced      State = "forced"
)

// Reason names the event behind a transition.
type Reason string

const (
	ReasonArm          Reason = "arm"
	ReasonDisarm       Reason = "disarm"
	ReasonHostAdvance  Reason = "host-advance"
	ReasonHostReset    Reason = "reset"
	ReasonRewind       Reason = "rewind"
	ReasonStalled      Reason = "stalled"
	ReasonIdleFallback Reason = "idle-fallback"
	ReasonForcePlay    Reason = "force-play"
	ReasonTap          Reason = "tap"
	ReasonReset        Reason = "session-reset"
)

const (
	// StallMs is how long the host may go without advancing before it counts as stopped.
	StallMs int64 = 250
	// IdleFallbackMs is the watchdog limit while the local player still reports playing.
	IdleFallbackMs int64 = 750
	// RewindToleranceMs absorbs host jitter before a backward step counts as a rewind.
	RewindToleranceMs int64 = 2
	// LongPressMs is the minimum hold for a forced play.
	LongPressMs int64 = 600
)

// Player is the local audio element. Implementations must be safe to call from the session goroutine.
type Player interface {
	Play() error
	Pause() error
	Seek(ms int64) error
	IsPlaying() bool
}

// Change is delivered to the listener on every state transition.
type Change struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Reason Reason `json:"reason"`
}

// Machine is the host-sync state machine. It is confined to one goroutine.
type Machine struct {
	state           State
	player          Player
	playing         func() bool
	onChange        func(Change)
	lastAdvanceAtMs int64
}

// New creates a machine in Idle. onChange may be nil.
func New(player Player, onChange func(Change)) *Machine {
	return &Machine{state: Idle, player: player, onChange: onChange}
}

// SetPlayingFunc replaces Player.IsPlaying as the source of local playback state. Sessions
// whose audio element lives in a remote client report playback through it.
func (m *Machine) SetPlayingFunc(fn func() bool) {
	m.playing = fn
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// LastAdvanceAtMs returns the time of the last observed host advance.
func (m *Machine) LastAdvanceAtMs() int64 {
	return m.lastAdvanceAtMs
}

// Arm waits for the host to start: idle -> armed.
func (m *Machine) Arm() bool {
	if m.state != Idle {
		return false
	}
	m.transition(Armed, ReasonArm)
	return true
}

// Disarm stops waiting: armed -> idle.
func (m *Machine) Disarm() bool {
	if m.state != Armed {
		return false
	}
	m.transition(Idle, ReasonDisarm)
	return true
}

// Tap handles a short press on the play button.
func (m *Machine) Tap() {
	if m.state == Forced || m.playerPlaying() {
		m.pause()
		m.transition(Idle, ReasonTap)
		return
	}
	switch m.state {
	case Idle:
		m.transition(Armed, ReasonArm)
	case Armed:
		m.transition(Idle, ReasonDisarm)
	}
}

// LongPress starts local playback regardless of the host when held long enough.
func (m *Machine) LongPress(holdMs int64) bool {
	if holdMs < LongPressMs || (m.state != Idle && m.state != Armed) {
		return false
	}
	m.play()
	m.transition(Forced, ReasonForcePlay)
	return true
}

// ObserveHost feeds one host progress report.
func (m *Machine) ObserveHost(p arbiter.HostProgress) {
	m.lastAdvanceAtMs = p.LastAdvanceAtMs

	switch m.state {
	case Armed:
		if p.Advanced {
			m.seek(p.ValueMs)
			m.play()
			m.transition(PlayingHost, ReasonHostAdvance)
		}
	case PlayingHost:
		switch {
		case p.ValueMs == 0 && p.HasPrevious && p.PreviousMs > 0:
			m.pause()
			m.seek(0)
			m.transition(Armed, ReasonHostReset)
		case p.HasPrevious && p.ValueMs < p.PreviousMs-RewindToleranceMs:
			m.pause()
			m.transition(Armed, ReasonRewind)
		case !p.Advanced && p.AtMs-m.lastAdvanceAtMs > StallMs:
			m.pause()
			m.transition(Armed, ReasonStalled)
		}
	}
}

// CheckIdle is the watchdog tick. It stops playback that the host no longer drives.
func (m *Machine) CheckIdle(nowMs int64) bool {
	if m.state != PlayingHost {
		return false
	}
	silent := nowMs - m.lastAdvanceAtMs
	switch {
	case silent > IdleFallbackMs && m.playerPlaying():
		m.pause()
		m.transition(Armed, ReasonIdleFallback)
	case silent > StallMs:
		m.pause()
		m.transition(Armed, ReasonStalled)
	default:
		return false
	}
	return true
}

// Reset returns to Idle without touching the player, as on song load.
func (m *Machine) Reset() {
	m.lastAdvanceAtMs = 0
	if m.state != Idle {
		m.transition(Idle, ReasonReset)
	}
}

func (m *Machine) transition(to State, reason Reason) {
	from := m.state
	m.state = to
	if m.onChange != nil {
		m.onChange(Change{From: from, To: to, Reason: reason})
	}
}

func (m *Machine) playerPlaying() bool {
	if m.playing != nil {
		return m.playing()
	}
	return m.player != nil && m.player.IsPlaying()
}

func (m *Machine) play() {
	if m.player == nil {
		return
	}
	if err := m.player.Play(); err != nil {
		slog.Warn("transport: play failed", "state", m.state, "error", err)
	}
}

func (m *Machine) pause() {
	if m.player == nil {
		return
	}
	if err := m.player.Pause(); err != nil {
		slog.Warn("transport: pause failed", "state", m.state, "error", err)
	}
}

func (m *Machine) seek(ms int64) {
	if m.player == nil {
		return
	}
	if err := m.player.Seek(ms); err != nil {
		slog.Warn("transport: seek failed", "target", fmt.Sprintf("%dms", ms), "error", err)
	}
}
