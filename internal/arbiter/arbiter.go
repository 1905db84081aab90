// Package arbiter decides which incoming playback time samples are allowed to drive the lyric
// display. Samples come from two untrusted clocks (the local media element and the host
// transport) plus user scrubbing, and arrive asynchronously.
package arbiter

import "math"

// Source identifies where a time sample came from.
type Source string

const (
	SourceLocal Source = "local"
	SourceHost  Source = "host"
	SourceScrub Source = "scrub"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceLocal, SourceHost, SourceScrub:
		return true
	}
	return false
}

// Reason explains a decision. Accepted samples carry ReasonAccepted.
type Reason string

const (
	ReasonAccepted         Reason = "accepted"
	ReasonInvalidValue     Reason = "invalid-value"
	ReasonZeroReset        Reason = "zero-reset"
	ReasonSourceContention Reason = "source-contention"
	ReasonThrottle         Reason = "throttle"
)

// Config holds the arbitration windows in milliseconds.
type Config struct {
	ResetGuardMs       int64 `mapstructure:"reset_guard_ms" json:"reset_guard_ms" yaml:"reset_guard_ms"`
	ContentionWindowMs int64 `mapstructure:"contention_window_ms" json:"contention_window_ms" yaml:"contention_window_ms"`
	ThrottleMs         int64 `mapstructure:"throttle_ms" json:"throttle_ms" yaml:"throttle_ms"`
	HostAdvanceMinMs   int64 `mapstructure:"host_advance_min_ms" json:"host_advance_min_ms" yaml:"host_advance_min_ms"`
}

// DefaultConfig returns the windows the player UI was tuned with.
func DefaultConfig() Config {
	return Config{
		ResetGuardMs:       1000,
		ContentionWindowMs: 500,
		ThrottleMs:         16,
		HostAdvanceMinMs:   1,
	}
}

// Sample is one observation of the playback position.
type Sample struct {
	ValueMs      float64 `json:"value_ms" yaml:"value_ms"`
	Source       Source  `json:"source" yaml:"source"`
	ReceivedAtMs int64   `json:"received_at_ms" yaml:"received_at_ms"`
}

// Millis returns the sample value truncated to whole milliseconds.
func (s Sample) Millis() int64 {
	return int64(math.Floor(s.ValueMs))
}

// HostProgress describes how the host transport moved with one host sample.
type HostProgress struct {
	PreviousMs      int64 `json:"previous_ms"`
	HasPrevious     bool  `json:"has_previous"`
	ValueMs         int64 `json:"value_ms"`
	Advanced        bool  `json:"advanced"`
	AtMs            int64 `json:"at_ms"`
	LastAdvanceAtMs int64 `json:"last_advance_at_ms"`
}

// Decision is the outcome of Submit. Host is set for every valid host sample, accepted or not.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
	Sample   Sample `json:"sample"`
	// Host bookkeeping includes rejected host samples, so the transport still sees resets.
	Host *HostProgress `json:"host,omitempty"`
}

// State is the arbitration memory for one session.
type State struct {
	LastAcceptedValueMs   int64          `json:"last_accepted_value_ms"`
	LastAcceptedSource    Source         `json:"last_accepted_source"`
	LastAcceptedAtMs      int64          `json:"last_accepted_at_ms"`
	HasAccepted           bool           `json:"has_accepted"`
	LastHostValueMs       int64          `json:"last_host_value_ms"`
	HasHostValue          bool           `json:"has_host_value"`
	LastHostAcceptedAtMs  int64          `json:"last_host_accepted_at_ms"`
	HasHostAccepted       bool           `json:"has_host_accepted"`
	LastHostAdvanceAtMs   int64          `json:"last_host_advance_at_ms"`
	LastDisplayedMs       int64          `json:"last_displayed_ms"`
	LocalPlaying          bool           `json:"local_playing"`
	RecentResetBlockCount int            `json:"recent_reset_block_count"`
	RejectedCount         map[Reason]int `json:"rejected_count"`
	LastRejectionAtMs     int64          `json:"last_rejection_at_ms"`
}

// Diagnostics is a read-only summary for logs and the API.
type Diagnostics struct {
	Accepted              int            `json:"accepted"`
	Rejected              map[Reason]int `json:"rejected"`
	RecentResetBlockCount int            `json:"recent_reset_block_count"`
	LastRejectionAtMs     int64          `json:"last_rejection_at_ms"`
	LastAcceptedSource    Source         `json:"last_accepted_source"`
	LastDisplayedMs       int64          `json:"last_displayed_ms"`
}

// Arbiter is not safe for concurrent use; a session confines it to one goroutine.
type Arbiter struct {
	cfg      Config
	state    State
	accepted int
}

// New creates an arbiter. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config) *Arbiter {
	def := DefaultConfig()
	if cfg.ResetGuardMs <= 0 {
		cfg.ResetGuardMs = def.ResetGuardMs
	}
	if cfg.ContentionWindowMs <= 0 {
		cfg.ContentionWindowMs = def.ContentionWindowMs
	}
	if cfg.ThrottleMs <= 0 {
		cfg.ThrottleMs = def.ThrottleMs
	}
	if cfg.HostAdvanceMinMs <= 0 {
		cfg.HostAdvanceMinMs = def.HostAdvanceMinMs
	}
	a := &Arbiter{cfg: cfg}
	a.Reset()
	return a
}

// Config returns the effective windows.
func (a *Arbiter) Config() Config {
	return a.cfg
}

// Reset forgets everything, as on song load.
func (a *Arbiter) Reset() {
	a.state = State{RejectedCount: make(map[Reason]int)}
	a.accepted = 0
}

// SetLocalPlaying records whether the local media element reports playback.
func (a *Arbiter) SetLocalPlaying(playing bool) {
	a.state.LocalPlaying = playing
}

// State returns a copy of the current state.
func (a *Arbiter) State() State {
	s := a.state
	s.RejectedCount = make(map[Reason]int, len(a.state.RejectedCount))
	for k, v := range a.state.RejectedCount {
		s.RejectedCount[k] = v
	}
	return s
}

// Diagnostics summarizes counters.
func (a *Arbiter) Diagnostics() Diagnostics {
	s := a.State()
	return Diagnostics{
		Accepted:              a.accepted,
		Rejected:              s.RejectedCount,
		RecentResetBlockCount: s.RecentResetBlockCount,
		LastRejectionAtMs:     s.LastRejectionAtMs,
		LastAcceptedSource:    s.LastAcceptedSource,
		LastDisplayedMs:       s.LastDisplayedMs,
	}
}

// Submit evaluates one sample. It never fails: rejections are reported in the decision.
func (a *Arbiter) Submit(sample Sample) Decision {
	d := Decision{Sample: sample}

	if !validValue(sample.ValueMs) || !sample.Source.Valid() {
		return a.reject(d, ReasonInvalidValue)
	}

	valueMs := sample.Millis()
	now := sample.ReceivedAtMs

	if sample.Source == SourceHost {
		d.Host = a.trackHost(valueMs, now)
	}

	// Only the host emits spurious resets; a scrub or local zero is a real seek to the start.
	if sample.Source == SourceHost && valueMs == 0 && a.state.HasAccepted &&
		a.state.LastAcceptedValueMs > a.cfg.ResetGuardMs &&
		(a.state.LocalPlaying || a.state.LastDisplayedMs > a.cfg.ResetGuardMs) {
		a.state.RecentResetBlockCount++
		return a.reject(d, ReasonZeroReset)
	}

	if sample.Source == SourceLocal && a.state.HasHostAccepted &&
		now-a.state.LastHostAcceptedAtMs < a.cfg.ContentionWindowMs {
		return a.reject(d, ReasonSourceContention)
	}

	if sample.Source != SourceHost && a.state.HasAccepted &&
		now-a.state.LastAcceptedAtMs < a.cfg.ThrottleMs {
		return a.reject(d, ReasonThrottle)
	}

	a.state.LastAcceptedValueMs = valueMs
	a.state.LastAcceptedSource = sample.Source
	a.state.LastAcceptedAtMs = now
	a.state.HasAccepted = true
	a.state.LastDisplayedMs = valueMs
	if sample.Source == SourceHost {
		a.state.LastHostAcceptedAtMs = now
		a.state.HasHostAccepted = true
	}
	a.accepted++

	d.Accepted = true
	d.Reason = ReasonAccepted
	return d
}

func (a *Arbiter) trackHost(valueMs, now int64) *HostProgress {
	p := &HostProgress{
		PreviousMs:  a.state.LastHostValueMs,
		HasPrevious: a.state.HasHostValue,
		ValueMs:     valueMs,
		AtMs:        now,
	}
	// Before any host value the transport is assumed to sit at zero.
	if valueMs >= p.PreviousMs+a.cfg.HostAdvanceMinMs {
		p.Advanced = true
		a.state.LastHostAdvanceAtMs = now
	}
	a.state.LastHostValueMs = valueMs
	a.state.HasHostValue = true
	p.LastAdvanceAtMs = a.state.LastHostAdvanceAtMs
	return p
}

func (a *Arbiter) reject(d Decision, reason Reason) Decision {
	a.state.RejectedCount[reason]++
	a.state.LastRejectionAtMs = d.Sample.ReceivedAtMs
	d.Accepted = false
	d.Reason = reason
	return d
}

func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
