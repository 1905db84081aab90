// Package session owns the sync state of one loaded song: time arbitration, the active line,
// timecode ordering and the host transport. A Session is not safe for concurrent use; the
// Runner confines it to a single goroutine.
package session

import (
	"log/slog"

	"lyrix/internal/arbiter"
	"lyrix/internal/lyrics"
	"lyrix/internal/models"
	"lyrix/internal/scheduler"
	"lyrix/internal/transport"
)

const (
	// DefaultGraceMs protects a manual selection from automatic updates while embedded.
	DefaultGraceMs int64 = 5000
	// displayZeroGuardMs hides a 0 readout shortly after a real position was shown.
	displayZeroGuardMs int64 = 2000
)

// Options configures a Session. Zero values pick sensible defaults.
type Options struct {
	Clock    scheduler.Clock
	Player   transport.Player
	Embedded bool
	Arbiter  arbiter.Config
	GraceMs  int64
	Logger   *slog.Logger
}

// ActiveLine is the highlighted line and the time of the last manual selection.
type ActiveLine struct {
	CurrentIndex            int   `json:"current_index"`
	LastManualSelectionAtMs int64 `json:"last_manual_selection_at_ms"`
	HasManualSelection      bool  `json:"has_manual_selection"`
}

type Session struct {
	clock   scheduler.Clock
	player  transport.Player
	graceMs int64
	log     *slog.Logger

	arb *arbiter.Arbiter
	tr  *transport.Machine

	song  *models.Song
	lines []models.LyricLine

	active       ActiveLine
	embedded     bool
	editMode     bool
	recordMode   bool
	localPlaying bool

	lastDisplayMs      int64
	lastNonZeroAtMs    int64
	hasNonZeroDisplay  bool
	offsetBaseline     []int64
	offsetMs           int64
	offsetCorrections  lyrics.Corrections
	listeners          []*listenerEntry
	nextListenerHandle int
}

type listenerEntry struct {
	id int
	l  Listener
}

// New creates an empty session. Call LoadSong before feeding samples.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = scheduler.RealClock{}
	}
	if opts.GraceMs <= 0 {
		opts.GraceMs = DefaultGraceMs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		clock:    opts.Clock,
		player:   opts.Player,
		graceMs:  opts.GraceMs,
		log:      opts.Logger,
		arb:      arbiter.New(opts.Arbiter),
		embedded: opts.Embedded,
		active:   ActiveLine{CurrentIndex: lyrics.None},
	}
	s.tr = transport.New(opts.Player, s.onTransportChange)
	s.tr.SetPlayingFunc(s.isLocalPlaying)
	return s
}

// Subscribe adds a listener and returns a function that removes it.
func (s *Session) Subscribe(l Listener) func() {
	s.nextListenerHandle++
	id := s.nextListenerHandle
	s.listeners = append(s.listeners, &listenerEntry{id: id, l: l})
	return func() {
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// LoadSong resets all sync state and adopts song's line slice. The session mutates TimeMs in
// place and never reorders or removes lines.
func (s *Session) LoadSong(song *models.Song) {
	s.song = song
	s.lines = nil
	if song != nil {
		s.lines = song.Lines
	}

	s.arb.Reset()
	s.tr.Reset()
	s.active = ActiveLine{CurrentIndex: lyrics.None}
	s.lastDisplayMs, s.lastNonZeroAtMs, s.hasNonZeroDisplay = 0, 0, false
	s.clearOffset()

	s.log.Debug("session: song loaded", "song", s.SongID(), "lines", len(s.lines))
	s.notifyActive(ActiveLineChange{Index: lyrics.None})
}

// Song returns the loaded song, or nil.
func (s *Session) Song() *models.Song {
	return s.song
}

// SongID returns the loaded song's id, or 0.
func (s *Session) SongID() uint {
	if s.song == nil {
		return 0
	}
	return s.song.ID
}

// Lines returns the live line slice.
func (s *Session) Lines() []models.LyricLine {
	return s.lines
}

// Embedded reports whether the session runs inside a host.
func (s *Session) Embedded() bool {
	return s.embedded
}

// SetEmbedded switches host mode. Entering or leaving it resets the transport.
func (s *Session) SetEmbedded(embedded bool) {
	if s.embedded == embedded {
		return
	}
	s.embedded = embedded
	s.tr.Reset()
}

// SetEditMode toggles edit mode. Edit mode never scrolls.
func (s *Session) SetEditMode(on bool) {
	s.editMode = on
}

// SetRecordMode toggles record mode. Playback does not move the highlight while recording.
func (s *Session) SetRecordMode(on bool) {
	s.recordMode = on
}

// SetLocalPlaying reports local playback when no Player is attached. The arbiter and the
// transport both read it.
func (s *Session) SetLocalPlaying(playing bool) {
	s.localPlaying = playing
}

// ActiveLine returns the highlight state.
func (s *Session) ActiveLine() ActiveLine {
	return s.active
}

// TransportState returns the host-sync state.
func (s *Session) TransportState() transport.State {
	return s.tr.State()
}

// SubmitTimeSample stamps a sample with the session clock and runs it through the arbiter.
// Accepted samples update the display and, outside record mode, the active line. Valid host
// samples always reach the transport.
func (s *Session) SubmitTimeSample(valueMs float64, source arbiter.Source) arbiter.Decision {
	s.arb.SetLocalPlaying(s.isLocalPlaying())

	d := s.arb.Submit(arbiter.Sample{ValueMs: valueMs, Source: source, ReceivedAtMs: s.now()})
	samplesTotal.WithLabelValues(string(source), string(d.Reason)).Inc()

	if d.Host != nil {
		s.tr.ObserveHost(*d.Host)
	}
	if !d.Accepted {
		return d
	}

	ms := d.Sample.Millis()
	s.showTime(ms, source)
	if !s.recordMode {
		s.SetActiveLine(lyrics.Resolve(ms, s.lines), false)
	}
	return d
}

// SetActiveLine moves the highlight. It reports whether the change was applied.
// Automatic updates are suppressed in host mode during the grace window after a manual pick.
func (s *Session) SetActiveLine(index int, manual bool) bool {
	if index < lyrics.None || index >= len(s.lines) {
		return false
	}

	now := s.now()
	if manual {
		s.active.LastManualSelectionAtMs = now
		s.active.HasManualSelection = true
	} else {
		if index == s.active.CurrentIndex {
			return false
		}
		if s.embedded && s.active.HasManualSelection && now-s.active.LastManualSelectionAtMs < s.graceMs {
			s.log.Debug("session: automatic line change suppressed", "song", s.SongID(), "index", index)
			return false
		}
	}

	s.active.CurrentIndex = index
	s.notifyActive(ActiveLineChange{
		Index:  index,
		Manual: manual,
		Scroll: !s.editMode && (!s.recordMode || manual),
	})
	return true
}

// Direction for Navigate.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Navigate selects the previous or next line, wrapping at both ends, and seeks to it when the
// line has a timecode. It returns the new index, or lyrics.None when there is nothing to select.
func (s *Session) Navigate(dir Direction) int {
	n := len(s.lines)
	if n == 0 || (dir != Up && dir != Down) {
		return lyrics.None
	}

	cur := s.active.CurrentIndex
	var next int
	switch {
	case cur < 0:
		next = 0
	case dir == Up:
		next = (cur - 1 + n) % n
	default:
		next = (cur + 1) % n
	}

	s.SetActiveLine(next, true)

	if line := s.lines[next]; line.HasTime() {
		if s.player != nil {
			if err := s.player.Seek(line.TimeMs); err != nil {
				s.log.Warn("session: seek failed", "song", s.SongID(), "error", err)
			}
		}
		s.showTime(line.TimeMs, arbiter.SourceScrub)
	}
	return next
}

// EditLineTimecode sets one line's timecode and repairs ordering after it. A negative time
// clears the line. Out-of-range indexes are ignored.
func (s *Session) EditLineTimecode(index int, newMs int64) lyrics.Corrections {
	if index < 0 || index >= len(s.lines) {
		return nil
	}
	before := lyrics.Baseline(s.lines)

	var corr lyrics.Corrections
	if newMs < 0 {
		lyrics.ClearLine(s.lines, index)
	} else {
		s.lines[index].TimeMs = newMs
		corr = lyrics.CorrectFrom(s.lines, index)
	}

	s.emitTimecodes(CauseEdit, before, corr)
	return corr
}

// RecordTimecode stamps the current display time onto the first untimed line. It returns the
// line index, or lyrics.None when every line is timed.
func (s *Session) RecordTimecode() (int, lyrics.Corrections) {
	index := lyrics.NextUntimed(s.lines)
	if index == lyrics.None {
		return lyrics.None, nil
	}
	before := lyrics.Baseline(s.lines)

	s.lines[index].TimeMs = s.lastDisplayMs
	corr := lyrics.CorrectFrom(s.lines, index)

	s.emitTimecodes(CauseRecord, before, corr)
	return index, corr
}

// CorrectAll repairs ordering over the whole song.
func (s *Session) CorrectAll() lyrics.Corrections {
	before := lyrics.Baseline(s.lines)
	corr := lyrics.CorrectAll(s.lines)
	s.emitTimecodes(CauseBulk, before, corr)
	return corr
}

// ClearAll removes every timecode.
func (s *Session) ClearAll() {
	before := lyrics.Baseline(s.lines)
	lyrics.ClearAll(s.lines)
	s.emitTimecodes(CauseClear, before, nil)
}

// ClearLine removes one timecode.
func (s *Session) ClearLine(index int) bool {
	before := lyrics.Baseline(s.lines)
	if !lyrics.ClearLine(s.lines, index) {
		return false
	}
	s.emitTimecodes(CauseClear, before, nil)
	return true
}

// ResetSpacing rewrites timecodes on an even grid.
func (s *Session) ResetSpacing(spacingMs int64) {
	before := lyrics.Baseline(s.lines)
	lyrics.ResetToSpacing(s.lines, spacingMs)
	s.emitTimecodes(CauseReset, before, nil)
}

// AssignMissing times an untimed line from its predecessor.
func (s *Session) AssignMissing(index int) (bool, lyrics.Corrections) {
	before := lyrics.Baseline(s.lines)
	ok, corr := lyrics.AssignMissing(s.lines, index)
	if ok {
		s.emitTimecodes(CauseAssign, before, corr)
	}
	return ok, corr
}

// BeginOffset snapshots the current timecodes as the base for offset previews.
func (s *Session) BeginOffset() {
	s.offsetBaseline = lyrics.Baseline(s.lines)
	s.offsetMs = 0
	s.offsetCorrections = nil
}

// OffsetActive reports whether an offset preview is in progress.
func (s *Session) OffsetActive() bool {
	return s.offsetBaseline != nil
}

// PreviewOffset shifts every timed line by offsetMs relative to the snapshot. Previews are not
// cumulative and are not persisted.
func (s *Session) PreviewOffset(offsetMs int64) lyrics.Corrections {
	if !s.OffsetActive() {
		s.BeginOffset()
	}
	before := lyrics.Baseline(s.lines)

	s.offsetMs = offsetMs
	s.offsetCorrections = lyrics.ApplyGlobalOffset(s.lines, s.offsetBaseline, offsetMs)

	s.emitTimecodes(CauseOffsetPreview, before, s.offsetCorrections)
	return s.offsetCorrections
}

// CommitOffset keeps the previewed timecodes and adds the offset to the song's metadata.
func (s *Session) CommitOffset() (int64, bool) {
	if !s.OffsetActive() {
		return 0, false
	}
	baseline, offset, corr := s.offsetBaseline, s.offsetMs, s.offsetCorrections
	s.clearOffset()

	if s.song != nil {
		s.song.TimeOffsetMs += offset
	}
	s.emitTimecodes(CauseOffset, baseline, corr)
	return offset, true
}

// CancelOffset restores the snapshot.
func (s *Session) CancelOffset() {
	if !s.OffsetActive() {
		return
	}
	before := lyrics.Baseline(s.lines)
	for i := range s.lines {
		if i < len(s.offsetBaseline) {
			s.lines[i].TimeMs = s.offsetBaseline[i]
		}
	}
	s.clearOffset()
	s.emitTimecodes(CauseOffsetPreview, before, nil)
}

func (s *Session) clearOffset() {
	s.offsetBaseline, s.offsetMs, s.offsetCorrections = nil, 0, nil
}

// Arm waits for the host transport to start.
func (s *Session) Arm() bool { return s.tr.Arm() }

// Disarm stops waiting for the host.
func (s *Session) Disarm() bool { return s.tr.Disarm() }

// Tap is a short press on the play button.
func (s *Session) Tap() { s.tr.Tap() }

// LongPress forces local playback when held long enough.
func (s *Session) LongPress(holdMs int64) bool { return s.tr.LongPress(holdMs) }

// WatchdogTick checks whether host-driven playback went silent.
func (s *Session) WatchdogTick() bool {
	fired := s.tr.CheckIdle(s.now())
	if fired {
		watchdogFires.Inc()
	}
	return fired
}

func (s *Session) now() int64 {
	return scheduler.Millis(s.clock)
}

func (s *Session) isLocalPlaying() bool {
	if s.player != nil {
		return s.player.IsPlaying()
	}
	return s.localPlaying
}

func (s *Session) showTime(ms int64, source arbiter.Source) {
	now := s.now()
	// Hosts briefly report 0 while reloading; user seeks to the start are shown at once.
	if source == arbiter.SourceHost && ms == 0 && s.hasNonZeroDisplay &&
		now-s.lastNonZeroAtMs < displayZeroGuardMs {
		return
	}
	if ms > 0 {
		s.lastNonZeroAtMs, s.hasNonZeroDisplay = now, true
	}
	s.lastDisplayMs = ms

	u := DisplayUpdate{TimeMs: ms, Text: lyrics.FormatDisplay(ms), Source: source}
	for _, e := range s.listeners {
		e.l.OnDisplayTimeUpdate(u)
	}
}

func (s *Session) emitTimecodes(cause Cause, before []int64, corr lyrics.Corrections) {
	var changed []LineTime
	for i := range s.lines {
		if i < len(before) && before[i] == s.lines[i].TimeMs {
			continue
		}
		changed = append(changed, LineTime{Index: i, LineID: s.lines[i].ID, TimeMs: s.lines[i].TimeMs})
	}
	if len(changed) == 0 && cause != CauseOffset {
		return
	}
	if n := corr.Count(); n > 0 && cause.Persistent() {
		correctionsTotal.WithLabelValues(string(cause)).Add(float64(n))
	}

	ev := TimecodeEvent{SongID: s.SongID(), Cause: cause, Changed: changed, Corrections: corr}
	if s.song != nil {
		ev.SongOffsetMs = s.song.TimeOffsetMs
	}
	for _, e := range s.listeners {
		e.l.OnTimecodeCorrected(ev)
	}
}

func (s *Session) notifyActive(c ActiveLineChange) {
	for _, e := range s.listeners {
		e.l.OnActiveLineChanged(c)
	}
}

func (s *Session) onTransportChange(c transport.Change) {
	transportTransitions.WithLabelValues(string(c.To), string(c.Reason)).Inc()
	s.log.Debug("session: transport", "song", s.SongID(), "from", c.From, "to", c.To, "reason", c.Reason)
	for _, e := range s.listeners {
		e.l.OnTransportStateChanged(c)
	}
}
