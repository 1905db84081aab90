package session

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lyrix/internal/arbiter"
	"lyrix/internal/models"
	"lyrix/internal/scheduler"
	"lyrix/internal/transport"
)

// Trace is a scripted sequence of session events, used to replay host-sync problems offline.
type Trace struct {
	Song     TraceSong    `yaml:"song"`
	Embedded bool         `yaml:"embedded"`
	Events   []TraceEvent `yaml:"events"`
}

type TraceSong struct {
	Title  string      `yaml:"title"`
	Artist string      `yaml:"artist"`
	Lines  []TraceLine `yaml:"lines"`
}

type TraceLine struct {
	Text   string `yaml:"text"`
	TimeMs *int64 `yaml:"time_ms"`
}

// TraceEvent happens at AtMs after the start of the trace. Exactly one action field is set.
type TraceEvent struct {
	AtMs      int64        `yaml:"at_ms"`
	Sample    *TraceSample `yaml:"sample,omitempty"`
	Edit      *TraceEdit   `yaml:"edit,omitempty"`
	Select    *int         `yaml:"select,omitempty"`
	Transport string       `yaml:"transport,omitempty"`
	HoldMs    int64        `yaml:"hold_ms,omitempty"`
	Watchdog  bool         `yaml:"watchdog,omitempty"`
	Playing   *bool        `yaml:"local_playing,omitempty"`
}

type TraceSample struct {
	Source  arbiter.Source `yaml:"source"`
	ValueMs float64        `yaml:"value_ms"`
}

type TraceEdit struct {
	Line   int   `yaml:"line"`
	TimeMs int64 `yaml:"time_ms"`
}

// TimelineEntry is one row of replay output.
type TimelineEntry struct {
	AtMs      int64
	Event     string
	Outcome   string
	Active    int
	Transport transport.State
	Display   string
}

// LoadTrace reads a YAML trace file.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return DecodeTrace(f)
}

// DecodeTrace parses a YAML trace.
func DecodeTrace(r io.Reader) (*Trace, error) {
	var t Trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	for i, ev := range t.Events {
		if ev.actions() != 1 {
			return nil, fmt.Errorf("event %d: want exactly one action, got %d", i, ev.actions())
		}
		if i > 0 && ev.AtMs < t.Events[i-1].AtMs {
			return nil, fmt.Errorf("event %d: at_ms goes backwards", i)
		}
	}
	return &t, nil
}

func (e TraceEvent) actions() int {
	n := 0
	for _, set := range []bool{e.Sample != nil, e.Edit != nil, e.Select != nil, e.Transport != "", e.Watchdog, e.Playing != nil} {
		if set {
			n++
		}
	}
	return n
}

// BuildSong turns the trace song into a model with fresh line ids.
func (t *Trace) BuildSong() *models.Song {
	song := &models.Song{Title: t.Song.Title, Artist: t.Song.Artist}
	song.ID = 1
	for i, l := range t.Song.Lines {
		ms := models.UnsetTime
		if l.TimeMs != nil {
			ms = *l.TimeMs
		}
		line := models.NewLyricLine(l.Text, ms)
		line.Position = i
		line.SongID = song.ID
		song.Lines = append(song.Lines, line)
	}
	return song
}

// SimPlayer is a Player that only records state, for replays and tests.
type SimPlayer struct {
	Playing  bool
	Position int64
	Calls    []string
}

func (p *SimPlayer) Play() error {
	p.Playing = true
	p.Calls = append(p.Calls, "play")
	return nil
}

func (p *SimPlayer) Pause() error {
	p.Playing = false
	p.Calls = append(p.Calls, "pause")
	return nil
}

func (p *SimPlayer) Seek(ms int64) error {
	p.Position = ms
	p.Calls = append(p.Calls, fmt.Sprintf("seek %d", ms))
	return nil
}

func (p *SimPlayer) IsPlaying() bool {
	return p.Playing
}

// Replay runs the trace against a fresh session on a mock clock. No goroutines or timers are
// involved: watchdog ticks only happen where the trace asks for them.
func Replay(t *Trace, cfg arbiter.Config) ([]TimelineEntry, *Session) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := scheduler.NewMockClock(start)
	player := &SimPlayer{}

	s := New(Options{Clock: clock, Player: player, Embedded: t.Embedded, Arbiter: cfg})
	s.LoadSong(t.BuildSong())

	var timeline []TimelineEntry
	for _, ev := range t.Events {
		clock.Set(start.Add(time.Duration(ev.AtMs) * time.Millisecond))
		name, outcome := s.applyTraceEvent(ev, player)
		timeline = append(timeline, TimelineEntry{
			AtMs:      ev.AtMs,
			Event:     name,
			Outcome:   outcome,
			Active:    s.ActiveLine().CurrentIndex,
			Transport: s.TransportState(),
			Display:   s.Snapshot().DisplayText,
		})
	}
	return timeline, s
}

func (s *Session) applyTraceEvent(ev TraceEvent, player *SimPlayer) (string, string) {
	switch {
	case ev.Sample != nil:
		d := s.SubmitTimeSample(ev.Sample.ValueMs, ev.Sample.Source)
		return fmt.Sprintf("%s %.0fms", ev.Sample.Source, ev.Sample.ValueMs), string(d.Reason)
	case ev.Edit != nil:
		corr := s.EditLineTimecode(ev.Edit.Line, ev.Edit.TimeMs)
		return fmt.Sprintf("edit line %d -> %dms", ev.Edit.Line, ev.Edit.TimeMs), fmt.Sprintf("%d corrections", corr.Count())
	case ev.Select != nil:
		ok := s.SetActiveLine(*ev.Select, true)
		return fmt.Sprintf("select line %d", *ev.Select), fmt.Sprintf("applied=%v", ok)
	case ev.Transport != "":
		return "transport " + ev.Transport, s.applyTransportCommand(ev.Transport, ev.HoldMs)
	case ev.Watchdog:
		return "watchdog", fmt.Sprintf("fired=%v", s.WatchdogTick())
	case ev.Playing != nil:
		player.Playing = *ev.Playing
		return "local playing", fmt.Sprintf("%v", *ev.Playing)
	}
	return "noop", ""
}

// applyTransportCommand maps a command name onto the transport gestures.
func (s *Session) applyTransportCommand(cmd string, holdMs int64) string {
	switch cmd {
	case "arm":
		return fmt.Sprintf("applied=%v", s.Arm())
	case "disarm":
		return fmt.Sprintf("applied=%v", s.Disarm())
	case "tap":
		s.Tap()
		return "ok"
	case "longPress":
		return fmt.Sprintf("applied=%v", s.LongPress(holdMs))
	}
	return "unknown command"
}
