package session

import (
	"lyrix/internal/arbiter"
	"lyrix/internal/lyrics"
	"lyrix/internal/transport"
)

// LineView is one line as shown to clients.
type LineView struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Text   string `json:"text"`
	Type   string `json:"type"`
	TimeMs int64  `json:"time_ms"`
	Clock  string `json:"clock"`
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	SongID        uint            `json:"song_id"`
	Title         string          `json:"title"`
	Artist        string          `json:"artist"`
	Embedded      bool            `json:"embedded"`
	EditMode      bool            `json:"edit_mode"`
	RecordMode    bool            `json:"record_mode"`
	ActiveIndex   int             `json:"active_index"`
	NextIndex     int             `json:"next_index"`
	Transport     transport.State `json:"transport"`
	DisplayMs     int64           `json:"display_ms"`
	DisplayText   string          `json:"display_text"`
	SongOffsetMs  int64           `json:"song_offset_ms"`
	OffsetPreview *int64          `json:"offset_preview_ms,omitempty"`
	CustomTimes   bool            `json:"custom_timecodes"`
	Lines         []LineView      `json:"lines"`
}

// Diagnostics exposes arbitration counters and timing for troubleshooting host sync.
type Diagnostics struct {
	Arbiter             arbiter.Diagnostics `json:"arbiter"`
	ArbiterState        arbiter.State       `json:"arbiter_state"`
	ActiveLine          ActiveLine          `json:"active_line"`
	Transport           transport.State     `json:"transport"`
	LastHostAdvanceAtMs int64               `json:"last_host_advance_at_ms"`
	NowMs               int64               `json:"now_ms"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SongID:      s.SongID(),
		Embedded:    s.embedded,
		EditMode:    s.editMode,
		RecordMode:  s.recordMode,
		ActiveIndex: s.active.CurrentIndex,
		NextIndex:   lyrics.NextLineAfter(s.lastDisplayMs, s.lines),
		Transport:   s.tr.State(),
		DisplayMs:   s.lastDisplayMs,
		DisplayText: lyrics.FormatDisplay(s.lastDisplayMs),
		CustomTimes: lyrics.HasCustomTimecodes(s.lines),
		Lines:       make([]LineView, len(s.lines)),
	}
	if s.song != nil {
		snap.Title, snap.Artist, snap.SongOffsetMs = s.song.Title, s.song.Artist, s.song.TimeOffsetMs
	}
	if s.OffsetActive() {
		off := s.offsetMs
		snap.OffsetPreview = &off
	}
	for i, l := range s.lines {
		snap.Lines[i] = LineView{
			Index:  i,
			ID:     l.ID,
			Text:   l.Text,
			Type:   l.Type,
			TimeMs: l.TimeMs,
			Clock:  lyrics.FormatClock(l.TimeMs),
		}
	}
	return snap
}

// Diagnostics reports arbiter and transport internals.
func (s *Session) Diagnostics() Diagnostics {
	return Diagnostics{
		Arbiter:             s.arb.Diagnostics(),
		ArbiterState:        s.arb.State(),
		ActiveLine:          s.active,
		Transport:           s.tr.State(),
		LastHostAdvanceAtMs: s.tr.LastAdvanceAtMs(),
		NowMs:               s.now(),
	}
}
