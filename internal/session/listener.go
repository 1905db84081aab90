package session

import (
	"lyrix/internal/arbiter"
	"lyrix/internal/lyrics"
	"lyrix/internal/transport"
)

// ActiveLineChange reports a new highlighted line. Index is lyrics.None when nothing is active.
type ActiveLineChange struct {
	Index  int  `json:"index"`
	Manual bool `json:"manual"`
	Scroll bool `json:"scroll"`
}

// Cause tells listeners which operation rewrote timecodes.
type Cause string

const (
	CauseEdit          Cause = "edit"
	CauseRecord        Cause = "record"
	CauseBulk          Cause = "bulk"
	CauseOffsetPreview Cause = "offset-preview"
	CauseOffset        Cause = "offset"
	CauseClear         Cause = "clear"
	CauseReset         Cause = "reset"
	CauseAssign        Cause = "assign"
)

// Persistent reports whether changes with this cause should be saved.
func (c Cause) Persistent() bool {
	return c != CauseOffsetPreview
}

// LineTime is the new timecode of one line.
type LineTime struct {
	Index  int    `json:"index"`
	LineID string `json:"line_id"`
	TimeMs int64  `json:"time_ms"`
}

// TimecodeEvent lists every line whose timecode changed in one operation, plus the automatic
// corrections the ordering repair made on top of the requested change.
type TimecodeEvent struct {
	SongID       uint               `json:"song_id"`
	Cause        Cause              `json:"cause"`
	Changed      []LineTime         `json:"changed"`
	Corrections  lyrics.Corrections `json:"corrections"`
	SongOffsetMs int64              `json:"song_offset_ms"`
}

// DisplayUpdate carries the time readout shown next to the lyrics.
type DisplayUpdate struct {
	TimeMs int64          `json:"time_ms"`
	Text   string         `json:"text"`
	Source arbiter.Source `json:"source"`
}

// Listener receives session notifications on the session goroutine. Implementations must not
// call back into the session synchronously.
type Listener interface {
	OnActiveLineChanged(ActiveLineChange)
	OnTimecodeCorrected(TimecodeEvent)
	OnDisplayTimeUpdate(DisplayUpdate)
	OnTransportStateChanged(transport.Change)
}

// Funcs adapts optional callbacks to a Listener. Nil fields are skipped.
type Funcs struct {
	ActiveLine func(ActiveLineChange)
	Timecodes  func(TimecodeEvent)
	Display    func(DisplayUpdate)
	Transport  func(transport.Change)
}

func (f Funcs) OnActiveLineChanged(c ActiveLineChange) {
	if f.ActiveLine != nil {
		f.ActiveLine(c)
	}
}

func (f Funcs) OnTimecodeCorrected(e TimecodeEvent) {
	if f.Timecodes != nil {
		f.Timecodes(e)
	}
}

func (f Funcs) OnDisplayTimeUpdate(u DisplayUpdate) {
	if f.Display != nil {
		f.Display(u)
	}
}

func (f Funcs) OnTransportStateChanged(c transport.Change) {
	if f.Transport != nil {
		f.Transport(c)
	}
}
