package bridge

import (
	"errors"
	"testing"
	"time"

	"lyrix/internal/arbiter"
	"lyrix/internal/models"
	"lyrix/internal/scheduler"
	"lyrix/internal/session"
	"lyrix/internal/transport"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
	}{
		{"Host Millis", `{"action":"hostTime","positionMs":1500.5}`, HostTime{PositionMs: 1500.5}},
		{"Host Seconds", `{"action":"hostTime","position":2.25}`, HostTime{PositionMs: 2250}},
		{"Scrub", `{"action":"scrub","positionMs":0}`, Scrub{PositionMs: 0}},
		{"Edit", `{"action":"editTimecode","line":2,"timeMs":4000}`, EditTimecode{Line: 2, TimeMs: 4000}},
		{"Deselect", `{"action":"setActiveLine","line":-1}`, SetActiveLine{Line: -1}},
		{"Navigate", `{"action":"navigate","direction":"up"}`, Navigate{Direction: "up"}},
		{"Long Press", `{"action":"transport","command":"longPress","holdMs":700}`, Transport{Command: "longPress", HoldMs: 700}},
		{"Offset Preview", `{"action":"offset","offsetMs":-250}`, Offset{OffsetMs: -250}},
		{"Offset Commit", `{"action":"offset","commit":true}`, Offset{Commit: true}},
		{"Correct All", `{"action":"correctAll"}`, CorrectAll{}},
		{"Reset", `{"action":"resetTimecodes","spacingMs":1500}`, ResetTimecodes{SpacingMs: 1500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecode_PointerPayloads(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"mode","edit":true,"embedded":false}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := msg.(Mode)
	if m.Edit == nil || !*m.Edit || m.Record != nil || m.Embedded == nil || *m.Embedded {
		t.Errorf("Mode = %+v", m)
	}

	msg, err = Decode([]byte(`{"action":"clearTimecodes"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.(ClearTimecodes).Line != nil {
		t.Error("clearTimecodes without line should clear all")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		unknown   bool
		wantField string
	}{
		{"Unknown Action", `{"action":"midiClock"}`, true, ""},
		{"Missing Action", `{"positionMs":10}`, true, ""},
		{"Host Without Position", `{"action":"hostTime"}`, false, "positionMs"},
		{"Local Rejects Seconds", `{"action":"localTime","position":3}`, false, "positionMs"},
		{"Negative Position", `{"action":"scrub","positionMs":-5}`, false, "positionMs"},
		{"Edit Without Time", `{"action":"editTimecode","line":1}`, false, "timeMs"},
		{"Edit Negative Line", `{"action":"editTimecode","line":-2,"timeMs":0}`, false, "line"},
		{"Bad Direction", `{"action":"navigate","direction":"left"}`, false, "direction"},
		{"Bad Command", `{"action":"transport","command":"stop"}`, false, "command"},
		{"Empty Offset", `{"action":"offset"}`, false, "offsetMs"},
		{"Empty Mode", `{"action":"mode"}`, false, "edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.unknown {
				if !errors.Is(err, ErrUnknownAction) {
					t.Errorf("err = %v, want ErrUnknownAction", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"action":`)); err == nil {
		t.Error("expected an error for truncated JSON")
	}
}

func newSession(times ...int64) (*session.Session, *scheduler.MockClock) {
	clock := scheduler.NewMockClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s := session.New(session.Options{Clock: clock, Player: &session.SimPlayer{}})
	song := &models.Song{Title: "Bridge"}
	for i, ms := range times {
		l := models.NewLyricLine("line", ms)
		l.Position = i
		song.Lines = append(song.Lines, l)
	}
	s.LoadSong(song)
	return s, clock
}

func dispatch(t *testing.T, s *session.Session, raw string) Result {
	t.Helper()
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode(%s): %v", raw, err)
	}
	res, err := Dispatch(s, msg)
	if err != nil {
		t.Fatalf("Dispatch(%s): %v", raw, err)
	}
	return res
}

func TestDispatch_SamplesAndEdits(t *testing.T) {
	s, clock := newSession(0, 1000, 2000, 3000)

	res := dispatch(t, s, `{"action":"localTime","positionMs":1200,"playing":true}`)
	if res.Decision == nil || !res.Decision.Accepted || res.ActiveIndex != 1 {
		t.Fatalf("localTime result = %+v", res)
	}

	clock.Advance(100 * time.Millisecond)
	res = dispatch(t, s, `{"action":"editTimecode","line":1,"timeMs":3500}`)
	if res.Corrections.Count() != 2 {
		t.Errorf("corrections = %d, want 2", res.Corrections.Count())
	}

	res = dispatch(t, s, `{"action":"correctAll"}`)
	if res.Corrections.Count() != 0 {
		t.Errorf("second pass corrected %d lines", res.Corrections.Count())
	}
}

func TestDispatch_LineOutOfRange(t *testing.T) {
	s, _ := newSession(0, 1000)

	msg, _ := Decode([]byte(`{"action":"editTimecode","line":5,"timeMs":10}`))
	_, err := Dispatch(s, msg)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "line" {
		t.Errorf("err = %v, want line validation error", err)
	}
}

func TestDispatch_Transport(t *testing.T) {
	s, clock := newSession(0, 1000)

	dispatch(t, s, `{"action":"mode","embedded":true}`)
	if res := dispatch(t, s, `{"action":"transport","command":"arm"}`); !res.Applied || res.Transport != transport.Armed {
		t.Fatalf("arm result = %+v", res)
	}

	clock.Advance(40 * time.Millisecond)
	dispatch(t, s, `{"action":"hostTime","position":0}`)
	clock.Advance(40 * time.Millisecond)
	res := dispatch(t, s, `{"action":"hostTime","position":0.05}`)
	if res.Transport != transport.PlayingHost {
		t.Errorf("transport = %s, want playingHost", res.Transport)
	}
	if res.Decision.Sample.Source != arbiter.SourceHost {
		t.Errorf("source = %s", res.Decision.Sample.Source)
	}

	if res := dispatch(t, s, `{"action":"transport","command":"tap"}`); res.Transport != transport.Idle {
		t.Errorf("tap while playing -> %s, want idle", res.Transport)
	}
}

func TestDispatch_OffsetFlow(t *testing.T) {
	s, _ := newSession(1000, 2000)

	dispatch(t, s, `{"action":"offset","offsetMs":500}`)
	if s.Lines()[0].TimeMs != 1500 {
		t.Fatalf("preview not applied: %d", s.Lines()[0].TimeMs)
	}
	if res := dispatch(t, s, `{"action":"offset","commit":true}`); !res.Applied {
		t.Fatal("commit not applied")
	}
	if s.Song().TimeOffsetMs != 500 {
		t.Errorf("song offset = %d, want 500", s.Song().TimeOffsetMs)
	}

	dispatch(t, s, `{"action":"offset","offsetMs":-300}`)
	dispatch(t, s, `{"action":"offset","cancel":true}`)
	if s.Lines()[0].TimeMs != 1500 {
		t.Errorf("cancel left %d, want 1500", s.Lines()[0].TimeMs)
	}
}

func TestDispatch_TimecodeTools(t *testing.T) {
	s, clock := newSession(0, -1, -1)

	if res := dispatch(t, s, `{"action":"assignMissing","line":1}`); !res.Applied || s.Lines()[1].TimeMs != 1000 {
		t.Fatalf("assignMissing = %+v, line 1 = %d", res, s.Lines()[1].TimeMs)
	}

	clock.Advance(time.Second)
	dispatch(t, s, `{"action":"scrub","positionMs":2500}`)
	if res := dispatch(t, s, `{"action":"recordTimecode"}`); !res.Applied || s.Lines()[2].TimeMs != 2500 {
		t.Fatalf("recordTimecode = %+v, line 2 = %d", res, s.Lines()[2].TimeMs)
	}

	dispatch(t, s, `{"action":"clearTimecodes","line":0}`)
	if s.Lines()[0].HasTime() {
		t.Error("line 0 still timed")
	}

	dispatch(t, s, `{"action":"resetTimecodes"}`)
	if s.Lines()[2].TimeMs != 4000 {
		t.Errorf("line 2 = %d after reset, want 4000", s.Lines()[2].TimeMs)
	}

	dispatch(t, s, `{"action":"clearTimecodes"}`)
	for i, l := range s.Lines() {
		if l.HasTime() {
			t.Errorf("line %d still timed after clearing all", i)
		}
	}
}
