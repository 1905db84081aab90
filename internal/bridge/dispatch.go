package bridge

import (
	"fmt"

	"lyrix/internal/arbiter"
	"lyrix/internal/lyrics"
	"lyrix/internal/session"
	"lyrix/internal/transport"
)

// Result summarises what a message did to the session.
type Result struct {
	Action      Action             `json:"action"`
	Applied     bool               `json:"applied"`
	Decision    *arbiter.Decision  `json:"decision,omitempty"`
	Corrections lyrics.Corrections `json:"corrections,omitempty"`
	ActiveIndex int                `json:"active_index"`
	Transport   transport.State    `json:"transport"`
}

// Dispatch applies msg to s. It must run on the session goroutine.
func Dispatch(s *session.Session, msg Message) (Result, error) {
	res := Result{Action: msg.Action(), Applied: true}

	switch m := msg.(type) {
	case HostTime:
		res.Decision = submit(s, m.PositionMs, arbiter.SourceHost)
	case LocalTime:
		if m.Playing != nil {
			s.SetLocalPlaying(*m.Playing)
		}
		res.Decision = submit(s, m.PositionMs, arbiter.SourceLocal)
	case Scrub:
		res.Decision = submit(s, m.PositionMs, arbiter.SourceScrub)
	case EditTimecode:
		if err := checkLine(s, m.Action(), m.Line); err != nil {
			return res, err
		}
		res.Corrections = s.EditLineTimecode(m.Line, m.TimeMs)
	case SetActiveLine:
		if m.Line != lyrics.None {
			if err := checkLine(s, m.Action(), m.Line); err != nil {
				return res, err
			}
		}
		res.Applied = s.SetActiveLine(m.Line, true)
	case Navigate:
		res.Applied = s.Navigate(session.Direction(m.Direction)) != lyrics.None
	case Transport:
		res.Applied = applyTransport(s, m)
	case Offset:
		switch {
		case m.Cancel:
			res.Applied = s.OffsetActive()
			s.CancelOffset()
		case m.Commit:
			if !s.OffsetActive() {
				s.PreviewOffset(m.OffsetMs)
			}
			_, res.Applied = s.CommitOffset()
		default:
			res.Corrections = s.PreviewOffset(m.OffsetMs)
		}
	case Mode:
		if m.Edit != nil {
			s.SetEditMode(*m.Edit)
		}
		if m.Record != nil {
			s.SetRecordMode(*m.Record)
		}
		if m.Embedded != nil {
			s.SetEmbedded(*m.Embedded)
		}
	case CorrectAll:
		res.Corrections = s.CorrectAll()
	case ClearTimecodes:
		if m.Line == nil {
			s.ClearAll()
		} else {
			res.Applied = s.ClearLine(*m.Line)
		}
	case ResetTimecodes:
		s.ResetSpacing(m.SpacingMs)
	case AssignMissing:
		res.Applied, res.Corrections = s.AssignMissing(m.Line)
	case RecordTimecode:
		var idx int
		idx, res.Corrections = s.RecordTimecode()
		res.Applied = idx != lyrics.None
	default:
		return res, fmt.Errorf("%w: %T", ErrUnknownAction, msg)
	}

	res.ActiveIndex = s.ActiveLine().CurrentIndex
	res.Transport = s.TransportState()
	return res, nil
}

func submit(s *session.Session, ms float64, src arbiter.Source) *arbiter.Decision {
	d := s.SubmitTimeSample(ms, src)
	return &d
}

func checkLine(s *session.Session, a Action, line int) error {
	if n := len(s.Lines()); line < 0 || line >= n {
		return invalid(a, "line", fmt.Sprintf("out of range [0,%d)", n))
	}
	return nil
}

func applyTransport(s *session.Session, m Transport) bool {
	switch m.Command {
	case "arm":
		return s.Arm()
	case "disarm":
		return s.Disarm()
	case "tap":
		s.Tap()
		return true
	case "longPress":
		return s.LongPress(m.HoldMs)
	}
	return false
}
