// Package bridge decodes host and UI messages into typed commands and applies them to a session.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownAction is returned for a message whose action is missing or not recognised.
var ErrUnknownAction = errors.New("bridge: unknown action")

// ValidationError reports a malformed payload.
type ValidationError struct {
	Action Action
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bridge: %s.%s: %s", e.Action, e.Field, e.Reason)
}

func invalid(a Action, field, reason string) error {
	return &ValidationError{Action: a, Field: field, Reason: reason}
}

type Action string

const (
	ActionHostTime       Action = "hostTime"
	ActionLocalTime      Action = "localTime"
	ActionScrub          Action = "scrub"
	ActionEditTimecode   Action = "editTimecode"
	ActionSetActiveLine  Action = "setActiveLine"
	ActionNavigate       Action = "navigate"
	ActionTransport      Action = "transport"
	ActionOffset         Action = "offset"
	ActionMode           Action = "mode"
	ActionCorrectAll     Action = "correctAll"
	ActionClearTimecodes Action = "clearTimecodes"
	ActionResetTimecodes Action = "resetTimecodes"
	ActionAssignMissing  Action = "assignMissing"
	ActionRecordTimecode Action = "recordTimecode"
)

// Message is one decoded command.
type Message interface {
	Action() Action
}

// HostTime is a position report from the host transport.
type HostTime struct{ PositionMs float64 }

// LocalTime is a position report from the local media element.
type LocalTime struct {
	PositionMs float64
	Playing    *bool
}

// Scrub is a user-initiated seek.
type Scrub struct{ PositionMs float64 }

type EditTimecode struct {
	Line   int
	TimeMs int64
}

type SetActiveLine struct{ Line int }

type Navigate struct{ Direction string }

// Transport carries a play-button gesture: arm, disarm, tap or longPress.
type Transport struct {
	Command string
	HoldMs  int64
}

// Offset previews a global offset, or commits/cancels the preview in progress.
type Offset struct {
	OffsetMs int64
	Commit   bool
	Cancel   bool
}

type Mode struct {
	Edit     *bool
	Record   *bool
	Embedded *bool
}

type CorrectAll struct{}

// ClearTimecodes clears one line, or every line when Line is nil.
type ClearTimecodes struct{ Line *int }

type ResetTimecodes struct{ SpacingMs int64 }

type AssignMissing struct{ Line int }

type RecordTimecode struct{}

func (HostTime) Action() Action       { return ActionHostTime }
func (LocalTime) Action() Action      { return ActionLocalTime }
func (Scrub) Action() Action          { return ActionScrub }
func (EditTimecode) Action() Action   { return ActionEditTimecode }
func (SetActiveLine) Action() Action  { return ActionSetActiveLine }
func (Navigate) Action() Action       { return ActionNavigate }
func (Transport) Action() Action      { return ActionTransport }
func (Offset) Action() Action         { return ActionOffset }
func (Mode) Action() Action           { return ActionMode }
func (CorrectAll) Action() Action     { return ActionCorrectAll }
func (ClearTimecodes) Action() Action { return ActionClearTimecodes }
func (ResetTimecodes) Action() Action { return ActionResetTimecodes }
func (AssignMissing) Action() Action  { return ActionAssignMissing }
func (RecordTimecode) Action() Action { return ActionRecordTimecode }

// envelope holds every field any action uses. Pointers distinguish missing from zero.
type envelope struct {
	Action     Action   `json:"action"`
	PositionMs *float64 `json:"positionMs"`
	Position   *float64 `json:"position"`
	Playing    *bool    `json:"playing"`
	Line       *int     `json:"line"`
	TimeMs     *int64   `json:"timeMs"`
	Direction  string   `json:"direction"`
	Command    string   `json:"command"`
	HoldMs     int64    `json:"holdMs"`
	OffsetMs   *int64   `json:"offsetMs"`
	Commit     bool     `json:"commit"`
	Cancel     bool     `json:"cancel"`
	Edit       *bool    `json:"edit"`
	Record     *bool    `json:"record"`
	Embedded   *bool    `json:"embedded"`
	SpacingMs  int64    `json:"spacingMs"`
}

// Decode parses and validates one JSON message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bridge: decode: %w", err)
	}

	a := env.Action
	switch a {
	case ActionHostTime:
		ms, err := position(a, env, true)
		if err != nil {
			return nil, err
		}
		return HostTime{PositionMs: ms}, nil
	case ActionLocalTime:
		ms, err := position(a, env, false)
		if err != nil {
			return nil, err
		}
		return LocalTime{PositionMs: ms, Playing: env.Playing}, nil
	case ActionScrub:
		ms, err := position(a, env, false)
		if err != nil {
			return nil, err
		}
		return Scrub{PositionMs: ms}, nil
	case ActionEditTimecode:
		line, err := requireLine(a, env)
		if err != nil {
			return nil, err
		}
		if env.TimeMs == nil {
			return nil, invalid(a, "timeMs", "required")
		}
		return EditTimecode{Line: line, TimeMs: *env.TimeMs}, nil
	case ActionSetActiveLine:
		if env.Line == nil {
			return nil, invalid(a, "line", "required")
		}
		if *env.Line < -1 {
			return nil, invalid(a, "line", "must be -1 or a line index")
		}
		return SetActiveLine{Line: *env.Line}, nil
	case ActionNavigate:
		if env.Direction != "up" && env.Direction != "down" {
			return nil, invalid(a, "direction", "must be up or down")
		}
		return Navigate{Direction: env.Direction}, nil
	case ActionTransport:
		switch env.Command {
		case "arm", "disarm", "tap", "longPress":
		default:
			return nil, invalid(a, "command", "must be arm, disarm, tap or longPress")
		}
		if env.HoldMs < 0 {
			return nil, invalid(a, "holdMs", "must not be negative")
		}
		return Transport{Command: env.Command, HoldMs: env.HoldMs}, nil
	case ActionOffset:
		if env.Commit && env.Cancel {
			return nil, invalid(a, "commit", "cannot commit and cancel together")
		}
		if env.OffsetMs == nil && !env.Commit && !env.Cancel {
			return nil, invalid(a, "offsetMs", "required for a preview")
		}
		msg := Offset{Commit: env.Commit, Cancel: env.Cancel}
		if env.OffsetMs != nil {
			msg.OffsetMs = *env.OffsetMs
		}
		return msg, nil
	case ActionMode:
		if env.Edit == nil && env.Record == nil && env.Embedded == nil {
			return nil, invalid(a, "edit", "at least one of edit, record, embedded is required")
		}
		return Mode{Edit: env.Edit, Record: env.Record, Embedded: env.Embedded}, nil
	case ActionCorrectAll:
		return CorrectAll{}, nil
	case ActionClearTimecodes:
		if env.Line != nil && *env.Line < 0 {
			return nil, invalid(a, "line", "must not be negative")
		}
		return ClearTimecodes{Line: env.Line}, nil
	case ActionResetTimecodes:
		if env.SpacingMs < 0 {
			return nil, invalid(a, "spacingMs", "must not be negative")
		}
		return ResetTimecodes{SpacingMs: env.SpacingMs}, nil
	case ActionAssignMissing:
		line, err := requireLine(a, env)
		if err != nil {
			return nil, err
		}
		return AssignMissing{Line: line}, nil
	case ActionRecordTimecode:
		return RecordTimecode{}, nil
	}

	if a == "" {
		return nil, fmt.Errorf("%w: missing action", ErrUnknownAction)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a)
}

// position reads positionMs, or position in seconds when allowSeconds is set. Hosts report
// seconds; the UI reports milliseconds.
func position(a Action, env envelope, allowSeconds bool) (float64, error) {
	var ms float64
	switch {
	case env.PositionMs != nil:
		ms = *env.PositionMs
	case allowSeconds && env.Position != nil:
		ms = *env.Position * 1000
	default:
		return 0, invalid(a, "positionMs", "required")
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return 0, invalid(a, "positionMs", "must be a finite, non-negative number")
	}
	return ms, nil
}

func requireLine(a Action, env envelope) (int, error) {
	if env.Line == nil {
		return 0, invalid(a, "line", "required")
	}
	if *env.Line < 0 {
		return 0, invalid(a, "line", "must not be negative")
	}
	return *env.Line, nil
}
