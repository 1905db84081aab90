package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnsetTime marks a line that has no timecode yet. Any negative value means unset.
const UnsetTime int64 = -1

// LyricLine is one line of a song. Position is the playback order inside the song.
type LyricLine struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"` // assigned once, never reused
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	SongID   uint   `gorm:"index;not null" json:"song_id"`
	Position int    `gorm:"not null" json:"position"`
	Text     string `json:"text"`
	Type     string `gorm:"size:20" json:"type"` // vocal, chorus, bridge, instrumental, outro

	// No gorm default here: a default tag would turn a real 0ms timecode into the column default.
	TimeMs int64 `gorm:"not null" json:"time_ms"`
}

// NewLyricLine builds a line with a fresh identifier.
func NewLyricLine(text string, timeMs int64) LyricLine {
	return LyricLine{
		ID:     uuid.NewString(),
		Text:   text,
		Type:   "vocal",
		TimeMs: timeMs,
	}
}

// HasTime reports whether the line carries a timecode.
func (l LyricLine) HasTime() bool {
	return l.TimeMs >= 0
}

// BeforeCreate makes sure rows inserted without an ID still get one.
func (l *LyricLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Type == "" {
		l.Type = "vocal"
	}
	return nil
}
