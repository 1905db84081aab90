package models

import (
	"sort"

	"gorm.io/gorm"
)

// Song is a lyrics document bound to an optional audio file in storage.
type Song struct {
	gorm.Model

	Title  string `gorm:"index" json:"title"`
	Artist string `gorm:"index" json:"artist"`
	Album  string `json:"album"`

	// Tech Details
	DurationMs  int64  `json:"duration_ms"`
	AudioKey    string `gorm:"index" json:"audio_key"` // storage key (audio/...)
	AudioFormat string `gorm:"size:10" json:"audio_format"`

	// Last committed global shift, kept so the editor can show it again.
	TimeOffsetMs int64 `json:"time_offset_ms"`

	Lines []LyricLine `gorm:"foreignKey:SongID;constraint:OnDelete:CASCADE" json:"lines"`
}

// SortedLines returns the lines in playback order.
func (s *Song) SortedLines() []LyricLine {
	out := make([]LyricLine, len(s.Lines))
	copy(out, s.Lines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}
