package models

import (
	"time"

	"gorm.io/gorm"
)

// TimecodeCorrection records every automatic ordering repair applied to a line.
type TimecodeCorrection struct {
	gorm.Model
	SongID      uint      `gorm:"index" json:"song_id"`
	LineID      string    `gorm:"index;size:36" json:"line_id"`
	LineIndex   int       `json:"line_index"`
	OldMs       int64     `json:"old_ms"`
	NewMs       int64     `json:"new_ms"`
	Cause       string    `gorm:"size:20" json:"cause"` // edit, offset, bulk
	CorrectedAt time.Time `gorm:"index" json:"corrected_at"`
}
