package lyrics

import (
	"regexp"
	"strings"

	"lyrix/internal/models"
)

const (
	// DefaultSpacingMs is the interval used when timecodes are reset to an even grid.
	DefaultSpacingMs int64 = 2000
	// MissingStepMs is added to the previous timecode when a line is given one automatically.
	MissingStepMs int64 = 1000
	// customTolerance is how far a timecode may drift from the default grid and still count as default.
	customTolerance int64 = 100
)

var inlineMarker = regexp.MustCompile(`\[-?\d+(?:\.\d+)?s\]\s*`)

// ClearAll marks every line as unsynchronized.
func ClearAll(lines []models.LyricLine) {
	for i := range lines {
		lines[i].TimeMs = models.UnsetTime
	}
}

// ClearLine removes the timecode of one line. It reports false for an out-of-range index.
func ClearLine(lines []models.LyricLine, index int) bool {
	if index < 0 || index >= len(lines) {
		return false
	}
	lines[index].TimeMs = models.UnsetTime
	return true
}

// ResetToSpacing rewrites all timecodes on an even grid starting at zero.
func ResetToSpacing(lines []models.LyricLine, spacingMs int64) {
	if spacingMs <= 0 {
		spacingMs = DefaultSpacingMs
	}
	for i := range lines {
		lines[i].TimeMs = int64(i) * spacingMs
	}
}

// AssignMissing gives an untimed line the previous timed line's timecode + MissingStepMs and
// repairs ordering over the whole list. Nothing happens when the line already has a timecode
// or no earlier line is timed.
func AssignMissing(lines []models.LyricLine, index int) (bool, Corrections) {
	if index < 0 || index >= len(lines) || lines[index].HasTime() {
		return false, nil
	}

	previous := models.UnsetTime
	for i := index - 1; i >= 0; i-- {
		if lines[i].HasTime() {
			previous = lines[i].TimeMs
			break
		}
	}
	if previous < 0 {
		return false, nil
	}

	lines[index].TimeMs = previous + MissingStepMs
	return true, CorrectAll(lines)
}

// HasCustomTimecodes reports whether the timed lines differ from the default grid.
func HasCustomTimecodes(lines []models.LyricLine) bool {
	k := int64(0)
	for i := range lines {
		if !lines[i].HasTime() {
			continue
		}
		diff := lines[i].TimeMs - k*DefaultSpacingMs
		if diff < 0 {
			diff = -diff
		}
		if diff > customTolerance {
			return true
		}
		k++
	}
	return false
}

// StripInlineTimecodes removes "[1.5s]" style markers that older editors left inside line text.
func StripInlineTimecodes(text string) string {
	return strings.TrimSpace(inlineMarker.ReplaceAllString(text, ""))
}

// NextUntimed returns the first line without a timecode, or None.
func NextUntimed(lines []models.LyricLine) int {
	for i := range lines {
		if !lines[i].HasTime() {
			return i
		}
	}
	return None
}
