package lyrics

import "lyrix/internal/models"

// None is returned when no line is active: playback sits before the first timecode,
// or the song has no timecodes at all.
const None = -1

// Resolve returns the index of the line that is current at timeMs: the set line with the
// greatest timecode not after timeMs. Equal timecodes resolve to the earliest line.
func Resolve(timeMs int64, lines []models.LyricLine) int {
	best := None
	for i := range lines {
		t := lines[i].TimeMs
		if t < 0 || t > timeMs {
			continue
		}
		if best == None || t > lines[best].TimeMs {
			best = i
		}
	}
	return best
}

// NextLineAfter returns the first timed line starting strictly after timeMs, or None.
func NextLineAfter(timeMs int64, lines []models.LyricLine) int {
	for i := range lines {
		if lines[i].HasTime() && lines[i].TimeMs > timeMs {
			return i
		}
	}
	return None
}
