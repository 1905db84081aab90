package lyrics

import "lyrix/internal/models"

// MinIncrementMs is the gap forced between a line and a successor that did not start after it.
const MinIncrementMs int64 = 100

// Correction describes one line moved forward to restore ordering.
type Correction struct {
	Index  int    `json:"index"`
	LineID string `json:"line_id"`
	OldMs  int64  `json:"old_ms"`
	NewMs  int64  `json:"new_ms"`
	Pass   int    `json:"pass"`
}

// Corrections is the log of one enforcement run, in the order the fixes were applied.
type Corrections []Correction

// Count returns how many corrections were made.
func (c Corrections) Count() int {
	return len(c)
}

// Indexes returns the distinct corrected line indexes in first-seen order.
func (c Corrections) Indexes() []int {
	seen := make(map[int]bool, len(c))
	var out []int
	for _, corr := range c {
		if !seen[corr.Index] {
			seen[corr.Index] = true
			out = append(out, corr.Index)
		}
	}
	return out
}

// CorrectFrom repairs ordering after a single edit at editedIndex. It scans forward from the
// edited line and moves every offending successor to its predecessor + MinIncrementMs, repeating
// full passes until one makes no change. Passes are bounded by the number of lines.
// Lines without a timecode are skipped. An out-of-range index is a no-op.
func CorrectFrom(lines []models.LyricLine, editedIndex int) Corrections {
	if editedIndex < 0 || editedIndex >= len(lines) {
		return nil
	}
	return enforce(lines, editedIndex)
}

// CorrectAll runs the same repair over the whole list, for imports and bulk edits.
func CorrectAll(lines []models.LyricLine) Corrections {
	if len(lines) == 0 {
		return nil
	}
	return enforce(lines, 0)
}

func enforce(lines []models.LyricLine, start int) Corrections {
	var log Corrections

	for pass := 1; pass <= len(lines); pass++ {
		changed := false
		for i := start; i < len(lines)-1; i++ {
			cur, next := &lines[i], &lines[i+1]
			if !cur.HasTime() || !next.HasTime() {
				continue
			}
			if next.TimeMs > cur.TimeMs {
				continue
			}

			newMs := cur.TimeMs + MinIncrementMs
			log = append(log, Correction{
				Index:  i + 1,
				LineID: next.ID,
				OldMs:  next.TimeMs,
				NewMs:  newMs,
				Pass:   pass,
			})
			next.TimeMs = newMs
			changed = true
		}
		if !changed {
			break
		}
	}

	return log
}

// Baseline snapshots the current timecodes so offset previews can be recomputed from the
// original values instead of accumulating.
func Baseline(lines []models.LyricLine) []int64 {
	out := make([]int64, len(lines))
	for i := range lines {
		out[i] = lines[i].TimeMs
	}
	return out
}

// ApplyGlobalOffset shifts every timed line to max(0, baseline + offsetMs) and then repairs
// any ordering the clamp collapsed. Lines whose baseline is unset stay unset.
func ApplyGlobalOffset(lines []models.LyricLine, baseline []int64, offsetMs int64) Corrections {
	n := len(lines)
	if len(baseline) < n {
		n = len(baseline)
	}
	for i := 0; i < n; i++ {
		if baseline[i] < 0 {
			lines[i].TimeMs = models.UnsetTime
			continue
		}
		shifted := baseline[i] + offsetMs
		if shifted < 0 {
			shifted = 0
		}
		lines[i].TimeMs = shifted
	}
	return CorrectAll(lines)
}
