package lyrics

import "fmt"

// FormatDisplay renders the numeric readout, e.g. "12.345s".
func FormatDisplay(ms int64) string {
	return fmt.Sprintf("%.3fs", float64(ms)/1000)
}

// FormatClock renders mm:ss.mmm, or "--:--.---" for an unset timecode.
func FormatClock(ms int64) string {
	if ms < 0 {
		return "--:--.---"
	}
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms%60000)/1000, ms%1000)
}
