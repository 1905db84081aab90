package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-\s]+`)

// CleanFilename turns "my_song-title.mp3" into "my song title".
func CleanFilename(filename string) string {
	ext := filepath.Ext(filename)
	clean := strings.TrimSuffix(filepath.Base(filename), ext)
	clean = strings.ReplaceAll(clean, "_", " ")
	clean = strings.ReplaceAll(clean, "-", " ")
	return strings.TrimSpace(clean)
}

func Sanitize(text, def string) string {
	if text == "" {
		return def
	}
	clean := strings.TrimSpace(unsafeChars.ReplaceAllString(text, ""))
	if clean == "" {
		return def
	}
	return strings.ReplaceAll(clean, " ", "_")
}

// AudioExt returns the lower-case extension without the dot, or "" when unsupported.
func AudioExt(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "mp3", "flac":
		return ext
	}
	return ""
}

// AudioKey builds the storage key for a song's uploaded audio.
// Example: AudioKey(4, "Synthwave Collective", "Digital Dreams", "mp3") -> "audio/4/Synthwave_Collective-Digital_Dreams.mp3"
func AudioKey(songID uint, artist, title, ext string) string {
	return fmt.Sprintf("audio/%d/%s-%s.%s", songID, Sanitize(artist, "Unknown_Artist"), Sanitize(title, "Untitled"), ext)
}

// ExportKey builds the storage key for an export of a song's audio.
func ExportKey(songID uint, artist, title, ext string) string {
	return fmt.Sprintf("export/%d/%s-%s.lyrix.%s", songID, Sanitize(artist, "Unknown_Artist"), Sanitize(title, "Untitled"), ext)
}
