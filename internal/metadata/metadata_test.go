package metadata

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/bogem/id3v2"

	"lyrix/internal/models"
)

func testSong() *models.Song {
	return &models.Song{
		Title:  "The Darkbox",
		Artist: "Synthwave Collective",
		Lines: []models.LyricLine{
			{Position: 1, Text: "second", TimeMs: 2500},
			{Position: 0, Text: "first", TimeMs: 0},
			{Position: 2, Text: "third", TimeMs: models.UnsetTime},
		},
	}
}

func TestEncodeTimecodes(t *testing.T) {
	song := testSong()
	enc := EncodeTimecodes(song.SortedLines())
	if enc != "[0,2500,-1]" {
		t.Fatalf("EncodeTimecodes = %s", enc)
	}
	got, err := DecodeTimecodes(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int64{0, 2500, -1}) {
		t.Errorf("DecodeTimecodes = %v", got)
	}
	if _, err := DecodeTimecodes("nope"); err == nil {
		t.Error("expected error for malformed value")
	}
	if txt := LyricsText(song.SortedLines()); txt != "first\nsecond\nthird" {
		t.Errorf("LyricsText = %q", txt)
	}
}

func TestStampMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte{0xFF, 0xFB, 0x90, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Stamp(path, "MP3", testSong()); err != nil {
		t.Fatalf("Stamp: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()

	if tag.Title() != "The Darkbox" {
		t.Errorf("title = %q", tag.Title())
	}
	frames := tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	if len(frames) != 1 {
		t.Fatalf("USLT frames = %d, want 1", len(frames))
	}
	uslt, ok := frames[0].(id3v2.UnsynchronisedLyricsFrame)
	if !ok || uslt.Lyrics != "first\nsecond\nthird" {
		t.Errorf("lyrics frame = %+v", frames[0])
	}
	comments := tag.GetFrames(tag.CommonID("Comments"))
	if len(comments) != 1 {
		t.Fatalf("COMM frames = %d, want 1", len(comments))
	}
	cf := comments[0].(id3v2.CommentFrame)
	if cf.Description != TimecodesKey || cf.Text != "[0,2500,-1]" {
		t.Errorf("timecodes frame = %+v", cf)
	}

	track, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if track.Title != "The Darkbox" || track.Artist != "Synthwave Collective" {
		t.Errorf("track = %+v", track)
	}
}

// minimalFLAC is a stream marker plus one empty STREAMINFO block flagged as last.
func minimalFLAC() []byte {
	var b bytes.Buffer
	b.WriteString("fLaC")
	b.Write([]byte{0x80, 0x00, 0x00, 34})
	b.Write(make([]byte, 34))
	return b.Bytes()
}

func TestStampFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.flac")
	if err := os.WriteFile(path, minimalFLAC(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := StampFLAC(path, testSong()); err != nil {
		t.Fatalf("StampFLAC: %v", err)
	}
	// A second stamp must replace, not duplicate.
	song := testSong()
	song.Lines[0].TimeMs = 3000
	if err := StampFLAC(path, song); err != nil {
		t.Fatalf("StampFLAC again: %v", err)
	}

	comments, err := ReadFLACComments(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"TITLE=The Darkbox",
		"ARTIST=Synthwave Collective",
		"LYRICS=first\nsecond\nthird",
		"LYRIX_TIMECODES=[0,3000,-1]",
	}
	if !slices.Equal(comments, want) {
		t.Errorf("comments = %q, want %q", comments, want)
	}
}

func TestVorbisRoundTrip(t *testing.T) {
	data := encodeVorbisComments("v", []string{"A=1", "B="})
	got, err := parseVorbisComments(data)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"A=1", "B="}) {
		t.Errorf("got %q", got)
	}
	if _, err := parseVorbisComments(data[:6]); err == nil {
		t.Error("expected error for truncated block")
	}
}

func TestStampUnsupported(t *testing.T) {
	if err := Stamp("x.ogg", "ogg", testSong()); err == nil {
		t.Fatal("expected error")
	}
}
