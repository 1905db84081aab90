package metadata

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/go-flac"

	"lyrix/internal/models"
)

const (
	// TimecodesKey names the tag holding the per-line timecodes next to the plain lyrics.
	TimecodesKey = "LYRIX_TIMECODES"
	lyricsKey    = "LYRICS"
	vendor       = "Lyrix"
)

var ErrUnsupportedFormat = errors.New("metadata: unsupported audio format")

// LyricsText joins line texts the way they are shown, one per line.
func LyricsText(lines []models.LyricLine) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// EncodeTimecodes serialises line times as a JSON array; -1 marks an untimed line.
func EncodeTimecodes(lines []models.LyricLine) string {
	times := make([]int64, len(lines))
	for i, l := range lines {
		times[i] = l.TimeMs
		if times[i] < 0 {
			times[i] = models.UnsetTime
		}
	}
	b, _ := json.Marshal(times)
	return string(b)
}

// DecodeTimecodes parses the value written by EncodeTimecodes.
func DecodeTimecodes(s string) ([]int64, error) {
	var times []int64
	if err := json.Unmarshal([]byte(s), &times); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TimecodesKey, err)
	}
	return times, nil
}

// Stamp writes the song's lyrics and timecodes into the audio file at path.
func Stamp(path, format string, song *models.Song) error {
	switch strings.ToLower(format) {
	case "mp3":
		return StampMP3(path, song)
	case "flac":
		return StampFLAC(path, song)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// StampMP3 adds an unsynchronised lyrics frame and a comment frame with the timecodes.
func StampMP3(path string, song *models.Song) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	if song.Title != "" {
		tag.SetTitle(song.Title)
	}
	if song.Artist != "" {
		tag.SetArtist(song.Artist)
	}
	if song.Album != "" {
		tag.SetAlbum(song.Album)
	}

	lines := song.SortedLines()
	tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	tag.DeleteFrames(tag.CommonID("Comments"))
	tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
		Encoding:          id3v2.EncodingUTF8,
		Language:          "eng",
		ContentDescriptor: song.Title,
		Lyrics:            LyricsText(lines),
	})
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: TimecodesKey,
		Text:        EncodeTimecodes(lines),
	})

	return tag.Save()
}

// StampFLAC rewrites the Vorbis comment block, keeping unrelated comments.
func StampFLAC(path string, song *models.Song) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	// 1. Collect existing comments and drop every VorbisComment block
	var comments []string
	var newMeta []*flac.MetaDataBlock
	for _, m := range f.Meta {
		if m.Type != flac.VorbisComment {
			newMeta = append(newMeta, m)
			continue
		}
		existing, err := parseVorbisComments(m.Data)
		if err != nil {
			return err
		}
		comments = append(comments, existing...)
	}

	// 2. Replace the fields we own
	lines := song.SortedLines()
	set := map[string]string{
		"TITLE":      song.Title,
		"ARTIST":     song.Artist,
		"ALBUM":      song.Album,
		lyricsKey:    LyricsText(lines),
		TimecodesKey: EncodeTimecodes(lines),
	}
	var kept []string
	for _, c := range comments {
		key, _, _ := strings.Cut(c, "=")
		if v, owned := set[strings.ToUpper(key)]; owned && v != "" {
			continue
		}
		kept = append(kept, c)
	}
	for _, k := range []string{"TITLE", "ARTIST", "ALBUM", lyricsKey, TimecodesKey} {
		if v := set[k]; v != "" {
			kept = append(kept, k+"="+v)
		}
	}

	// 3. Append after StreamInfo and any other blocks
	newMeta = append(newMeta, &flac.MetaDataBlock{
		Type: flac.VorbisComment,
		Data: encodeVorbisComments(vendor, kept),
	})
	f.Meta = newMeta

	return f.Save(path)
}

// ReadFLACComments returns the Vorbis comments of a FLAC file as KEY=VALUE strings.
func ReadFLACComments(path string) ([]string, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range f.Meta {
		if m.Type == flac.VorbisComment {
			c, err := parseVorbisComments(m.Data)
			if err != nil {
				return nil, err
			}
			out = append(out, c...)
		}
	}
	return out, nil
}

// Format: [Vendor Len][Vendor String][Comment List Len][Comment 0 Len][Comment 0 String]...
// All lengths are little endian uint32.
func encodeVorbisComments(vendor string, comments []string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)
	binary.Write(&buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(&buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}
	return buf.Bytes()
}

func parseVorbisComments(data []byte) ([]string, error) {
	r := bytes.NewReader(data)
	readString := func() (string, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		if int64(n) > int64(r.Len()) {
			return "", errors.New("metadata: vorbis comment length out of range")
		}
		b := make([]byte, n)
		if _, err := r.Read(b); err != nil && n > 0 {
			return "", err
		}
		return string(b), nil
	}

	if _, err := readString(); err != nil {
		return nil, fmt.Errorf("vorbis vendor: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("vorbis comment count: %w", err)
	}
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		c, err := readString()
		if err != nil {
			return nil, fmt.Errorf("vorbis comment %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
