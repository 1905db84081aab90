package metadata

import (
	"fmt"
	"io"
	"os"

	"github.com/dhowden/tag"
)

// Track is what an uploaded audio file tells us about itself.
type Track struct {
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Year     int    `json:"year"`
	Format   string `json:"format"`    // ID3v2.3, VORBIS, ...
	FileType string `json:"file_type"` // MP3, FLAC, ...
	Lyrics   string `json:"lyrics"`
}

// Read parses tags from r. The reader is rewound to the start afterwards so it can be uploaded.
func Read(r io.ReadSeeker) (Track, error) {
	m, err := tag.ReadFrom(r)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil && err == nil {
		err = seekErr
	}
	if err != nil {
		return Track{}, fmt.Errorf("read tags: %w", err)
	}

	return Track{
		Artist:   m.Artist(),
		Title:    m.Title(),
		Album:    m.Album(),
		Genre:    m.Genre(),
		Year:     m.Year(),
		Format:   string(m.Format()),
		FileType: string(m.FileType()),
		Lyrics:   m.Lyrics(),
	}, nil
}

// ReadFile parses tags from a file on disk.
func ReadFile(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, err
	}
	defer f.Close()
	return Read(f)
}
