// Package library persists songs, their lyric lines and the history of timecode corrections.
package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lyrix/internal/lyrics"
	"lyrix/internal/models"
)

var (
	ErrSongNotFound = errors.New("library: song not found")
	ErrInvalidSong  = errors.New("library: invalid song")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for callers that share the transaction scope.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// SongSummary is a song without its lines, for listings.
type SongSummary struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	AudioKey   string `json:"audio_key"`
	LineCount  int64  `json:"line_count"`
	TimedLines int64  `json:"timed_lines"`
}

// ListSongs returns every song with line counts, ordered by title.
func (r *Repository) ListSongs(ctx context.Context) ([]SongSummary, error) {
	var out []SongSummary
	err := r.db.WithContext(ctx).
		Model(&models.Song{}).
		Select(`songs.id, songs.title, songs.artist, songs.album, songs.audio_key,
			COUNT(lyric_lines.id) AS line_count,
			COALESCE(SUM(CASE WHEN lyric_lines.time_ms >= 0 THEN 1 ELSE 0 END), 0) AS timed_lines`).
		Joins("LEFT JOIN lyric_lines ON lyric_lines.song_id = songs.id").
		Group("songs.id, songs.title, songs.artist, songs.album, songs.audio_key").
		Order("songs.title").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return out, nil
}

// GetSong loads a song with its lines in playback order.
func (r *Repository) GetSong(ctx context.Context, id uint) (*models.Song, error) {
	var song models.Song
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&song, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get song %d: %w", id, err)
	}
	return &song, nil
}

// PrepareLines normalises imported lines: inline "[1.5s]" markers are stripped from the text,
// positions follow slice order and timecode ordering is repaired. It returns the repairs made.
func PrepareLines(lines []models.LyricLine) lyrics.Corrections {
	for i := range lines {
		lines[i].Text = lyrics.StripInlineTimecodes(lines[i].Text)
		lines[i].Position = i
		if lines[i].Type == "" {
			lines[i].Type = "vocal"
		}
		if lines[i].TimeMs < 0 {
			lines[i].TimeMs = models.UnsetTime
		}
	}
	return lyrics.CorrectAll(lines)
}

// CreateSong inserts a song and its lines.
func (r *Repository) CreateSong(ctx context.Context, song *models.Song) (lyrics.Corrections, error) {
	if song.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSong)
	}
	corr := PrepareLines(song.Lines)
	if err := r.db.WithContext(ctx).Create(song).Error; err != nil {
		return nil, fmt.Errorf("create song: %w", err)
	}
	return corr, nil
}

// DeleteSong removes a song and its lines.
func (r *Repository) DeleteSong(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Song{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete song %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSongNotFound
		}
		if err := tx.Where("song_id = ?", id).Delete(&models.LyricLine{}).Error; err != nil {
			return fmt.Errorf("delete lines of song %d: %w", id, err)
		}
		return tx.Where("song_id = ?", id).Delete(&models.TransportSnapshot{}).Error
	})
}

// AudioInfo describes an uploaded audio file.
type AudioInfo struct {
	Key        string
	Format     string
	DurationMs int64
	Title      string
	Artist     string
	Album      string
}

// AttachAudio links stored audio to a song. Tag values only fill empty song fields.
func (r *Repository) AttachAudio(ctx context.Context, id uint, info AudioInfo) (*models.Song, error) {
	song, err := r.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"audio_key":    info.Key,
		"audio_format": info.Format,
	}
	if info.DurationMs > 0 {
		updates["duration_ms"] = info.DurationMs
	}
	if song.Artist == "" && info.Artist != "" {
		updates["artist"] = info.Artist
	}
	if song.Album == "" && info.Album != "" {
		updates["album"] = info.Album
	}

	if err := r.db.WithContext(ctx).Model(song).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("attach audio to song %d: %w", id, err)
	}
	return r.GetSong(ctx, id)
}

// LineUpdate is a new timecode for one line.
type LineUpdate struct {
	LineID string
	TimeMs int64
}

// TimecodeChange is everything one session operation changed.
type TimecodeChange struct {
	SongID      uint
	Cause       string
	Lines       []LineUpdate
	Corrections lyrics.Corrections
	OffsetMs    *int64
	At          time.Time
}

// ApplyTimecodes writes line times, the correction history and optionally the song offset in
// one transaction.
func (r *Repository) ApplyTimecodes(ctx context.Context, ch TimecodeChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range ch.Lines {
			res := tx.Model(&models.LyricLine{}).
				Where("id = ? AND song_id = ?", l.LineID, ch.SongID).
				Update("time_ms", l.TimeMs)
			if res.Error != nil {
				return fmt.Errorf("update line %s: %w", l.LineID, res.Error)
			}
		}

		if len(ch.Corrections) > 0 {
			rows := make([]models.TimecodeCorrection, len(ch.Corrections))
			for i, c := range ch.Corrections {
				rows[i] = models.TimecodeCorrection{
					SongID:      ch.SongID,
					LineID:      c.LineID,
					LineIndex:   c.Index,
					OldMs:       c.OldMs,
					NewMs:       c.NewMs,
					Cause:       ch.Cause,
					CorrectedAt: ch.At,
				}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("record corrections: %w", err)
			}
		}

		if ch.OffsetMs != nil {
			err := tx.Model(&models.Song{}).Where("id = ?", ch.SongID).
				Update("time_offset_ms", *ch.OffsetMs).Error
			if err != nil {
				return fmt.Errorf("update song offset: %w", err)
			}
		}
		return nil
	})
}

// ListCorrections returns the latest corrections of a song, newest first.
func (r *Repository) ListCorrections(ctx context.Context, songID uint, limit int) ([]models.TimecodeCorrection, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.TimecodeCorrection
	err := r.db.WithContext(ctx).
		Where("song_id = ?", songID).
		Order("corrected_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return out, nil
}

// Stats are library-wide counters.
type Stats struct {
	Songs       int64 `json:"songs"`
	Lines       int64 `json:"lines"`
	TimedLines  int64 `json:"timed_lines"`
	Corrections int64 `json:"corrections"`
	WithAudio   int64 `json:"with_audio"`
}

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Song{}).Count(&s.Songs).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.Song{}).Where("audio_key <> ''").Count(&s.WithAudio).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.LyricLine{}).Count(&s.Lines).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.LyricLine{}).Where("time_ms >= 0").Count(&s.TimedLines).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.TimecodeCorrection{}).Count(&s.Corrections).Error; err != nil {
		return s, err
	}
	return s, nil
}
