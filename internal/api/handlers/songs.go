package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lyrix/internal/library"
	"lyrix/internal/metadata"
	"lyrix/internal/models"
	"lyrix/internal/session"
	"lyrix/internal/storage"
	"lyrix/internal/utils"
)

// SongHandler serves the lyrics library and its audio.
type SongHandler struct {
	repo     *library.Repository
	storage  *storage.Client
	registry *session.Registry
	tempDir  string
}

func NewSongHandler(repo *library.Repository, st *storage.Client, reg *session.Registry, tempDir string) *SongHandler {
	return &SongHandler{repo: repo, storage: st, registry: reg, tempDir: tempDir}
}

type lineInput struct {
	Text   string `json:"text"`
	Type   string `json:"type"`
	TimeMs *int64 `json:"time_ms"`
}

type createSongRequest struct {
	Title  string      `json:"title"`
	Artist string      `json:"artist"`
	Album  string      `json:"album"`
	Lines  []lineInput `json:"lines"`
	// Plain lyrics, one line per row. Used when Lines is empty.
	Text string `json:"text"`
}

func (r createSongRequest) toSong() *models.Song {
	song := &models.Song{Title: strings.TrimSpace(r.Title), Artist: r.Artist, Album: r.Album}
	if len(r.Lines) == 0 && r.Text != "" {
		for _, row := range strings.Split(r.Text, "\n") {
			if row = strings.TrimSpace(row); row != "" {
				r.Lines = append(r.Lines, lineInput{Text: row})
			}
		}
	}
	for _, in := range r.Lines {
		ms := models.UnsetTime
		if in.TimeMs != nil {
			ms = *in.TimeMs
		}
		l := models.NewLyricLine(in.Text, ms)
		if in.Type != "" {
			l.Type = in.Type
		}
		song.Lines = append(song.Lines, l)
	}
	return song
}

func (h *SongHandler) ListSongs(c *gin.Context) {
	songs, err := h.repo.ListSongs(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": songs, "meta": gin.H{"total": len(songs)}})
}

func (h *SongHandler) GetSong(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

// CreateSong stores a new song. Timecodes out of order are repaired on the way in and the
// repairs are returned.
func (h *SongHandler) CreateSong(c *gin.Context) {
	var req createSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid song payload"})
		return
	}
	song := req.toSong()
	corr, err := h.repo.CreateSong(c.Request.Context(), song)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"song": song, "corrections": corr})
}

func (h *SongHandler) DeleteSong(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.registry.Close(id)
	if err := h.repo.DeleteSong(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SongHandler) ListCorrections(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 500 // Hard cap to protect the server
	}
	rows, err := h.repo.ListCorrections(c.Request.Context(), id, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// UploadAudio stores an mp3/flac file for the song. Tags fill in missing artist/album.
func (h *SongHandler) UploadAudio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	ext := utils.AudioExt(fileHeader.Filename)
	if ext == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only mp3 and flac files are supported"})
		return
	}

	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to open file"})
		return
	}
	defer file.Close()

	// We try to parse tags. If it fails, we fall back to the filename.
	track, err := metadata.Read(file)
	if err != nil {
		slog.Debug("no readable tags", "file", fileHeader.Filename, "error", err)
		track = metadata.Track{Title: utils.CleanFilename(fileHeader.Filename)}
	}

	key := utils.AudioKey(song.ID, song.Artist, song.Title, ext)
	if err := h.storage.UploadAudio(key, file, fileHeader.Header.Get("Content-Type")); err != nil {
		slog.Error("audio upload failed", "song", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage upload failed"})
		return
	}

	updated, err := h.repo.AttachAudio(c.Request.Context(), id, library.AudioInfo{
		Key:    key,
		Format: ext,
		Title:  track.Title,
		Artist: track.Artist,
		Album:  track.Album,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"song": updated, "tags": track})
}

// StreamAudio proxies the stored audio to the client.
func (h *SongHandler) StreamAudio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if song.AudioKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Song has no audio"})
		return
	}
	obj, err := h.storage.DownloadAudio(song.AudioKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio not found in storage"})
		return
	}
	defer obj.Body.Close()
	c.DataFromReader(http.StatusOK, obj.ContentLength, obj.ContentType, obj.Body, nil)
}

// Export stamps the current lyrics and timecodes into a copy of the audio and stores it in
// the export bucket.
func (h *SongHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if song.AudioKey == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Upload audio before exporting"})
		return
	}

	obj, err := h.storage.DownloadAudio(song.AudioKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio not found in storage"})
		return
	}
	defer obj.Body.Close()

	tempFile, err := os.CreateTemp(h.tempDir, "lyrix-export-*."+song.AudioFormat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server storage error"})
		return
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, obj.Body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to copy audio"})
		return
	}
	tempFile.Close() // Close to allow tagging

	if err := metadata.Stamp(tempFile.Name(), song.AudioFormat, song); err != nil {
		slog.Error("failed to stamp lyrics", "song", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to tag %s", song.AudioFormat)})
		return
	}

	finalFile, err := os.Open(tempFile.Name())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read processed file"})
		return
	}
	defer finalFile.Close()

	key := utils.ExportKey(song.ID, song.Artist, song.Title, song.AudioFormat)
	if err := h.storage.UploadExport(key, finalFile, obj.ContentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// DownloadExport returns the last export of the song.
func (h *SongHandler) DownloadExport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	key := utils.ExportKey(song.ID, song.Artist, song.Title, song.AudioFormat)
	obj, err := h.storage.DownloadExport(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No export yet"})
		return
	}
	defer obj.Body.Close()
	c.DataFromReader(http.StatusOK, obj.ContentLength, obj.ContentType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	})
}
