package storage

import (
	"io"
	"strings"
	"testing"
)

func TestClient_LocalRoundTrip(t *testing.T) {
	c := NewWithProvider(NewLocalProvider(t.TempDir()), "audio", "export")

	if err := c.UploadAudio("audio/1_song.mp3", strings.NewReader("ID3data"), "audio/mpeg"); err != nil {
		t.Fatalf("UploadAudio: %v", err)
	}

	ok, err := c.AudioExists("audio/1_song.mp3")
	if err != nil || !ok {
		t.Fatalf("AudioExists = %v, %v", ok, err)
	}
	if ok, _ := c.AudioExists("audio/missing.mp3"); ok {
		t.Error("missing file reported as existing")
	}

	obj, err := c.DownloadAudio("audio/1_song.mp3")
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	if string(body) != "ID3data" || obj.ContentType != "audio/mpeg" {
		t.Errorf("got %q (%s)", body, obj.ContentType)
	}
}

func TestClient_ListCacheInvalidatedByUpload(t *testing.T) {
	c := NewWithProvider(NewLocalProvider(t.TempDir()), "audio", "export")

	keys, err := c.ListAudioFiles("audio/")
	if err != nil {
		t.Fatalf("ListAudioFiles on empty bucket: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("keys = %v, want none", keys)
	}

	c.UploadAudio("audio/b.flac", strings.NewReader("fLaC"), "audio/flac")
	c.UploadAudio("audio/a.mp3", strings.NewReader("ID3"), "audio/mpeg")

	keys, _ = c.ListAudioFiles("audio/")
	if len(keys) != 2 || keys[0] != "audio/a.mp3" {
		t.Errorf("keys = %v", keys)
	}
}

func TestClient_ExportsAreSeparate(t *testing.T) {
	c := NewWithProvider(NewLocalProvider(t.TempDir()), "audio", "export")

	c.UploadExport("export/1.mp3", strings.NewReader("x"), "audio/mpeg")

	if ok, _ := c.AudioExists("export/1.mp3"); ok {
		t.Error("export landed in the audio bucket")
	}
	if _, err := c.DownloadExport("export/1.mp3"); err != nil {
		t.Errorf("DownloadExport: %v", err)
	}
}
