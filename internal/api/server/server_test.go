package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lyrix/internal/api/middleware"
	"lyrix/internal/config"
	database "lyrix/internal/db"
	"lyrix/internal/library"
	"lyrix/internal/session"
	"lyrix/internal/storage"
)

const testSecret = "test-secret"

type testEnv struct {
	t        *testing.T
	handler  http.Handler
	registry *session.Registry
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.JWTSecret = testSecret
	cfg.Server.SamplesPerSecond = 1000
	cfg.Server.TempDir = t.TempDir()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewInMemory(name)
	if err != nil {
		t.Fatalf("in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := database.SeedAdmin(db.DB, "admin", "hunter2"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	st := storage.NewWithProvider(storage.NewLocalProvider(t.TempDir()), "audio", "export")

	repo := library.NewRepository(db.DB)
	state := library.NewStateManager(db.DB)
	reg := session.NewRegistry(session.Options{}, 20*time.Millisecond)
	reg.OnOpen(func(s *session.Session) {
		library.NewPersister(repo, state, nil).Attach(s)
	})
	t.Cleanup(reg.CloseAll)

	env := &testEnv{t: t, handler: New(cfg, db, st, reg).Handler(), registry: reg}

	rec := env.do("POST", "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var out struct{ Token string }
	env.decode(rec, &out)
	env.token = out.Token
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) decode(rec *httptest.ResponseRecorder, v any) {
	e.t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		e.t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func (e *testEnv) createSong() uint {
	e.t.Helper()
	rec := e.do("POST", "/api/v1/songs", e.token, map[string]any{
		"title":  "The Darkbox",
		"artist": "Synthwave Collective",
		"lines": []map[string]any{
			{"text": "one", "time_ms": 0},
			{"text": "two", "time_ms": 5000},
			{"text": "three", "time_ms": 4000},
			{"text": "four"},
		},
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("create song: %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Song        struct{ ID uint }
		Corrections []json.RawMessage
	}
	e.decode(rec, &out)
	if len(out.Corrections) != 1 {
		e.t.Errorf("create corrections = %d, want 1", len(out.Corrections))
	}
	return out.Song.ID
}

func TestHealthAndAuth(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do("GET", "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
	if rec := env.do("GET", "/api/v1/songs", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}
	if rec := env.do("GET", "/api/v1/songs", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", rec.Code)
	}
	rec := env.do("POST", "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", rec.Code)
	}

	rec = env.do("POST", "/api/v1/auth/register", env.token, map[string]string{
		"username": "viewer", "password": "pw", "role": "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body)
	}
	rec = env.do("POST", "/api/v1/auth/login", "", map[string]string{"username": "viewer", "password": "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer login = %d", rec.Code)
	}
	var out struct{ Token string }
	env.decode(rec, &out)

	if rec := env.do("GET", "/api/v1/songs", out.Token, nil); rec.Code != http.StatusOK {
		t.Errorf("viewer list = %d", rec.Code)
	}
	if rec := env.do("POST", "/api/v1/songs", out.Token, map[string]string{"title": "x"}); rec.Code != http.StatusForbidden {
		t.Errorf("viewer create = %d, want 403", rec.Code)
	}
}

func TestSongLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSong()

	rec := env.do("GET", fmt.Sprintf("/api/v1/songs/%d", id), env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var song struct {
		Lines []struct {
			Text   string
			TimeMs int64 `json:"time_ms"`
		}
	}
	env.decode(rec, &song)
	got := make([]int64, len(song.Lines))
	for i, l := range song.Lines {
		got[i] = l.TimeMs
	}
	if fmt.Sprint(got) != "[0 5000 5100 -1]" {
		t.Errorf("stored times = %v", got)
	}

	if rec := env.do("POST", "/api/v1/songs", env.token, map[string]string{"title": " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty title = %d, want 400", rec.Code)
	}
	if rec := env.do("GET", "/api/v1/songs/999", env.token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing song = %d, want 404", rec.Code)
	}
	if rec := env.do("GET", "/api/v1/songs/abc", env.token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", rec.Code)
	}

	rec = env.do("GET", "/api/v1/stats", "", nil)
	var stats struct {
		Stats struct{ Songs, Lines int64 }
	}
	env.decode(rec, &stats)
	if stats.Stats.Songs != 1 || stats.Stats.Lines != 4 {
		t.Errorf("stats = %+v", stats.Stats)
	}

	if rec := env.do("DELETE", fmt.Sprintf("/api/v1/songs/%d", id), env.token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do("GET", fmt.Sprintf("/api/v1/songs/%d", id), env.token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after delete = %d, want 404", rec.Code)
	}
}

func TestSessionMessages(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSong()
	base := fmt.Sprintf("/api/v1/sessions/%d", id)

	if rec := env.do("GET", base, env.token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("snapshot before open = %d, want 404", rec.Code)
	}

	rec := env.do("POST", base, env.token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open = %d %s", rec.Code, rec.Body)
	}
	var snap session.Snapshot
	env.decode(rec, &snap)
	if len(snap.Lines) != 4 || snap.ActiveIndex != -1 {
		t.Fatalf("open snapshot = %+v", snap)
	}

	// Local playback at 5.05s highlights line 1.
	rec = env.do("POST", base+"/samples", env.token, map[string]any{"action": "localTime", "positionMs": 5050})
	if rec.Code != http.StatusOK {
		t.Fatalf("sample = %d %s", rec.Code, rec.Body)
	}
	var res struct {
		Decision    struct{ Accepted bool }
		ActiveIndex int `json:"active_index"`
	}
	env.decode(rec, &res)
	if !res.Decision.Accepted || res.ActiveIndex != 1 {
		t.Errorf("sample result = %+v", res)
	}

	// Edits go through the messages route only.
	edit := map[string]any{"action": "editTimecode", "line": 1, "timeMs": 6000}
	if rec := env.do("POST", base+"/samples", env.token, edit); rec.Code != http.StatusBadRequest {
		t.Errorf("edit on samples route = %d, want 400", rec.Code)
	}
	rec = env.do("POST", base+"/messages", env.token, edit)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d %s", rec.Code, rec.Body)
	}

	if rec := env.do("POST", base+"/messages", env.token, map[string]any{"action": "editTimecode", "line": 9, "timeMs": 1}); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range line = %d, want 400", rec.Code)
	}
	if rec := env.do("POST", base+"/messages", env.token, map[string]any{"action": "dance"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", rec.Code)
	}

	// The edit pushed line 2 (5100) to 6100; both land in the history.
	rec = env.do("GET", fmt.Sprintf("/api/v1/songs/%d/corrections", id), env.token, nil)
	var hist struct {
		Data []struct {
			LineID string `json:"line_id"`
		}
	}
	env.decode(rec, &hist)
	if len(hist.Data) == 0 {
		t.Errorf("no correction history after edit: %s", rec.Body)
	}

	rec = env.do("GET", fmt.Sprintf("/api/v1/songs/%d", id), env.token, nil)
	var song struct {
		Lines []struct {
			TimeMs int64 `json:"time_ms"`
		}
	}
	env.decode(rec, &song)
	if song.Lines[1].TimeMs != 6000 || song.Lines[2].TimeMs != 6100 {
		t.Errorf("persisted times = %+v", song.Lines)
	}

	if rec := env.do("GET", base+"/diagnostics", env.token, nil); rec.Code != http.StatusOK {
		t.Errorf("diagnostics = %d", rec.Code)
	}

	viewer, _ := middleware.IssueToken([]byte(testSecret), 99, middleware.RoleViewer, time.Minute)
	if rec := env.do("POST", base+"/messages", viewer, edit); rec.Code != http.StatusForbidden {
		t.Errorf("viewer edit = %d, want 403", rec.Code)
	}

	if rec := env.do("DELETE", base, env.token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("close = %d", rec.Code)
	}
	if env.registry.Len() != 0 {
		t.Errorf("registry still holds %d sessions", env.registry.Len())
	}
}

func TestAudioUploadAndExport(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSong()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "the_darkbox.mp3")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00})
	mw.Close()

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/songs/%d/audio", id), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body)
	}

	if rec := env.do("GET", fmt.Sprintf("/api/v1/songs/%d/audio", id), env.token, nil); rec.Code != http.StatusOK || rec.Body.Len() != 6 {
		t.Errorf("stream = %d len %d", rec.Code, rec.Body.Len())
	}

	if rec := env.do("POST", fmt.Sprintf("/api/v1/songs/%d/export", id), env.token, nil); rec.Code != http.StatusCreated {
		t.Fatalf("export = %d %s", rec.Code, rec.Body)
	}
	rec = env.do("GET", fmt.Sprintf("/api/v1/songs/%d/export", id), env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download export = %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("ID3")) {
		t.Errorf("export is not id3 tagged")
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("LYRIX_TIMECODES")) {
		t.Errorf("export lacks timecodes frame")
	}
}
