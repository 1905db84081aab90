package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lyrix/internal/bridge"
	"lyrix/internal/library"
	"lyrix/internal/session"
)

// SessionHandler exposes live sync sessions. Every call is executed on the session's runner.
type SessionHandler struct {
	repo     *library.Repository
	registry *session.Registry
	timeout  time.Duration
}

func NewSessionHandler(repo *library.Repository, reg *session.Registry) *SessionHandler {
	return &SessionHandler{repo: repo, registry: reg, timeout: 2 * time.Second}
}

type openRequest struct {
	Embedded *bool `json:"embedded"`
}

// Open loads the song into a session. Opening an already open song resets it.
func (h *SessionHandler) Open(c *gin.Context) {
	id, ok := parseID(c, "songID")
	if !ok {
		return
	}
	var req openRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid open payload"})
			return
		}
	}

	song, err := h.repo.GetSong(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	runner, err := h.registry.Open(c.Request.Context(), song)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var snap session.Snapshot
	err = h.do(c, runner, func(s *session.Session) {
		if req.Embedded != nil {
			s.SetEmbedded(*req.Embedded)
		}
		snap = s.Snapshot()
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := parseID(c, "songID")
	if !ok {
		return
	}
	if !h.registry.Close(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not open"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Snapshot(c *gin.Context) {
	var snap session.Snapshot
	h.withSession(c, func(s *session.Session) { snap = s.Snapshot() }, func() {
		c.JSON(http.StatusOK, snap)
	})
}

func (h *SessionHandler) Diagnostics(c *gin.Context) {
	var diag session.Diagnostics
	h.withSession(c, func(s *session.Session) { diag = s.Diagnostics() }, func() {
		c.JSON(http.StatusOK, diag)
	})
}

// Message applies one bridge message.
func (h *SessionHandler) Message(c *gin.Context) {
	h.dispatch(c, nil)
}

var sampleActions = map[bridge.Action]bool{
	bridge.ActionHostTime:  true,
	bridge.ActionLocalTime: true,
	bridge.ActionScrub:     true,
}

// Sample accepts only time reports. This route is rate limited separately.
func (h *SessionHandler) Sample(c *gin.Context) {
	h.dispatch(c, sampleActions)
}

func (h *SessionHandler) dispatch(c *gin.Context, allowed map[bridge.Action]bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	msg, err := bridge.Decode(body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if allowed != nil && !allowed[msg.Action()] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only time samples are accepted here"})
		return
	}

	var (
		res  bridge.Result
		derr error
	)
	h.withSession(c, func(s *session.Session) { res, derr = bridge.Dispatch(s, msg) }, func() {
		if derr != nil {
			abortWithError(c, derr)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

// withSession runs fn on the session goroutine and then respond on the request goroutine.
func (h *SessionHandler) withSession(c *gin.Context, fn func(*session.Session), respond func()) {
	id, ok := parseID(c, "songID")
	if !ok {
		return
	}
	runner, found := h.registry.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not open"})
		return
	}
	if err := h.do(c, runner, fn); err != nil {
		abortWithError(c, err)
		return
	}
	respond()
}

func (h *SessionHandler) do(c *gin.Context, runner *session.Runner, fn func(*session.Session)) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	return runner.Do(ctx, fn)
}
