package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lyrix/internal/bridge"
	"lyrix/internal/library"
	"lyrix/internal/session"
)

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return 0, false
	}
	return uint(id), true
}

// abortWithError maps domain errors to HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	var verr *bridge.ValidationError
	switch {
	case errors.Is(err, library.ErrSongNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, library.ErrInvalidSong),
		errors.Is(err, bridge.ErrUnknownAction),
		errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Session busy"})
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	c.Abort()
}
