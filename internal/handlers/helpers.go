package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crmhub/internal/auth"
	"crmhub/internal/middleware"
	"crmhub/internal/repositories"
	"crmhub/internal/services"
	"crmhub/internal/session"
)

// currentUserID is the signed-in user, or "" on routes without auth.
func currentUserID(c *gin.Context) string {
	if id, ok := middleware.CurrentIdentity(c); ok {
		return id.UserID
	}
	return ""
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// respondError maps service and repository errors onto HTTP statuses.
// Anything unrecognised is a 500 and is attached to the context for the
// request logger.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrStageNotInPipeline):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, repositories.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrLeadAlreadyConverted),
		errors.Is(err, repositories.ErrDuplicate):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, session.ErrSessionNotFound):
		status, msg = http.StatusUnauthorized, "Invalid or expired token"
	default:
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
