package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/service/session"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
)

type AdminHandler struct {
	Sessions *session.Service
	logger   *slog.Logger
}

func NewAdminHandler(sessions *session.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{Sessions: sessions, logger: logger.With("component", "admin")}
}

// RevokeSessions logs a user out everywhere.
func (h *AdminHandler) RevokeSessions(c *gin.Context) {
	userID := c.Param("id")

	revoked, err := h.Sessions.RevokeAll(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, requestFailed, "revoke sessions")
		return
	}

	h.logger.Info("sessions revoked by admin",
		"user_id", userID,
		"admin_id", middleware.CurrentUser(c).ID,
		"count", revoked,
	)
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}
