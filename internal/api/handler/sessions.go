package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
)

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Name            string    `json:"name" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// UpdateStatusRequest is the body of PATCH /api/sessions/:id/status.
type UpdateStatusRequest struct {
	Status models.SessionStatus `json:"status" binding:"required"`
}

// CreateSession lets a host schedule a session. The join code is generated by the store.
func (h *Handler) CreateSession(c *gin.Context) {
	identity := identityFrom(c)
	if identity.Role != models.RoleHost {
		writeError(c, apperr.ErrNotAuthorized)
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.CodeBadRequest, "name is required"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(c, apperr.New(apperr.CodeBadRequest, "name is required"))
		return
	}

	session := &models.Session{
		Name:            name,
		HostID:          identity.ID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.Sessions.CreateSession(c.Request.Context(), session); err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().Str("session_id", session.ID).Str("identity_id", identity.ID).Msg("session created")
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) GetSessionByCode(c *gin.Context) {
	session, err := h.Sessions.GetSessionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.CodeBadRequest, "status is required"))
		return
	}
	session, err := h.Lifecycle.UpdateStatus(c.Request.Context(), identityFrom(c), c.Param("id"), req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListMessages returns the most recent messages, oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apperr.New(apperr.CodeBadRequest, "limit must be a number"))
			return
		}
		limit = n
	}
	msgs, err := h.Chat.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PurgeMessages deletes the session's chat. Host only.
func (h *Handler) PurgeMessages(c *gin.Context) {
	n, err := h.Chat.Purge(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) ListRecordings(c *gin.Context) {
	recs, err := h.Recordings.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}
