package sessions

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/charge"
	"coaching-billing/internal/billing/lifecycle"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type LockClearer interface {
	ClearChargeLock(ctx context.Context, tenantID uint, sessionID string) (*sessions.Session, error)
}

type Handler struct {
	svc   *lifecycle.Service
	locks LockClearer
}

func NewHandler(svc *lifecycle.Service, locks LockClearer) *Handler {
	return &Handler{svc: svc, locks: locks}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrSessionNotFound), errors.Is(err, charge.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, sessions.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, sessions.ErrUnknownAction),
		errors.Is(err, lifecycle.ErrInvalidSession),
		errors.Is(err, lifecycle.ErrInvalidParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sessions.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrChargeInProgress),
		errors.Is(err, lifecycle.ErrConcurrentChange),
		errors.Is(err, charge.ErrNoChargeLock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Uint("tenant_id", middleware.TenantID(c)).Str("path", c.FullPath()).Msg("session request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

type createSessionRequest struct {
	CoachID      uint      `json:"coachId"`
	ClientID     uint      `json:"clientId" binding:"required"`
	ScheduledAt  time.Time `json:"scheduledAt" binding:"required"`
	ServiceType  string    `json:"serviceType" binding:"required"`
	Notes        string    `json:"notes"`
	Summary      *string   `json:"summary"`
	RecordingURL *string   `json:"recordingUrl"`
}

// CreateSession logs a session. Coaches log their own; admins name the coach.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId, scheduledAt and serviceType are required"})
		return
	}

	coachID := req.CoachID
	if c.GetString(middleware.KeyRole) == users.RoleCoach {
		coachID = c.GetUint(middleware.KeyUserID)
	} else if coachID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coachId is required"})
		return
	}

	sess, err := h.svc.Create(c.Request.Context(), lifecycle.CreateInput{
		TenantID:     middleware.TenantID(c),
		CoachID:      coachID,
		ClientID:     req.ClientID,
		ScheduledAt:  req.ScheduledAt,
		ServiceType:  req.ServiceType,
		Notes:        req.Notes,
		Summary:      req.Summary,
		RecordingURL: req.RecordingURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func queryUint(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

// ListSessions filters by status, client and coach. Coaches and clients only
// ever see their own sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	var f lifecycle.Filter
	if raw := c.Query("status"); raw != "" {
		f.Status = sessions.Status(raw)
		if !f.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
	}
	var ok bool
	if f.ClientID, ok = queryUint(c, "clientId"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clientId"})
		return
	}
	if f.CoachID, ok = queryUint(c, "coachId"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coachId"})
		return
	}
	f.IncludeArchived = c.Query("includeArchived") == "true"

	switch c.GetString(middleware.KeyRole) {
	case users.RoleCoach:
		f.CoachID = c.GetUint(middleware.KeyUserID)
	case users.RoleClient:
		f.ClientID = c.GetUint(middleware.KeyUserID)
		f.IncludeArchived = false
	}

	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ReviewQueue(c *gin.Context) {
	list, err := h.svc.ReviewQueue(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type transitionRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}
	action, err := sessions.ParseAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}

	sess, err := h.svc.Apply(c.Request.Context(), middleware.TenantID(c), c.Param("id"), action, c.GetString(middleware.KeyRole))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Archive(c *gin.Context) {
	sess, err := h.svc.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), c.GetString(middleware.KeyRole))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Unarchive(c *gin.Context) {
	sess, err := h.svc.Unarchive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), c.GetString(middleware.KeyRole))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ClearChargeLock is the operator's way out of an unknown charge outcome,
// after checking the processor dashboard.
func (h *Handler) ClearChargeLock(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	sess, err := h.locks.ClearChargeLock(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	log.Warn().
		Uint("tenant_id", tenantID).
		Str("session_id", sess.ID).
		Uint("user_id", c.GetUint(middleware.KeyUserID)).
		Msg("Charge lock cleared by operator")
	c.JSON(http.StatusOK, sess)
}
