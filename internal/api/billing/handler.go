package billing

import (
	"context"
	"net/http"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/charge"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Charger interface {
	ChargeSession(ctx context.Context, req charge.Request) charge.Result
}

type SetupStarter interface {
	StartSetup(ctx context.Context, tenantID, clientID uint, e env.Environment) (stripeinfra.SetupIntent, error)
}

type Handler struct {
	db      *gorm.DB
	charger Charger
	setup   SetupStarter
}

func NewHandler(db *gorm.DB, charger Charger, setup SetupStarter) *Handler {
	return &Handler{db: db, charger: charger, setup: setup}
}

type chargeSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	TenantID  *uint  `json:"tenantId"`
	Env       string `json:"env" binding:"required"`
}

// ChargeSession answers 200 for every business outcome; the body's code says
// what happened.
func (h *Handler) ChargeSession(c *gin.Context) {
	var req chargeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and env are required"})
		return
	}
	e, err := env.Parse(req.Env)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": charge.CodeInvalidEnv})
		return
	}

	tenantID := middleware.TenantID(c)
	if req.TenantID != nil && *req.TenantID != tenantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tenant mismatch"})
		return
	}

	res := h.charger.ChargeSession(c.Request.Context(), charge.Request{
		SessionID: req.SessionID,
		TenantID:  tenantID,
		Env:       e,
	})

	switch res.Code {
	case charge.CodeSessionNotFound, charge.CodeTenantNotFound:
		c.JSON(http.StatusNotFound, res)
	case charge.CodeInvalidEnv:
		c.JSON(http.StatusBadRequest, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
