package billing

import (
	"errors"
	"net/http"
	"strconv"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/profiles"
	"coaching-billing/internal/billing/registry"
	records "coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/env"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxRecords = 500

// ListBillingRecords is the tenant's audit trail, newest first.
func (h *Handler) ListBillingRecords(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", middleware.TenantID(c))

	if raw := c.Query("env"); raw != "" {
		e, err := env.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		q = q.Where("env = ?", e.String())
	}
	if id := c.Query("sessionId"); id != "" {
		q = q.Where("session_id = ?", id)
	}
	if outcome := c.Query("outcome"); outcome != "" {
		if outcome != records.OutcomeSucceeded && outcome != records.OutcomeFailed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "outcome must be succeeded or failed"})
			return
		}
		q = q.Where("outcome = ?", outcome)
	}
	if raw := c.Query("clientId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clientId"})
			return
		}
		q = q.Where("client_id = ?", id)
	}

	var rs []records.BillingRecord
	if err := q.Order("created_at DESC").Limit(maxRecords).Find(&rs).Error; err != nil {
		log.Error().Err(err).Uint("tenant_id", middleware.TenantID(c)).Msg("list billing records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load billing records"})
		return
	}
	c.JSON(http.StatusOK, toRecordDTOs(rs))
}

// GetPaymentHistory lists the calling client's own charges.
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID := c.GetUint(middleware.KeyUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var rs []records.BillingRecord
	if err := h.db.WithContext(c.Request.Context()).
		Where("company_id = ? AND client_id = ?", middleware.TenantID(c), userID).
		Order("created_at DESC").
		Find(&rs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, toRecordDTOs(rs))
}

type setupRequest struct {
	Env string `json:"env" binding:"required"`
}

// StartPaymentMethodSetup returns the SetupIntent client secret the
// frontend confirms with the card form.
func (h *Handler) StartPaymentMethodSetup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "env is required"})
		return
	}
	e, err := env.Parse(req.Env)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := middleware.TenantID(c)
	si, err := h.setup.StartSetup(c.Request.Context(), tenantID, c.GetUint(middleware.KeyUserID), e)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, si)
	case errors.Is(err, profiles.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "Payments are not set up for this practice yet"})
	case errors.Is(err, profiles.ErrNotClient), errors.Is(err, profiles.ErrTenantMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, profiles.ErrClientNotFound), errors.Is(err, registry.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		log.Error().Err(err).Uint("tenant_id", tenantID).Str("env", e.String()).Msg("start payment method setup")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to start payment method setup"})
	}
}
