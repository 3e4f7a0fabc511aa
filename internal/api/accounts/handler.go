package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Registry interface {
	GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error)
	SetSubAccount(ctx context.Context, tenantID uint, e env.Environment, subAccountID string) error
	SetReady(ctx context.Context, tenantID uint, e env.Environment, ready bool) error
}

type Reconciler interface {
	RefreshTenant(ctx context.Context, tenantID uint, e env.Environment) (stripeinfra.AccountStatus, error)
	AccountStatus(ctx context.Context, subAccountID string, e env.Environment) (stripeinfra.AccountStatus, error)
}

type Connector interface {
	AuthCodeURL(e env.Environment, state string) (string, error)
	Exchange(ctx context.Context, e env.Environment, code string) (string, error)
}

type Handler struct {
	registry    Registry
	reconciler  Reconciler
	connector   Connector
	stateSecret []byte
	appURL      string
}

func NewHandler(reg Registry, rec Reconciler, conn Connector, stateSecret, appURL string) *Handler {
	return &Handler{
		registry:    reg,
		reconciler:  rec,
		connector:   conn,
		stateSecret: []byte(stateSecret),
		appURL:      strings.TrimRight(appURL, "/"),
	}
}

type statusResponse struct {
	SubAccountID     string `json:"subAccountId"`
	Env              string `json:"env"`
	ChargesEnabled   bool   `json:"chargesEnabled"`
	PayoutsEnabled   bool   `json:"payoutsEnabled"`
	DetailsSubmitted bool   `json:"detailsSubmitted"`
	DisabledReason   string `json:"disabledReason,omitempty"`
	Ready            bool   `json:"ready"`
}

func newStatusResponse(sub string, e env.Environment, st stripeinfra.AccountStatus) statusResponse {
	return statusResponse{
		SubAccountID:     sub,
		Env:              e.String(),
		ChargesEnabled:   st.ChargesEnabled,
		PayoutsEnabled:   st.PayoutsEnabled,
		DetailsSubmitted: st.DetailsSubmitted,
		DisabledReason:   st.DisabledReason,
		Ready:            st.Ready(),
	}
}

func writeError(c *gin.Context, err error, e env.Environment) {
	switch {
	case errors.Is(err, registry.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
	case errors.Is(err, registry.ErrNoSubAccount):
		c.JSON(http.StatusConflict, gin.H{"error": "No connected account for " + e.String()})
	case errors.Is(err, registry.ErrConcurrentChange):
		c.JSON(http.StatusConflict, gin.H{"error": "Connected account changed concurrently, retry"})
	case errors.Is(err, stripeinfra.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Connected account not found at Stripe"})
	case errors.Is(err, stripeinfra.ErrEnvNotConfigured), errors.Is(err, stripeinfra.ErrConnectNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe is not configured for " + e.String()})
	default:
		log.Error().Err(err).Uint("tenant_id", middleware.TenantID(c)).Str("env", e.String()).Msg("account request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Stripe request failed"})
	}
}

// GetAccountStatus reads capability flags straight from Stripe. Without
// subAccountId the tenant's own account for env is used; any other id must
// be the tenant's.
func (h *Handler) GetAccountStatus(c *gin.Context) {
	e, err := env.Parse(c.Query("env"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenantID := middleware.TenantID(c)
	acct, err := h.registry.GetAccount(c.Request.Context(), tenantID, e)
	if err != nil {
		writeError(c, err, e)
		return
	}

	sub := strings.TrimSpace(c.Query("subAccountId"))
	if sub == "" {
		sub = acct.SubAccountID
	} else if sub != acct.SubAccountID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account does not belong to this tenant"})
		return
	}

	st, err := h.reconciler.AccountStatus(c.Request.Context(), sub, e)
	if err != nil {
		writeError(c, err, e)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(sub, e, st))
}

type readinessRequest struct {
	TenantID uint   `json:"tenantId" binding:"required"`
	Env      string `json:"env" binding:"required"`
	Ready    *bool  `json:"ready" binding:"required"`
}

// UpdateAccountReadiness stores a readiness flag the caller has already
// derived from Stripe.
func (h *Handler) UpdateAccountReadiness(c *gin.Context) {
	var req readinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId, env and ready are required"})
		return
	}
	e, err := env.Parse(req.Env)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TenantID != middleware.TenantID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tenant mismatch"})
		return
	}

	if err := h.registry.SetReady(c.Request.Context(), req.TenantID, e, *req.Ready); err != nil {
		writeError(c, err, e)
		return
	}
	log.Info().Uint("tenant_id", req.TenantID).Str("env", e.String()).Bool("ready", *req.Ready).Msg("Account readiness updated")
	c.JSON(http.StatusOK, gin.H{"tenantId": req.TenantID, "env": e.String(), "ready": *req.Ready})
}

type refreshRequest struct {
	Env string `json:"env" binding:"required"`
}

// RefreshAccount runs the pull path for the caller's tenant.
func (h *Handler) RefreshAccount(c *gin.Context) {
	var req refreshRequest
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
	st, err := h.reconciler.RefreshTenant(c.Request.Context(), tenantID, e)
	if err != nil {
		writeError(c, err, e)
		return
	}
	acct, err := h.registry.GetAccount(c.Request.Context(), tenantID, e)
	if err != nil {
		writeError(c, err, e)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(acct.SubAccountID, e, st))
}
