package pricing

import (
	"context"
	"errors"
	"net/http"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/pricing"
	records "coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Accounts interface {
	GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error)
}

type Catalog interface {
	FindPrice(ctx context.Context, subAccountID string, e env.Environment, label string) (pricing.Price, error)
	List(ctx context.Context, subAccountID string, e env.Environment) ([]pricing.ProductEntry, error)
}

type Handler struct {
	accounts Accounts
	catalog  Catalog
}

func NewHandler(accounts Accounts, catalog Catalog) *Handler {
	return &Handler{accounts: accounts, catalog: catalog}
}

type priceDTO struct {
	ID            string `json:"id"`
	UnitAmount    int64  `json:"unitAmount"`
	AmountDisplay string `json:"amountDisplay"`
	Currency      string `json:"currency"`
	Default       bool   `json:"default"`
}

type productDTO struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Prices []priceDTO `json:"prices"`
}

func (h *Handler) subAccount(c *gin.Context) (string, env.Environment, bool) {
	e, err := env.Parse(c.Query("env"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	acct, err := h.accounts.GetAccount(c.Request.Context(), middleware.TenantID(c), e)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return "", "", false
	}
	if !acct.Connected() {
		c.JSON(http.StatusConflict, gin.H{"error": "No connected account for " + e.String()})
		return "", "", false
	}
	return acct.SubAccountID, e, true
}

// GET /pricing/catalog?env=
func (h *Handler) GetCatalog(c *gin.Context) {
	sub, e, ok := h.subAccount(c)
	if !ok {
		return
	}
	entries, err := h.catalog.List(c.Request.Context(), sub, e)
	if err != nil {
		log.Error().Err(err).Str("sub_account_id", sub).Str("env", e.String()).Msg("load catalog")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load catalog"})
		return
	}

	out := make([]productDTO, 0, len(entries))
	for _, entry := range entries {
		p := productDTO{ID: entry.Product.ID, Name: entry.Product.Name, Prices: []priceDTO{}}
		for _, pr := range entry.Prices {
			p.Prices = append(p.Prices, priceDTO{
				ID:            pr.ID,
				UnitAmount:    pr.UnitAmount,
				AmountDisplay: records.FormatAmount(pr.UnitAmount, pr.Currency),
				Currency:      pr.Currency,
				Default:       pr.ID == entry.Product.DefaultPriceID,
			})
		}
		out = append(out, p)
	}
	c.JSON(http.StatusOK, out)
}

// GET /pricing/resolve?env=&serviceType= shows which price a charge for
// serviceType would use.
func (h *Handler) ResolvePrice(c *gin.Context) {
	label := c.Query("serviceType")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceType is required"})
		return
	}
	sub, e, ok := h.subAccount(c)
	if !ok {
		return
	}

	price, err := h.catalog.FindPrice(c.Request.Context(), sub, e, label)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"price":         price,
			"amountDisplay": records.FormatAmount(price.UnitAmount, price.Currency),
		})
	case errors.Is(err, pricing.ErrNoProduct):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "no_price_for_service_type"})
	case errors.Is(err, pricing.ErrNoActivePrice):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "no_active_price"})
	default:
		log.Error().Err(err).Str("sub_account_id", sub).Str("env", e.String()).Msg("resolve price")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load catalog"})
	}
}
