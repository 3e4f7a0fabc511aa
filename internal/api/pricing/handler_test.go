package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/pricing"
	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"
	"coaching-billing/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products []stripeinfra.CatalogProduct
	prices   map[string][]stripeinfra.CatalogPrice
}

func (f *fakeCatalog) ListProducts(_ context.Context, _ env.Environment, _ string) ([]stripeinfra.CatalogProduct, error) {
	return f.products, nil
}

func (f *fakeCatalog) ListActivePrices(_ context.Context, _ env.Environment, _ string, productID string) ([]stripeinfra.CatalogPrice, error) {
	return f.prices[productID], nil
}

func setup(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme")
	testutil.ConnectCompany(t, db, c, env.Test, "acct_1", true)

	catalog := &fakeCatalog{
		products: []stripeinfra.CatalogProduct{
			{ID: "prod_full", Name: "Full", DefaultPriceID: "price_b"},
			{ID: "prod_half", Name: "Half"},
		},
		prices: map[string][]stripeinfra.CatalogPrice{
			"prod_full": {
				{ID: "price_a", ProductID: "prod_full", UnitAmount: 9000, Currency: "usd"},
				{ID: "price_b", ProductID: "prod_full", UnitAmount: 10000, Currency: "usd"},
			},
		},
	}
	h := NewHandler(registry.New(db), pricing.New(catalog))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(ctx *gin.Context) { ctx.Set(middleware.KeyCompanyID, c.ID) })
	r.GET("/pricing/catalog", h.GetCatalog)
	r.GET("/pricing/resolve", h.ResolvePrice)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetCatalog(t *testing.T) {
	r := setup(t)

	w := get(r, "/pricing/catalog?env=test")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out []productDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	require.Len(t, out[0].Prices, 2)
	assert.True(t, out[0].Prices[1].Default)
	assert.Equal(t, "100.00", out[0].Prices[1].AmountDisplay)
	assert.Empty(t, out[1].Prices)

	assert.Equal(t, http.StatusConflict, get(r, "/pricing/catalog?env=live").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/pricing/catalog").Code)
}

func TestResolvePrice(t *testing.T) {
	r := setup(t)

	w := get(r, "/pricing/resolve?env=test&serviceType=full")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"price_b"`)

	w = get(r, "/pricing/resolve?env=test&serviceType=Half")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "no_active_price"))

	w = get(r, "/pricing/resolve?env=test&serviceType=Intro")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "no_price_for_service_type"))
}
