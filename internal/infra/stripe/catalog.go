package stripe

import (
	"context"
	"fmt"

	"coaching-billing/internal/domain/env"

	stripelib "github.com/stripe/stripe-go/v75"
)

type CatalogProduct struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DefaultPriceID string `json:"defaultPriceId,omitempty"`
}

type CatalogPrice struct {
	ID         string `json:"id"`
	ProductID  string `json:"productId"`
	UnitAmount int64  `json:"unitAmount"`
	Currency   string `json:"currency"`
}

// ListProducts returns the sub-account's active products in listing order.
func (c *Client) ListProducts(ctx context.Context, e env.Environment, subAccountID string) ([]CatalogProduct, error) {
	api, err := c.api(e)
	if err != nil {
		return nil, err
	}
	params := &stripelib.ProductListParams{Active: stripelib.Bool(true)}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)

	var out []CatalogProduct
	it := api.Products.List(params)
	for it.Next() {
		p := it.Product()
		if !p.Active {
			continue
		}
		cp := CatalogProduct{ID: p.ID, Name: p.Name}
		if p.DefaultPrice != nil {
			cp.DefaultPriceID = p.DefaultPrice.ID
		}
		out = append(out, cp)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// ListActivePrices returns the product's active one-time and recurring
// prices in listing order.
func (c *Client) ListActivePrices(ctx context.Context, e env.Environment, subAccountID, productID string) ([]CatalogPrice, error) {
	api, err := c.api(e)
	if err != nil {
		return nil, err
	}
	params := &stripelib.PriceListParams{
		Active:  stripelib.Bool(true),
		Product: stripelib.String(productID),
	}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)

	var out []CatalogPrice
	it := api.Prices.List(params)
	for it.Next() {
		p := it.Price()
		if !p.Active {
			continue
		}
		out = append(out, CatalogPrice{
			ID:         p.ID,
			ProductID:  productID,
			UnitAmount: p.UnitAmount,
			Currency:   string(p.Currency),
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list prices for %s: %w", productID, err)
	}
	return out, nil
}
