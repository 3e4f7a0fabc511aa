// Package pricing resolves a session's service type to a price in the
// tenant's connected catalog.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoProduct: add a product named like the service type.
	ErrNoProduct = errors.New("no product matches service type")
	// ErrNoActivePrice: the product exists but has no active price.
	ErrNoActivePrice = errors.New("product has no active price")
)

// Catalog is the part of the processor the lookup reads.
type Catalog interface {
	ListProducts(ctx context.Context, e env.Environment, subAccountID string) ([]stripeinfra.CatalogProduct, error)
	ListActivePrices(ctx context.Context, e env.Environment, subAccountID, productID string) ([]stripeinfra.CatalogPrice, error)
}

type Price struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitAmount  int64  `json:"unitAmount"`
	Currency    string `json:"currency"`
}

type ProductEntry struct {
	Product stripeinfra.CatalogProduct `json:"product"`
	Prices  []stripeinfra.CatalogPrice `json:"prices"`
}

type Lookup struct {
	catalog Catalog
}

func New(catalog Catalog) *Lookup {
	return &Lookup{catalog: catalog}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindPrice matches label against product names case-insensitively and
// returns the product's price. With several active prices the product's
// default price wins; otherwise the first in listing order is used.
func (l *Lookup) FindPrice(ctx context.Context, subAccountID string, e env.Environment, label string) (Price, error) {
	want := normalizeLabel(label)
	if want == "" {
		return Price{}, fmt.Errorf("%w: empty service type", ErrNoProduct)
	}

	products, err := l.catalog.ListProducts(ctx, e, subAccountID)
	if err != nil {
		return Price{}, fmt.Errorf("list catalog products: %w", err)
	}

	var match *stripeinfra.CatalogProduct
	for i := range products {
		if normalizeLabel(products[i].Name) == want {
			match = &products[i]
			break
		}
	}
	if match == nil {
		return Price{}, fmt.Errorf("%w: %q", ErrNoProduct, label)
	}

	prices, err := l.catalog.ListActivePrices(ctx, e, subAccountID, match.ID)
	if err != nil {
		return Price{}, fmt.Errorf("list prices for product %s: %w", match.ID, err)
	}
	if len(prices) == 0 {
		return Price{}, fmt.Errorf("%w: product %q (%s)", ErrNoActivePrice, match.Name, match.ID)
	}

	chosen := prices[0]
	if len(prices) > 1 {
		for _, p := range prices {
			if match.DefaultPriceID != "" && p.ID == match.DefaultPriceID {
				chosen = p
				break
			}
		}
		log.Warn().
			Str("sub_account_id", subAccountID).
			Str("env", e.String()).
			Str("product_id", match.ID).
			Int("active_prices", len(prices)).
			Str("price_id", chosen.ID).
			Msg("Product has several active prices")
	}

	return Price{
		ID:          chosen.ID,
		ProductID:   match.ID,
		ProductName: match.Name,
		UnitAmount:  chosen.UnitAmount,
		Currency:    strings.ToLower(chosen.Currency),
	}, nil
}

// List returns every active product with its active prices.
func (l *Lookup) List(ctx context.Context, subAccountID string, e env.Environment) ([]ProductEntry, error) {
	products, err := l.catalog.ListProducts(ctx, e, subAccountID)
	if err != nil {
		return nil, fmt.Errorf("list catalog products: %w", err)
	}
	out := make([]ProductEntry, 0, len(products))
	for _, p := range products {
		prices, err := l.catalog.ListActivePrices(ctx, e, subAccountID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list prices for product %s: %w", p.ID, err)
		}
		out = append(out, ProductEntry{Product: p, Prices: prices})
	}
	return out, nil
}
