package stripe

import (
	"context"
	"fmt"

	"coaching-billing/internal/domain/env"

	stripelib "github.com/stripe/stripe-go/v75"
)

// Customer is the subset of a customer record the charge path needs.
type Customer struct {
	ID                     string
	Deleted                bool
	DefaultPaymentMethodID string
}

type CustomerInput struct {
	Email    string
	Name     string
	Metadata map[string]string
}

type SetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Customer retrieves customerID under subAccountID. The default payment
// method is the invoice-settings default, falling back to the first card
// attached to the customer.
func (c *Client) Customer(ctx context.Context, e env.Environment, subAccountID, customerID string) (Customer, error) {
	api, err := c.api(e)
	if err != nil {
		return Customer{}, err
	}

	params := &stripelib.CustomerParams{}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)
	params.AddExpand("invoice_settings.default_payment_method")

	cus, err := api.Customers.Get(customerID, params)
	if err != nil {
		if isResourceMissing(err) {
			return Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
		}
		return Customer{}, fmt.Errorf("retrieve customer %s: %w", customerID, err)
	}

	out := Customer{ID: cus.ID, Deleted: cus.Deleted}
	if cus.Deleted {
		return out, nil
	}
	if cus.InvoiceSettings != nil && cus.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = cus.InvoiceSettings.DefaultPaymentMethod.ID
		return out, nil
	}

	listParams := &stripelib.PaymentMethodListParams{
		Customer: stripelib.String(customerID),
		Type:     stripelib.String(string(stripelib.PaymentMethodTypeCard)),
	}
	listParams.Context = ctx
	listParams.SetStripeAccount(subAccountID)
	listParams.Limit = stripelib.Int64(1)

	it := api.PaymentMethods.List(listParams)
	if it.Next() {
		out.DefaultPaymentMethodID = it.PaymentMethod().ID
	}
	if err := it.Err(); err != nil {
		return Customer{}, fmt.Errorf("list payment methods for %s: %w", customerID, err)
	}
	return out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, e env.Environment, subAccountID string, in CustomerInput) (string, error) {
	api, err := c.api(e)
	if err != nil {
		return "", err
	}
	params := &stripelib.CustomerParams{
		Email: stripelib.String(in.Email),
		Name:  stripelib.String(in.Name),
	}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	cus, err := api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cus.ID, nil
}

// CreateSetupIntent starts saving a card for later off-session charges.
func (c *Client) CreateSetupIntent(ctx context.Context, e env.Environment, subAccountID, customerID string, metadata map[string]string) (SetupIntent, error) {
	api, err := c.api(e)
	if err != nil {
		return SetupIntent{}, err
	}
	params := &stripelib.SetupIntentParams{
		Customer:           stripelib.String(customerID),
		PaymentMethodTypes: []*string{stripelib.String(string(stripelib.PaymentMethodTypeCard))},
		Usage:              stripelib.String(string(stripelib.SetupIntentUsageOffSession)),
	}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	si, err := api.SetupIntents.New(params)
	if err != nil {
		return SetupIntent{}, fmt.Errorf("create setup intent: %w", err)
	}
	return SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

func (c *Client) SetDefaultPaymentMethod(ctx context.Context, e env.Environment, subAccountID, customerID, paymentMethodID string) error {
	api, err := c.api(e)
	if err != nil {
		return err
	}
	params := &stripelib.CustomerParams{
		InvoiceSettings: &stripelib.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripelib.String(paymentMethodID),
		},
	}
	params.Context = ctx
	params.SetStripeAccount(subAccountID)

	if _, err := api.Customers.Update(customerID, params); err != nil {
		return fmt.Errorf("set default payment method on %s: %w", customerID, err)
	}
	return nil
}
