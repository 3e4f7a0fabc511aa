package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"coaching-billing/internal/domain/env"

	stripelib "github.com/stripe/stripe-go/v75"
)

type ChargeStatus string

const (
	ChargeSucceeded      ChargeStatus = "succeeded"
	ChargeRequiresAction ChargeStatus = "requires_action"
	ChargeDeclined       ChargeStatus = "declined"
	ChargeFailed         ChargeStatus = "failed"
	// ChargeProcessing means Stripe accepted the request but has not settled
	// it. Callers must treat it as an unknown outcome.
	ChargeProcessing ChargeStatus = "processing"
)

type ChargeRequest struct {
	SubAccountID    string
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

type ChargeOutcome struct {
	PaymentIntentID string
	Status          ChargeStatus
	Amount          int64
	Currency        string
	FailureCode     string
	FailureMessage  string
}

// Charge creates and confirms one off-session PaymentIntent. Card-level
// rejections come back as an outcome, not an error. The returned error is
// either ErrTransient (nothing happened) or an unknown-outcome error.
func (c *Client) Charge(ctx context.Context, e env.Environment, req ChargeRequest) (ChargeOutcome, error) {
	api, err := c.api(e)
	if err != nil {
		return ChargeOutcome{}, err
	}

	params := &stripelib.PaymentIntentParams{
		Amount:             stripelib.Int64(req.Amount),
		Currency:           stripelib.String(req.Currency),
		Customer:           stripelib.String(req.CustomerID),
		PaymentMethod:      stripelib.String(req.PaymentMethodID),
		PaymentMethodTypes: []*string{stripelib.String(string(stripelib.PaymentMethodTypeCard))},
		Confirm:            stripelib.Bool(true),
		OffSession:         stripelib.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripelib.String(req.Description)
	}
	params.Context = ctx
	params.SetStripeAccount(req.SubAccountID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := api.PaymentIntents.New(params)
	if err != nil {
		return classifyChargeError(err)
	}
	return outcomeFromIntent(pi), nil
}

func outcomeFromIntent(pi *stripelib.PaymentIntent) ChargeOutcome {
	out := ChargeOutcome{
		PaymentIntentID: pi.ID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
	}
	switch pi.Status {
	case stripelib.PaymentIntentStatusSucceeded:
		out.Status = ChargeSucceeded
	case stripelib.PaymentIntentStatusRequiresAction, stripelib.PaymentIntentStatusRequiresConfirmation:
		out.Status = ChargeRequiresAction
		out.FailureCode = string(stripelib.ErrorCodeAuthenticationRequired)
		out.FailureMessage = "The payment requires additional authentication by the client."
	case stripelib.PaymentIntentStatusProcessing:
		out.Status = ChargeProcessing
	default:
		out.Status = ChargeFailed
		if pi.LastPaymentError != nil {
			out.FailureCode = string(pi.LastPaymentError.Code)
			out.FailureMessage = pi.LastPaymentError.Msg
		}
		if out.FailureMessage == "" {
			out.FailureMessage = "Payment was not completed (status " + string(pi.Status) + ")."
		}
	}
	return out
}

func classifyChargeError(err error) (ChargeOutcome, error) {
	var se *stripelib.Error
	if !errors.As(err, &se) {
		// transport failure: the request may or may not have reached Stripe
		return ChargeOutcome{}, fmt.Errorf("create payment intent: %w", err)
	}

	out := ChargeOutcome{
		FailureCode:    string(se.Code),
		FailureMessage: se.Msg,
	}
	if se.PaymentIntent != nil {
		out.PaymentIntentID = se.PaymentIntent.ID
		out.Amount = se.PaymentIntent.Amount
		out.Currency = string(se.PaymentIntent.Currency)
	}

	switch {
	case se.Code == stripelib.ErrorCodeAuthenticationRequired:
		out.Status = ChargeRequiresAction
		return out, nil
	case se.Type == stripelib.ErrorTypeCard:
		out.Status = ChargeDeclined
		if se.DeclineCode != "" {
			out.FailureCode = string(se.DeclineCode)
		}
		return out, nil
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		return ChargeOutcome{}, fmt.Errorf("%w: %s", ErrTransient, se.Msg)
	case se.Type == stripelib.ErrorTypeInvalidRequest && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500:
		// Stripe rejected the request itself; nothing was charged.
		out.Status = ChargeFailed
		return out, nil
	default:
		return ChargeOutcome{}, fmt.Errorf("create payment intent: %w", err)
	}
}
