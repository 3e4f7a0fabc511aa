package stripewebhooks

import (
	"context"

	"coaching-billing/internal/domain/env"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v75"
)

// A saved card only counts once it is the customer's default.
func (h *Handler) handleSetupIntentSucceeded(ctx context.Context, e env.Environment, event *stripe.Event) error {
	var si stripe.SetupIntent
	if err := decodeObject(event, &si); err != nil {
		return err
	}
	if si.Customer == nil || si.PaymentMethod == nil || event.Account == "" {
		log.Info().Str("event_id", event.ID).Str("setup_intent", si.ID).Msg("SetupIntent without customer or payment method, skipped")
		return nil
	}
	return h.methods.SetDefaultPaymentMethod(ctx, e, event.Account, si.Customer.ID, si.PaymentMethod.ID)
}
