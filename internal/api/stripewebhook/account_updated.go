package stripewebhooks

import (
	"context"

	"coaching-billing/internal/billing/reconcile"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"github.com/stripe/stripe-go/v75"
)

func (h *Handler) handleAccountUpdated(ctx context.Context, e env.Environment, event *stripe.Event) error {
	var acct stripe.Account
	if err := decodeObject(event, &acct); err != nil {
		return err
	}
	if acct.ID == "" {
		acct.ID = event.Account
	}
	if acct.ID == "" {
		return errMalformed
	}

	snap := reconcile.SnapshotFromStatus(stripeinfra.StatusFromAccount(&acct), observedAt(event))
	_, err := h.reconciler.HandleAccountUpdated(ctx, e, snap)
	return err
}

// The event's account header is the connected account that revoked access.
func (h *Handler) handleDeauthorized(ctx context.Context, e env.Environment, event *stripe.Event) error {
	if event.Account == "" {
		return errMalformed
	}
	_, err := h.reconciler.HandleDeauthorized(ctx, e, event.Account, observedAt(event))
	return err
}
