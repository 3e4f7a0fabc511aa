package stripe

import (
	"errors"

	"coaching-billing/internal/domain/env"

	stripelib "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

var ErrSignature = errors.New("stripe signature verification failed")

// ConstructEvent verifies payload against each configured endpoint secret.
// The environment is whichever secret produced a valid signature.
func ConstructEvent(payload []byte, sigHeader string, secrets map[env.Environment]string) (stripelib.Event, env.Environment, error) {
	for _, e := range env.All() {
		secret := secrets[e]
		if secret == "" {
			continue
		}
		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err == nil {
			return event, e, nil
		}
	}
	return stripelib.Event{}, "", ErrSignature
}
