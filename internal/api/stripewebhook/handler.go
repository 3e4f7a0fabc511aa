package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"coaching-billing/internal/billing/reconcile"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"
	"coaching-billing/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v75"
)

const maxBodyBytes = 65536

var errMalformed = errors.New("malformed event object")

type Reconciler interface {
	HandleAccountUpdated(ctx context.Context, e env.Environment, snap reconcile.Snapshot) (reconcile.Outcome, error)
	HandleDeauthorized(ctx context.Context, e env.Environment, subAccountID string, observedAt time.Time) (reconcile.Outcome, error)
}

type PaymentMethods interface {
	SetDefaultPaymentMethod(ctx context.Context, e env.Environment, subAccountID, customerID, paymentMethodID string) error
}

type Handler struct {
	secrets    map[env.Environment]string
	reconciler Reconciler
	methods    PaymentMethods
}

// NewHandler takes one endpoint secret per environment; the secret that
// verifies a delivery decides which environment it belongs to.
func NewHandler(secrets map[env.Environment]string, reconciler Reconciler, methods PaymentMethods) *Handler {
	return &Handler{secrets: secrets, reconciler: reconciler, methods: methods}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, e, err := stripeinfra.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.secrets)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		log.Warn().Err(err).Msg("Stripe webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	eventType := string(event.Type)
	logger := log.With().
		Str("event_id", event.ID).
		Str("event_type", eventType).
		Str("env", e.String()).
		Str("sub_account_id", event.Account).
		Logger()

	if env.FromLivemode(event.Livemode) != e {
		// signed with one environment's secret but carrying the other's data
		logger.Warn().Bool("livemode", event.Livemode).Msg("Stripe webhook environment mismatch, ignored")
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := c.Request.Context()
	switch eventType {
	case "account.updated":
		err = h.handleAccountUpdated(ctx, e, &event)
	case "account.application.deauthorized":
		err = h.handleDeauthorized(ctx, e, &event)
	case "setup_intent.succeeded":
		err = h.handleSetupIntentSucceeded(ctx, e, &event)
	default:
		// Acknowledge unknown events to avoid retries
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if errors.Is(err, errMalformed) {
		logger.Error().Err(err).Msg("Stripe webhook payload could not be parsed")
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// 5xx so Stripe retries the delivery
		logger.Error().Err(err).Msg("Stripe webhook handler failed")
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	metrics.WebhookRequestsTotal.WithLabelValues(eventType, "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}

func decodeObject(event *stripe.Event, v interface{}) error {
	if event.Data == nil {
		return errMalformed
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return errors.Join(errMalformed, err)
	}
	return nil
}

func observedAt(event *stripe.Event) time.Time {
	if event.Created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(event.Created, 0).UTC()
}
