package stripewebhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coaching-billing/internal/billing/reconcile"
	"coaching-billing/internal/domain/env"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

type updateCall struct {
	env  env.Environment
	snap reconcile.Snapshot
}

type fakeReconciler struct {
	updates       []updateCall
	deauthorized  []string
	deauthorizeAt []time.Time
	err           error
}

func (f *fakeReconciler) HandleAccountUpdated(_ context.Context, e env.Environment, snap reconcile.Snapshot) (reconcile.Outcome, error) {
	f.updates = append(f.updates, updateCall{env: e, snap: snap})
	return reconcile.OutcomeApplied, f.err
}

func (f *fakeReconciler) HandleDeauthorized(_ context.Context, e env.Environment, sub string, at time.Time) (reconcile.Outcome, error) {
	f.deauthorized = append(f.deauthorized, sub)
	f.deauthorizeAt = append(f.deauthorizeAt, at)
	return reconcile.OutcomeApplied, f.err
}

type fakeMethods struct {
	calls [][4]string
}

func (f *fakeMethods) SetDefaultPaymentMethod(_ context.Context, e env.Environment, sub, cus, pm string) error {
	f.calls = append(f.calls, [4]string{e.String(), sub, cus, pm})
	return nil
}

var secrets = map[env.Environment]string{env.Test: "whsec_test", env.Live: "whsec_live"}

func send(t *testing.T, h *Handler, secret, payload string) *httptest.ResponseRecorder {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.StripeWebhook)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(sp.Payload))
	req.Header.Set("Stripe-Signature", sp.Header)
	r.ServeHTTP(w, req)
	return w
}

const accountUpdated = `{"id":"evt_1","object":"event","type":"account.updated","livemode":true,"created":1767225600,"account":"acct_1",
"data":{"object":{"id":"acct_1","object":"account","charges_enabled":true,"payouts_enabled":false,"details_submitted":true,
"requirements":{"disabled_reason":""}}}}`

func TestAccountUpdatedLiveSecret(t *testing.T) {
	rec := &fakeReconciler{}
	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_live", accountUpdated)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, rec.updates, 1)
	got := rec.updates[0]
	assert.Equal(t, env.Live, got.env)
	assert.Equal(t, "acct_1", got.snap.SubAccountID)
	assert.True(t, got.snap.ChargesEnabled)
	assert.False(t, got.snap.PayoutsEnabled)
	assert.True(t, got.snap.Ready())
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), got.snap.ObservedAt)
}

func TestInvalidSignatureIs400(t *testing.T) {
	rec := &fakeReconciler{}
	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_other", accountUpdated)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.updates)
}

func TestLivemodeMismatchIgnored(t *testing.T) {
	rec := &fakeReconciler{}
	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_test", accountUpdated)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, rec.updates)
}

func TestHandlerErrorIs500(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_live", accountUpdated)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeauthorized(t *testing.T) {
	rec := &fakeReconciler{}
	payload := `{"id":"evt_2","object":"event","type":"account.application.deauthorized","livemode":false,"created":1767225600,"account":"acct_9",
"data":{"object":{"id":"ca_1","object":"application"}}}`

	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_test", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"acct_9"}, rec.deauthorized)
}

func TestSetupIntentSucceeded(t *testing.T) {
	methods := &fakeMethods{}
	payload := `{"id":"evt_3","object":"event","type":"setup_intent.succeeded","livemode":false,"created":1767225600,"account":"acct_1",
"data":{"object":{"id":"seti_1","object":"setup_intent","customer":"cus_1","payment_method":"pm_1","status":"succeeded"}}}`

	w := send(t, NewHandler(secrets, &fakeReconciler{}, methods), "whsec_test", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, [][4]string{{"test", "acct_1", "cus_1", "pm_1"}}, methods.calls)
}

func TestUnknownEventAcknowledged(t *testing.T) {
	rec := &fakeReconciler{}
	payload := `{"id":"evt_4","object":"event","type":"charge.refunded","livemode":false,"data":{"object":{"id":"ch_1","object":"charge"}}}`

	w := send(t, NewHandler(secrets, rec, &fakeMethods{}), "whsec_test", payload)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}
