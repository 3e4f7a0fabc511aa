package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coaching-billing/internal/domain/env"

	stripelib "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

var (
	ErrEnvNotConfigured = errors.New("stripe keys not configured for environment")
	ErrCustomerNotFound = errors.New("stripe customer not found")
	ErrAccountNotFound  = errors.New("stripe account not found")
	// ErrTransient marks errors where Stripe definitely did not act on the
	// request (rate limiting). Anything else on a charge is an unknown outcome.
	ErrTransient = errors.New("stripe temporarily unavailable")
)

// Client holds one Stripe API per environment. Calls never mix keys: the
// environment picks the API, the sub-account picks the Stripe-Account header.
type Client struct {
	apis map[env.Environment]*client.API
}

// NewClient builds env-scoped APIs. Empty keys leave the environment
// unconfigured. Network retries are disabled so a charge is a single attempt.
func NewClient(keys map[env.Environment]string, timeout time.Duration) *Client {
	return newClient(keys, timeout, "")
}

func newClient(keys map[env.Environment]string, timeout time.Duration, baseURL string) *Client {
	c := &Client{apis: map[env.Environment]*client.API{}}
	for e, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		c.apis[e] = client.New(key, backends(timeout, baseURL))
	}
	return c
}

func backends(timeout time.Duration, baseURL string) *stripelib.Backends {
	httpClient := &http.Client{Timeout: timeout}
	cfg := func() *stripelib.BackendConfig {
		bc := &stripelib.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripelib.Int64(0),
			LeveledLogger:     &stripelib.LeveledLogger{Level: stripelib.LevelError},
		}
		if baseURL != "" {
			bc.URL = stripelib.String(baseURL)
		}
		return bc
	}
	return &stripelib.Backends{
		API:     stripelib.GetBackendWithConfig(stripelib.APIBackend, cfg()),
		Connect: stripelib.GetBackendWithConfig(stripelib.ConnectBackend, cfg()),
		Uploads: stripelib.GetBackendWithConfig(stripelib.UploadsBackend, cfg()),
	}
}

func (c *Client) api(e env.Environment) (*client.API, error) {
	api, ok := c.apis[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEnvNotConfigured, e)
	}
	return api, nil
}

// Configured reports whether e has a key.
func (c *Client) Configured(e env.Environment) bool {
	_, ok := c.apis[e]
	return ok
}

// AccountStatus retrieves the connected account's capability flags.
func (c *Client) AccountStatus(ctx context.Context, e env.Environment, accountID string) (AccountStatus, error) {
	api, err := c.api(e)
	if err != nil {
		return AccountStatus{}, err
	}
	params := &stripelib.AccountParams{}
	params.Context = ctx

	acct, err := api.Accounts.GetByID(accountID, params)
	if err != nil {
		if isResourceMissing(err) {
			return AccountStatus{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return AccountStatus{}, fmt.Errorf("retrieve account %s: %w", accountID, err)
	}
	return StatusFromAccount(acct), nil
}

// StatusFromAccount maps an account object, from the API or a webhook payload.
func StatusFromAccount(acct *stripelib.Account) AccountStatus {
	if acct == nil {
		return AccountStatus{}
	}
	st := AccountStatus{
		AccountID:        acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.Requirements != nil {
		reason := string(acct.Requirements.DisabledReason)
		st.DisabledReason = NormalizeDisabledReason(&reason)
	}
	return st
}

func isResourceMissing(err error) bool {
	var se *stripelib.Error
	if errors.As(err, &se) {
		return se.Code == stripelib.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound
	}
	return false
}
