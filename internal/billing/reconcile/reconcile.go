// Package reconcile keeps each tenant's readiness flag in line with what
// Stripe reports, from webhooks (push) and explicit status queries (pull).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"
	"coaching-billing/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DeauthorizedReason = "platform_deauthorized"

type Accounts interface {
	GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error)
	FindTenantBySubAccount(ctx context.Context, subAccountID string, e env.Environment) (*companies.Company, error)
	SetReadyAt(ctx context.Context, tenantID uint, e env.Environment, ready bool, disabledReason string, observedAt time.Time) (bool, error)
	ListConnected(ctx context.Context, e env.Environment) ([]companies.PaymentAccount, error)
}

type StatusSource interface {
	AccountStatus(ctx context.Context, e env.Environment, accountID string) (stripeinfra.AccountStatus, error)
}

// Snapshot is one observation of an account's capability flags.
type Snapshot struct {
	SubAccountID     string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	DisabledReason   string
	ObservedAt       time.Time
}

func (s Snapshot) Ready() bool {
	return stripeinfra.Readiness(s.ChargesEnabled, s.DetailsSubmitted)
}

func SnapshotFromStatus(st stripeinfra.AccountStatus, observedAt time.Time) Snapshot {
	return Snapshot{
		SubAccountID:     st.AccountID,
		ChargesEnabled:   st.ChargesEnabled,
		PayoutsEnabled:   st.PayoutsEnabled,
		DetailsSubmitted: st.DetailsSubmitted,
		DisabledReason:   st.DisabledReason,
		ObservedAt:       observedAt,
	}
}

type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeStale         Outcome = "stale"
	OutcomeUnknownTenant Outcome = "unknown_tenant"
)

type Listener struct {
	accounts Accounts
	status   StatusSource
	now      func() time.Time
}

func New(accounts Accounts, status StatusSource) *Listener {
	return &Listener{
		accounts: accounts,
		status:   status,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleAccountUpdated applies a pushed snapshot. Accounts that no tenant
// owns in e are dropped; they may belong to another deployment.
func (l *Listener) HandleAccountUpdated(ctx context.Context, e env.Environment, snap Snapshot) (Outcome, error) {
	return l.apply(ctx, "push", e, snap)
}

// HandleDeauthorized marks the tenant not ready after it disconnected the
// platform from its Stripe account.
func (l *Listener) HandleDeauthorized(ctx context.Context, e env.Environment, subAccountID string, observedAt time.Time) (Outcome, error) {
	return l.apply(ctx, "push", e, Snapshot{
		SubAccountID:   subAccountID,
		DisabledReason: DeauthorizedReason,
		ObservedAt:     observedAt,
	})
}

func (l *Listener) apply(ctx context.Context, source string, e env.Environment, snap Snapshot) (Outcome, error) {
	logger := log.With().
		Str("source", source).
		Str("env", e.String()).
		Str("sub_account_id", snap.SubAccountID).
		Logger()

	tenant, err := l.accounts.FindTenantBySubAccount(ctx, snap.SubAccountID, e)
	if err != nil {
		metrics.ReadinessUpdatesTotal.WithLabelValues(source, "error").Inc()
		return "", err
	}
	if tenant == nil {
		logger.Info().Msg("No tenant for account; dropping status update")
		metrics.ReadinessUpdatesTotal.WithLabelValues(source, string(OutcomeUnknownTenant)).Inc()
		return OutcomeUnknownTenant, nil
	}
	return l.write(ctx, source, tenant.ID, e, snap)
}

func (l *Listener) write(ctx context.Context, source string, tenantID uint, e env.Environment, snap Snapshot) (Outcome, error) {
	observed := snap.ObservedAt
	if observed.IsZero() {
		observed = l.now()
	}
	ready := snap.Ready()

	applied, err := l.accounts.SetReadyAt(ctx, tenantID, e, ready, snap.DisabledReason, observed)
	if err != nil {
		metrics.ReadinessUpdatesTotal.WithLabelValues(source, "error").Inc()
		return "", err
	}
	outcome := OutcomeApplied
	if !applied {
		outcome = OutcomeStale
	}
	metrics.ReadinessUpdatesTotal.WithLabelValues(source, string(outcome)).Inc()

	log.Info().
		Str("source", source).
		Uint("tenant_id", tenantID).
		Str("env", e.String()).
		Str("sub_account_id", snap.SubAccountID).
		Bool("ready", ready).
		Str("disabled_reason", snap.DisabledReason).
		Str("outcome", string(outcome)).
		Msg("Account readiness reconciled")
	return outcome, nil
}

// RefreshTenant is the pull path: ask Stripe now and store the result.
func (l *Listener) RefreshTenant(ctx context.Context, tenantID uint, e env.Environment) (stripeinfra.AccountStatus, error) {
	acct, err := l.accounts.GetAccount(ctx, tenantID, e)
	if err != nil {
		return stripeinfra.AccountStatus{}, err
	}
	if !acct.Connected() {
		return stripeinfra.AccountStatus{}, registry.ErrNoSubAccount
	}

	observed := l.now()
	st, err := l.status.AccountStatus(ctx, e, acct.SubAccountID)
	if err != nil {
		if errors.Is(err, stripeinfra.ErrAccountNotFound) {
			// The account is gone or no longer ours.
			if _, werr := l.write(ctx, "pull", tenantID, e, Snapshot{
				SubAccountID:   acct.SubAccountID,
				DisabledReason: DeauthorizedReason,
				ObservedAt:     observed,
			}); werr != nil {
				return stripeinfra.AccountStatus{}, werr
			}
		}
		metrics.ReadinessUpdatesTotal.WithLabelValues("pull", "error").Inc()
		return stripeinfra.AccountStatus{}, err
	}

	snap := SnapshotFromStatus(st, observed)
	snap.SubAccountID = acct.SubAccountID
	if _, err := l.write(ctx, "pull", tenantID, e, snap); err != nil {
		return stripeinfra.AccountStatus{}, err
	}
	return st, nil
}

// AccountStatus reads the live capability flags without storing them.
func (l *Listener) AccountStatus(ctx context.Context, subAccountID string, e env.Environment) (stripeinfra.AccountStatus, error) {
	subAccountID = strings.TrimSpace(subAccountID)
	if subAccountID == "" {
		return stripeinfra.AccountStatus{}, registry.ErrNoSubAccount
	}
	return l.status.AccountStatus(ctx, e, subAccountID)
}

type RefreshSummary struct {
	Total     int
	Refreshed int
	Ready     int
	Failed    int
}

// RefreshAll runs the pull path for every connected tenant in e with at most
// concurrency calls in flight. Per-tenant failures are counted, not returned.
func (l *Listener) RefreshAll(ctx context.Context, e env.Environment, concurrency int) (RefreshSummary, error) {
	accounts, err := l.accounts.ListConnected(ctx, e)
	if err != nil {
		return RefreshSummary{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu  sync.Mutex
		sum = RefreshSummary{Total: len(accounts)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, acct := range accounts {
		acct := acct
		g.Go(func() error {
			st, err := l.RefreshTenant(gctx, acct.TenantID, e)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				log.Warn().Err(err).
					Uint("tenant_id", acct.TenantID).
					Str("env", e.String()).
					Str("sub_account_id", acct.SubAccountID).
					Msg("Account refresh failed")
				return nil
			}
			sum.Refreshed++
			if st.Ready() {
				sum.Ready++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, fmt.Errorf("refresh accounts: %w", err)
	}
	return sum, ctx.Err()
}
