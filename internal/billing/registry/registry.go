// Package registry stores each tenant's connected payment account state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrNoSubAccount     = errors.New("no connected account on file for environment")
	ErrInvalidEnv       = errors.New("invalid environment")
	ErrConcurrentChange = errors.New("concurrent account change")
)

const maxMergeAttempts = 3

type Registry struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) load(ctx context.Context, tenantID uint) (*companies.Company, error) {
	var c companies.Company
	if err := r.db.WithContext(ctx).First(&c, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrTenantNotFound, tenantID)
		}
		return nil, fmt.Errorf("load tenant %d: %w", tenantID, err)
	}
	return &c, nil
}

// GetAccount returns the tenant's account for e. A tenant that never
// connected gets an empty SubAccountID, not an error.
func (r *Registry) GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error) {
	if !e.Valid() {
		return companies.PaymentAccount{}, ErrInvalidEnv
	}
	c, err := r.load(ctx, tenantID)
	if err != nil {
		return companies.PaymentAccount{}, err
	}
	return c.Account(e), nil
}

// SetSubAccount records the connected account id. Connecting a different
// account resets readiness until the new account reports its capabilities.
func (r *Registry) SetSubAccount(ctx context.Context, tenantID uint, e env.Environment, subAccountID string) error {
	if !e.Valid() {
		return ErrInvalidEnv
	}
	subAccountID = strings.TrimSpace(subAccountID)
	if subAccountID == "" {
		return fmt.Errorf("%w: empty account id", ErrNoSubAccount)
	}
	cols := companies.ColumnsFor(e)

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		c, err := r.load(ctx, tenantID)
		if err != nil {
			return err
		}
		current := c.Account(e).SubAccountID
		if current == subAccountID {
			return nil
		}

		updates := map[string]interface{}{cols.AccountID: subAccountID}
		if current != "" {
			updates[cols.Ready] = false
			updates[cols.DisabledReason] = ""
			updates[cols.ObservedAt] = nil
		}

		// Write only over the id we read; a concurrent connect makes us re-read.
		q := r.db.WithContext(ctx).Model(&companies.Company{}).Where("id = ?", tenantID)
		if current == "" {
			q = q.Where(fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '')", cols.AccountID, cols.AccountID))
		} else {
			q = q.Where(cols.AccountID+" = ?", current)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("set account for tenant %d: %w", tenantID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		if current != "" {
			log.Warn().
				Uint("tenant_id", tenantID).
				Str("env", e.String()).
				Str("previous_account", current).
				Str("sub_account_id", subAccountID).
				Msg("Tenant reconnected a different Stripe account")
		}
		return nil
	}
	return fmt.Errorf("%w: tenant %d account changed concurrently", ErrConcurrentChange, tenantID)
}

// SetReady writes readiness as observed now. A stored disabled reason is
// kept when marking not ready and cleared when marking ready.
func (r *Registry) SetReady(ctx context.Context, tenantID uint, e env.Environment, ready bool) error {
	var reason *string
	if ready {
		empty := ""
		reason = &empty
	}
	_, err := r.setReady(ctx, tenantID, e, ready, reason, time.Now().UTC())
	return err
}

// SetReadyAt writes readiness observed at observedAt. Observations older than
// the last applied one are skipped (applied=false) so a late webhook cannot
// overwrite a fresher pull. Readiness can only be true with an account on file.
func (r *Registry) SetReadyAt(ctx context.Context, tenantID uint, e env.Environment, ready bool, disabledReason string, observedAt time.Time) (bool, error) {
	reason := strings.TrimSpace(disabledReason)
	return r.setReady(ctx, tenantID, e, ready, &reason, observedAt)
}

// setReady leaves the disabled reason untouched when reason is nil.
func (r *Registry) setReady(ctx context.Context, tenantID uint, e env.Environment, ready bool, reason *string, observedAt time.Time) (bool, error) {
	if !e.Valid() {
		return false, ErrInvalidEnv
	}
	cols := companies.ColumnsFor(e)
	observedAt = observedAt.UTC()

	q := r.db.WithContext(ctx).Model(&companies.Company{}).
		Where("id = ?", tenantID).
		Where(fmt.Sprintf("(%s IS NULL OR %s <= ?)", cols.ObservedAt, cols.ObservedAt), observedAt)
	if ready {
		q = q.Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", cols.AccountID, cols.AccountID))
	}

	updates := map[string]interface{}{
		cols.Ready:      ready,
		cols.ObservedAt: observedAt,
	}
	if reason != nil {
		updates[cols.DisabledReason] = *reason
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("set readiness for tenant %d: %w", tenantID, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Nothing matched: work out which guard stopped the write.
	c, err := r.load(ctx, tenantID)
	if err != nil {
		return false, err
	}
	acct := c.Account(e)
	if ready && !acct.Connected() {
		log.Warn().
			Uint("tenant_id", tenantID).
			Str("env", e.String()).
			Msg("Refusing to mark tenant ready without a connected account")
		return false, ErrNoSubAccount
	}
	log.Info().
		Uint("tenant_id", tenantID).
		Str("env", e.String()).
		Time("observed_at", observedAt).
		Msg("Skipping stale readiness observation")
	return false, nil
}

// FindTenantBySubAccount returns the tenant whose account for e is
// subAccountID, or nil when none matches.
func (r *Registry) FindTenantBySubAccount(ctx context.Context, subAccountID string, e env.Environment) (*companies.Company, error) {
	if !e.Valid() {
		return nil, ErrInvalidEnv
	}
	subAccountID = strings.TrimSpace(subAccountID)
	if subAccountID == "" {
		return nil, nil
	}
	cols := companies.ColumnsFor(e)

	var c companies.Company
	err := r.db.WithContext(ctx).
		Where(cols.AccountID+" = ?", subAccountID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant by account %s: %w", subAccountID, err)
	}
	return &c, nil
}

// ListConnected returns every tenant with an account for e.
func (r *Registry) ListConnected(ctx context.Context, e env.Environment) ([]companies.PaymentAccount, error) {
	if !e.Valid() {
		return nil, ErrInvalidEnv
	}
	cols := companies.ColumnsFor(e)

	var list []companies.Company
	if err := r.db.WithContext(ctx).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", cols.AccountID, cols.AccountID)).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list connected tenants: %w", err)
	}

	out := make([]companies.PaymentAccount, 0, len(list))
	for i := range list {
		out = append(out, list[i].Account(e))
	}
	return out, nil
}
