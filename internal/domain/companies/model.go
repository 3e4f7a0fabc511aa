package companies

import (
	"strings"
	"time"

	"coaching-billing/internal/domain/env"
)

// Company is a tenant. Its connected Stripe account state is stored inline,
// one column group per environment, so that each flow can merge a single
// field without rewriting the row.
type Company struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null"`

	StripeTestAccountID      *string    `gorm:"column:stripe_test_account_id;index"`
	StripeTestReady          bool       `gorm:"column:stripe_test_ready;not null;default:false"`
	StripeTestDisabledReason string     `gorm:"column:stripe_test_disabled_reason;not null;default:''"`
	StripeTestObservedAt     *time.Time `gorm:"column:stripe_test_observed_at"`

	StripeLiveAccountID      *string    `gorm:"column:stripe_live_account_id;index"`
	StripeLiveReady          bool       `gorm:"column:stripe_live_ready;not null;default:false"`
	StripeLiveDisabledReason string     `gorm:"column:stripe_live_disabled_reason;not null;default:''"`
	StripeLiveObservedAt     *time.Time `gorm:"column:stripe_live_observed_at"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentAccount is the per-environment view of a company's connected account.
type PaymentAccount struct {
	TenantID       uint       `json:"tenantId"`
	Env            string     `json:"env"`
	SubAccountID   string     `json:"subAccountId,omitempty"`
	Ready          bool       `json:"ready"`
	DisabledReason string     `json:"disabledReason,omitempty"`
	ObservedAt     *time.Time `json:"observedAt,omitempty"`
}

func (a PaymentAccount) Connected() bool {
	return a.SubAccountID != ""
}

// Account projects the columns for e.
func (c *Company) Account(e env.Environment) PaymentAccount {
	acct := PaymentAccount{TenantID: c.ID, Env: e.String()}
	switch e {
	case env.Live:
		acct.SubAccountID = trimPtr(c.StripeLiveAccountID)
		acct.Ready = c.StripeLiveReady
		acct.DisabledReason = c.StripeLiveDisabledReason
		acct.ObservedAt = c.StripeLiveObservedAt
	default:
		acct.SubAccountID = trimPtr(c.StripeTestAccountID)
		acct.Ready = c.StripeTestReady
		acct.DisabledReason = c.StripeTestDisabledReason
		acct.ObservedAt = c.StripeTestObservedAt
	}
	return acct
}

// AccountColumns names the columns backing an environment.
type AccountColumns struct {
	AccountID      string
	Ready          string
	DisabledReason string
	ObservedAt     string
}

func ColumnsFor(e env.Environment) AccountColumns {
	prefix := "stripe_" + e.String() + "_"
	return AccountColumns{
		AccountID:      prefix + "account_id",
		Ready:          prefix + "ready",
		DisabledReason: prefix + "disabled_reason",
		ObservedAt:     prefix + "observed_at",
	}
}

func trimPtr(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
