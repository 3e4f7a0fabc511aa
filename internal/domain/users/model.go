package users

import (
	"strings"
	"time"

	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
)

// Role constants (single source of truth)
const (
	RoleAdmin   = "admin"
	RoleCoach   = "coach"
	RoleClient  = "client"
	RoleBilling = "billing"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCoach, RoleClient, RoleBilling:
		return true
	}
	return false
}

type User struct {
	ID           uint `gorm:"primaryKey"`
	CompanyID    uint `gorm:"not null;index:idx_users_company_role,priority:1"`
	Company      companies.Company
	Name         string
	Lastname     string
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string `gorm:""`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub"`
	Role         string  `gorm:"not null;index:idx_users_company_role,priority:2"`

	// Customer records live under the company's connected account, one per
	// environment, and are only valid under the account that created them.
	// Only meaningful for clients.
	StripeTestCustomerID        *string `gorm:"column:stripe_test_customer_id"`
	StripeTestCustomerAccountID *string `gorm:"column:stripe_test_customer_account_id"`
	StripeLiveCustomerID        *string `gorm:"column:stripe_live_customer_id"`
	StripeLiveCustomerAccountID *string `gorm:"column:stripe_live_customer_account_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.Name + " " + u.Lastname)
}

// CustomerRef returns the trimmed customer id for e when it was created under
// subAccountID; "" when absent or owned by another account.
func (u *User) CustomerRef(e env.Environment, subAccountID string) string {
	ref, owner := u.StripeTestCustomerID, u.StripeTestCustomerAccountID
	if e == env.Live {
		ref, owner = u.StripeLiveCustomerID, u.StripeLiveCustomerAccountID
	}
	subAccountID = strings.TrimSpace(subAccountID)
	if subAccountID == "" || trimPtr(owner) != subAccountID {
		return ""
	}
	return trimPtr(ref)
}

// CustomerColumns names the customer id column for e and the column holding
// the account it was created under.
func CustomerColumns(e env.Environment) (id, account string) {
	prefix := "stripe_" + e.String() + "_customer_"
	return prefix + "id", prefix + "account_id"
}

func trimPtr(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
