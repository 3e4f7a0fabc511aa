// Package profiles manages the per-environment customer reference stored on
// a client.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/users"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrNoCustomer     = errors.New("no payment profile on file for environment")
	ErrNotConnected   = errors.New("tenant has no connected account for environment")
	ErrNotClient      = errors.New("user is not a client")
	ErrTenantMismatch = errors.New("client belongs to another tenant")
)

type Accounts interface {
	GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error)
}

type Customers interface {
	CreateCustomer(ctx context.Context, e env.Environment, subAccountID string, in stripeinfra.CustomerInput) (string, error)
	CreateSetupIntent(ctx context.Context, e env.Environment, subAccountID, customerID string, metadata map[string]string) (stripeinfra.SetupIntent, error)
	SetDefaultPaymentMethod(ctx context.Context, e env.Environment, subAccountID, customerID, paymentMethodID string) error
}

type Service struct {
	db        *gorm.DB
	accounts  Accounts
	customers Customers
}

func New(db *gorm.DB, accounts Accounts, customers Customers) *Service {
	return &Service{db: db, accounts: accounts, customers: customers}
}

func (s *Service) loadClient(ctx context.Context, clientID uint) (*users.User, error) {
	var u users.User
	if err := s.db.WithContext(ctx).First(&u, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
		}
		return nil, fmt.Errorf("load client %d: %w", clientID, err)
	}
	return &u, nil
}

// CustomerRef returns the client's customer id for e under subAccountID.
// Blank references, missing ones and those created under another account are
// all ErrNoCustomer.
func (s *Service) CustomerRef(ctx context.Context, clientID uint, e env.Environment, subAccountID string) (string, error) {
	u, err := s.loadClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	ref := u.CustomerRef(e, subAccountID)
	if ref == "" {
		return "", ErrNoCustomer
	}
	return ref, nil
}

// EnsureCustomer returns the client's customer id for e, creating the
// customer under the tenant's account the first time and again after the
// tenant connects a different account.
func (s *Service) EnsureCustomer(ctx context.Context, client *users.User, acct companies.PaymentAccount, e env.Environment) (string, error) {
	if !acct.Connected() {
		return "", ErrNotConnected
	}
	if ref := client.CustomerRef(e, acct.SubAccountID); ref != "" {
		return ref, nil
	}

	cusID, err := s.customers.CreateCustomer(ctx, e, acct.SubAccountID, stripeinfra.CustomerInput{
		Email: client.Email,
		Name:  client.DisplayName(),
		Metadata: map[string]string{
			"client_id": strconv.FormatUint(uint64(client.ID), 10),
			"tenant_id": strconv.FormatUint(uint64(client.CompanyID), 10),
		},
	})
	if err != nil {
		return "", err
	}

	// Overwrite only a reference that is missing or belongs to another
	// account; one stored concurrently under this account wins.
	idCol, accountCol := users.CustomerColumns(e)
	res := s.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", client.ID).
		Where(fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '' OR %s IS NULL OR %s <> ?)", idCol, idCol, accountCol, accountCol), acct.SubAccountID).
		Updates(map[string]interface{}{
			idCol:      cusID,
			accountCol: acct.SubAccountID,
		})
	if res.Error != nil {
		return "", fmt.Errorf("store customer for client %d: %w", client.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		fresh, err := s.loadClient(ctx, client.ID)
		if err != nil {
			return "", err
		}
		log.Warn().
			Uint("client_id", client.ID).
			Str("env", e.String()).
			Str("orphan_customer_id", cusID).
			Msg("Customer created concurrently; discarding duplicate")
		ref := fresh.CustomerRef(e, acct.SubAccountID)
		if ref == "" {
			return "", fmt.Errorf("%w: client %d changed concurrently", ErrNoCustomer, client.ID)
		}
		return ref, nil
	}
	if previous := strings.TrimSpace(storedCustomerID(client, e)); previous != "" {
		log.Info().
			Uint("client_id", client.ID).
			Str("env", e.String()).
			Str("sub_account_id", acct.SubAccountID).
			Str("previous_customer_id", previous).
			Msg("Replaced customer created under a previous account")
	}
	return cusID, nil
}

func storedCustomerID(u *users.User, e env.Environment) string {
	ref := u.StripeTestCustomerID
	if e == env.Live {
		ref = u.StripeLiveCustomerID
	}
	if ref == nil {
		return ""
	}
	return *ref
}

// StartSetup begins the add-payment-method flow for a client and returns
// the SetupIntent the frontend confirms.
func (s *Service) StartSetup(ctx context.Context, tenantID, clientID uint, e env.Environment) (stripeinfra.SetupIntent, error) {
	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return stripeinfra.SetupIntent{}, err
	}
	if client.Role != users.RoleClient {
		return stripeinfra.SetupIntent{}, ErrNotClient
	}
	if client.CompanyID != tenantID {
		return stripeinfra.SetupIntent{}, ErrTenantMismatch
	}

	acct, err := s.accounts.GetAccount(ctx, tenantID, e)
	if err != nil {
		return stripeinfra.SetupIntent{}, err
	}
	cusID, err := s.EnsureCustomer(ctx, client, acct, e)
	if err != nil {
		return stripeinfra.SetupIntent{}, err
	}

	return s.customers.CreateSetupIntent(ctx, e, acct.SubAccountID, cusID, map[string]string{
		"client_id": strconv.FormatUint(uint64(client.ID), 10),
		"tenant_id": strconv.FormatUint(uint64(tenantID), 10),
	})
}

// SetDefaultPaymentMethod makes a freshly saved method the one charges use.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, e env.Environment, subAccountID, customerID, paymentMethodID string) error {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(paymentMethodID) == "" {
		return nil
	}
	return s.customers.SetDefaultPaymentMethod(ctx, e, subAccountID, customerID, paymentMethodID)
}
