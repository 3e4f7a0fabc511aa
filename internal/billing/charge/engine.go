// Package charge executes one payment attempt for an approved session and
// records its outcome.
package charge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coaching-billing/internal/billing/pricing"
	"coaching-billing/internal/billing/profiles"
	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/sessions"
	stripeinfra "coaching-billing/internal/infra/stripe"
	"coaching-billing/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Accounts interface {
	GetAccount(ctx context.Context, tenantID uint, e env.Environment) (companies.PaymentAccount, error)
}

type Processor interface {
	AccountStatus(ctx context.Context, e env.Environment, accountID string) (stripeinfra.AccountStatus, error)
	Customer(ctx context.Context, e env.Environment, subAccountID, customerID string) (stripeinfra.Customer, error)
	Charge(ctx context.Context, e env.Environment, req stripeinfra.ChargeRequest) (stripeinfra.ChargeOutcome, error)
}

type Prices interface {
	FindPrice(ctx context.Context, subAccountID string, e env.Environment, label string) (pricing.Price, error)
}

type Profiles interface {
	CustomerRef(ctx context.Context, clientID uint, e env.Environment, subAccountID string) (string, error)
}

// Writes after the processor call run detached from the request so a caller
// hanging up cannot leave a confirmed charge unrecorded.
const writeTimeout = 15 * time.Second

type Engine struct {
	db        *gorm.DB
	accounts  Accounts
	processor Processor
	prices    Prices
	profiles  Profiles
	now       func() time.Time
}

func New(db *gorm.DB, accounts Accounts, processor Processor, prices Prices, profiles Profiles) *Engine {
	return &Engine{
		db:        db,
		accounts:  accounts,
		processor: processor,
		prices:    prices,
		profiles:  profiles,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// prepared is everything resolved by the preconditions.
type prepared struct {
	session    *sessions.Session
	account    companies.PaymentAccount
	customerID string
	methodID   string
	price      pricing.Price
}

// ChargeSession charges an approved session at most once. It never returns
// an error: every outcome is a Result with a Code.
func (e *Engine) ChargeSession(ctx context.Context, req Request) Result {
	start := time.Now()
	res := e.chargeSession(ctx, req)

	code := res.Code
	if res.Success {
		code = CodeSucceeded
	}
	metrics.ChargesTotal.WithLabelValues(req.Env.String(), string(code)).Inc()
	metrics.ChargeDuration.WithLabelValues(req.Env.String()).Observe(time.Since(start).Seconds())
	return res
}

func (e *Engine) chargeSession(ctx context.Context, req Request) Result {
	if !req.Env.Valid() {
		return fail(CodeInvalidEnv)
	}
	logger := log.With().
		Str("session_id", req.SessionID).
		Uint("tenant_id", req.TenantID).
		Str("env", req.Env.String()).
		Logger()

	p, res := e.checkPreconditions(ctx, req)
	if p == nil {
		logger.Info().Str("code", string(res.Code)).Msg("Charge rejected")
		return res
	}
	logger = logger.With().Str("sub_account_id", p.account.SubAccountID).Logger()

	token, res, ok := e.acquireLock(ctx, req)
	if !ok {
		logger.Info().Str("code", string(res.Code)).Msg("Charge lock not acquired")
		return res
	}

	out, err := e.processor.Charge(ctx, req.Env, stripeinfra.ChargeRequest{
		SubAccountID:    p.account.SubAccountID,
		CustomerID:      p.customerID,
		PaymentMethodID: p.methodID,
		Amount:          p.price.UnitAmount,
		Currency:        p.price.Currency,
		Description:     fmt.Sprintf("%s session with %s", p.session.ServiceType, p.session.CoachName),
		IdempotencyKey:  "session-charge-" + p.session.ID + "-" + token,
		Metadata: map[string]string{
			"session_id":   p.session.ID,
			"tenant_id":    strconv.FormatUint(uint64(req.TenantID), 10),
			"client_id":    strconv.FormatUint(uint64(p.session.ClientID), 10),
			"coach_id":     strconv.FormatUint(uint64(p.session.CoachID), 10),
			"service_type": p.session.ServiceType,
			"price_id":     p.price.ID,
			"env":          req.Env.String(),
		},
	})

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err != nil {
		if errors.Is(err, stripeinfra.ErrTransient) || errors.Is(err, stripeinfra.ErrEnvNotConfigured) {
			// nothing reached the processor
			logger.Warn().Err(err).Msg("Charge not attempted")
			e.releaseLock(wctx, p.session.ID, token)
			return fail(CodeProcessorUnavailable)
		}
		logger.Error().Err(err).Msg("Charge outcome unknown; session stays locked")
		e.markUnknown(wctx, req.Env, p.session.ID, token)
		return fail(CodeOutcomeUnknown)
	}

	logger = logger.With().Str("payment_attempt_id", out.PaymentIntentID).Logger()

	switch out.Status {
	case stripeinfra.ChargeSucceeded:
		amount, currency := out.Amount, out.Currency
		if amount == 0 {
			amount = p.price.UnitAmount
		}
		if currency == "" {
			currency = p.price.Currency
		}
		if err := e.recordSuccess(wctx, req, p, token, out.PaymentIntentID, amount, currency); err != nil {
			logger.WithLevel(zerolog.FatalLevel).Err(err).
				Int64("amount", amount).
				Str("currency", currency).
				Msg("Charge succeeded but could not be recorded; manual reconciliation required")
			e.markUnknown(wctx, req.Env, p.session.ID, token)
			return Result{
				PaymentAttemptID: out.PaymentIntentID,
				AmountCharged:    amount,
				Currency:         currency,
				Code:             CodeReconciliationRequired,
				Error:            CodeReconciliationRequired.Message(),
			}
		}
		logger.Info().Int64("amount", amount).Str("currency", currency).Msg("Session charged")
		return Result{
			Success:          true,
			PaymentAttemptID: out.PaymentIntentID,
			AmountCharged:    amount,
			Currency:         currency,
		}

	case stripeinfra.ChargeProcessing:
		logger.Warn().Msg("Charge still processing; session stays locked")
		e.markUnknown(wctx, req.Env, p.session.ID, token)
		res := fail(CodeOutcomeUnknown)
		res.PaymentAttemptID = out.PaymentIntentID
		return res

	default:
		code := CodePaymentFailed
		switch out.Status {
		case stripeinfra.ChargeRequiresAction:
			code = CodeActionRequired
		case stripeinfra.ChargeDeclined:
			code = CodeDeclined
		}
		if err := e.recordFailure(wctx, req, p, token, out); err != nil {
			logger.Error().Err(err).Msg("Failed charge could not be recorded")
			e.releaseLock(wctx, p.session.ID, token)
			return fail(CodeInternal)
		}
		logger.Info().
			Str("code", string(code)).
			Str("failure_code", out.FailureCode).
			Msg("Charge failed")
		res := failWith(code, out.FailureMessage)
		res.PaymentAttemptID = out.PaymentIntentID
		return res
	}
}

// checkPreconditions runs the checks in order, cheapest first, and stops at
// the first failure. Only the live re-check, the customer lookup and the
// price lookup reach the processor.
func (e *Engine) checkPreconditions(ctx context.Context, req Request) (*prepared, Result) {
	var sess sessions.Session
	err := e.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", req.SessionID, req.TenantID).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(CodeSessionNotFound)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("Load session for charge")
		return nil, fail(CodeInternal)
	}
	if r, blocked := sessionBlocked(&sess); blocked {
		return nil, r
	}

	acct, err := e.accounts.GetAccount(ctx, req.TenantID, req.Env)
	if err != nil {
		if errors.Is(err, registry.ErrTenantNotFound) {
			return nil, fail(CodeTenantNotFound)
		}
		log.Error().Err(err).Uint("tenant_id", req.TenantID).Msg("Load tenant account for charge")
		return nil, fail(CodeInternal)
	}
	if !acct.Connected() || !acct.Ready {
		return nil, fail(CodeAccountNotReady)
	}

	// The stored flag is advisory; live money needs a fresh look.
	if req.Env == env.Live {
		st, err := e.processor.AccountStatus(ctx, req.Env, acct.SubAccountID)
		if err != nil {
			if errors.Is(err, stripeinfra.ErrAccountNotFound) {
				return nil, fail(CodeAccountDisabled)
			}
			log.Warn().Err(err).Str("sub_account_id", acct.SubAccountID).Msg("Live account re-check failed")
			return nil, fail(CodeProcessorUnavailable)
		}
		if !st.Ready() || st.DisabledReason != "" {
			log.Warn().
				Str("sub_account_id", acct.SubAccountID).
				Str("disabled_reason", st.DisabledReason).
				Bool("charges_enabled", st.ChargesEnabled).
				Msg("Live account not chargeable despite stored readiness")
			return nil, failWith(CodeAccountDisabled, disabledMessage(st.DisabledReason))
		}
	}

	cusID, err := e.profiles.CustomerRef(ctx, sess.ClientID, req.Env, acct.SubAccountID)
	if err != nil {
		if errors.Is(err, profiles.ErrNoCustomer) || errors.Is(err, profiles.ErrClientNotFound) {
			return nil, fail(CodeNoPaymentProfile)
		}
		log.Error().Err(err).Uint("client_id", sess.ClientID).Msg("Load payment profile")
		return nil, fail(CodeInternal)
	}

	cus, err := e.processor.Customer(ctx, req.Env, acct.SubAccountID, cusID)
	if err != nil {
		if errors.Is(err, stripeinfra.ErrCustomerNotFound) {
			return nil, fail(CodeCustomerUnavail)
		}
		log.Warn().Err(err).Str("customer_id", cusID).Msg("Retrieve customer failed")
		return nil, fail(CodeProcessorUnavailable)
	}
	if cus.Deleted {
		return nil, fail(CodeCustomerUnavail)
	}
	if cus.DefaultPaymentMethodID == "" {
		return nil, fail(CodeNoPaymentMethod)
	}

	price, err := e.prices.FindPrice(ctx, acct.SubAccountID, req.Env, sess.ServiceType)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrNoProduct):
			return nil, fail(CodeNoPrice)
		case errors.Is(err, pricing.ErrNoActivePrice):
			return nil, fail(CodeNoActivePrice)
		}
		log.Warn().Err(err).Str("service_type", sess.ServiceType).Msg("Price lookup failed")
		return nil, fail(CodeProcessorUnavailable)
	}

	return &prepared{
		session:    &sess,
		account:    acct,
		customerID: cusID,
		methodID:   cus.DefaultPaymentMethodID,
		price:      price,
	}, Result{}
}

func sessionBlocked(s *sessions.Session) (Result, bool) {
	switch {
	case s.Status != sessions.StatusApproved:
		return failWith(CodeSessionNotApproved, fmt.Sprintf("Only approved sessions can be charged; this session is %s.", s.Status)), true
	case s.Archived:
		return fail(CodeSessionArchived), true
	case s.ChargeLock != nil && s.ChargeOutcomeUnknown:
		return fail(CodeOutcomeUnknown), true
	case s.ChargeLock != nil:
		return fail(CodeChargeInProgress), true
	}
	return Result{}, false
}

func disabledMessage(reason string) string {
	if reason == "" {
		return CodeAccountDisabled.Message()
	}
	return CodeAccountDisabled.Message() + " Reason: " + reason + "."
}
