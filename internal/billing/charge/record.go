package charge

import (
	"context"
	"errors"

	"coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/sessions"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errLockLost = errors.New("charge lock no longer held")

func (e *Engine) newRecord(req Request, p *prepared, outcome, attemptID string, amount int64, currency string) *billing.BillingRecord {
	s := p.session
	return &billing.BillingRecord{
		SessionID:        s.ID,
		PaymentAttemptID: attemptID,
		CompanyID:        req.TenantID,
		ClientID:         s.ClientID,
		ClientName:       s.ClientName,
		ClientEmail:      s.ClientEmail,
		CoachID:          s.CoachID,
		CoachName:        s.CoachName,
		ServiceType:      s.ServiceType,
		Amount:           amount,
		Currency:         currency,
		Env:              req.Env.String(),
		SubAccountID:     p.account.SubAccountID,
		Outcome:          outcome,
		Metadata: datatypes.JSONMap{
			"price_id":    p.price.ID,
			"product_id":  p.price.ProductID,
			"customer_id": p.customerID,
		},
	}
}

// recordSuccess moves the session to billed and appends the audit row in
// one transaction. The status write is conditional on our lock.
func (e *Engine) recordSuccess(ctx context.Context, req Request, p *prepared, token, attemptID string, amount int64, currency string) error {
	now := e.now()
	rec := e.newRecord(req, p, billing.OutcomeSucceeded, attemptID, amount, currency)

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sessions.Session{}).
			Where("id = ? AND status = ? AND charge_lock = ?", p.session.ID, sessions.StatusApproved, token).
			Updates(map[string]interface{}{
				"status":                 sessions.StatusBilled,
				"billed_at":              now,
				"payment_attempt_id":     attemptID,
				"amount_charged":         amount,
				"currency":               currency,
				"charge_lock":            nil,
				"charge_locked_at":       nil,
				"charge_outcome_unknown": false,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errLockLost
		}
		return tx.Create(rec).Error
	})
}

// recordFailure appends the failed attempt and releases the lock together.
func (e *Engine) recordFailure(ctx context.Context, req Request, p *prepared, token string, out stripeinfra.ChargeOutcome) error {
	amount, currency := out.Amount, out.Currency
	if amount == 0 {
		amount = p.price.UnitAmount
	}
	if currency == "" {
		currency = p.price.Currency
	}
	rec := e.newRecord(req, p, billing.OutcomeFailed, out.PaymentIntentID, amount, currency)
	rec.FailureCode = out.FailureCode
	rec.FailureReason = out.FailureMessage
	if rec.FailureReason == "" {
		rec.FailureReason = string(out.Status)
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		res := tx.Model(&sessions.Session{}).
			Where("id = ? AND charge_lock = ?", p.session.ID, token).
			Updates(map[string]interface{}{
				"charge_lock":      nil,
				"charge_locked_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errLockLost
		}
		return nil
	})
}
