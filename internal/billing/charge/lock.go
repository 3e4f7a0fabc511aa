package charge

import (
	"context"
	"errors"
	"fmt"

	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoChargeLock    = errors.New("session has no charge lock")
)

// acquireLock claims the session for one charge attempt. The claim only
// succeeds on an approved, unarchived, unlocked session, so two concurrent
// requests cannot both reach the processor.
func (e *Engine) acquireLock(ctx context.Context, req Request) (string, Result, bool) {
	token := uuid.NewString()
	now := e.now()

	res := e.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND company_id = ? AND status = ? AND archived = ? AND charge_lock IS NULL",
			req.SessionID, req.TenantID, sessions.StatusApproved, false).
		Updates(map[string]interface{}{
			"charge_lock":      token,
			"charge_locked_at": now,
		})
	if res.Error != nil {
		log.Error().Err(res.Error).Str("session_id", req.SessionID).Msg("Acquire charge lock")
		return "", fail(CodeInternal), false
	}
	if res.RowsAffected == 1 {
		return token, Result{}, true
	}

	// Lost the race; report what the winner left behind.
	var sess sessions.Session
	if err := e.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", req.SessionID, req.TenantID).
		First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fail(CodeSessionNotFound), false
		}
		return "", fail(CodeInternal), false
	}
	if r, blocked := sessionBlocked(&sess); blocked {
		return "", r, false
	}
	return "", fail(CodeChargeInProgress), false
}

func (e *Engine) releaseLock(ctx context.Context, sessionID, token string) {
	err := e.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND charge_lock = ?", sessionID, token).
		Updates(map[string]interface{}{
			"charge_lock":      nil,
			"charge_locked_at": nil,
		}).Error
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Release charge lock")
	}
}

// markUnknown keeps the lock and flags it so nobody retries before the
// processor side has been checked by hand.
func (e *Engine) markUnknown(ctx context.Context, en env.Environment, sessionID, token string) {
	metrics.ChargeOutcomesUnknown.WithLabelValues(en.String()).Inc()
	err := e.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND charge_lock = ?", sessionID, token).
		Update("charge_outcome_unknown", true).Error
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Flag unknown charge outcome")
	}
}

// ClearChargeLock releases a held lock after an operator has verified the
// processor side. Use lifecycle actions afterwards to correct the status.
func (e *Engine) ClearChargeLock(ctx context.Context, tenantID uint, sessionID string) (*sessions.Session, error) {
	var sess sessions.Session
	if err := e.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", sessionID, tenantID).
		First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.ChargeLock == nil {
		return nil, ErrNoChargeLock
	}

	res := e.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND charge_lock = ?", sess.ID, *sess.ChargeLock).
		Updates(map[string]interface{}{
			"charge_lock":            nil,
			"charge_locked_at":       nil,
			"charge_outcome_unknown": false,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("clear charge lock on %s: %w", sess.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoChargeLock
	}

	log.Warn().
		Uint("tenant_id", tenantID).
		Str("session_id", sess.ID).
		Bool("outcome_was_unknown", sess.ChargeOutcomeUnknown).
		Msg("Charge lock cleared manually")

	sess.ChargeLock = nil
	sess.ChargeLockedAt = nil
	sess.ChargeOutcomeUnknown = false
	return &sess, nil
}
