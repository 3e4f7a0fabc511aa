// Package lifecycle persists session review decisions. Every status change
// is a conditional update on the status it was computed from.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrChargeInProgress   = errors.New("a charge is in progress for this session")
	ErrConcurrentChange   = errors.New("session changed concurrently")
	ErrInvalidParticipant = errors.New("invalid coach or client for tenant")
	ErrInvalidSession     = errors.New("invalid session")
)

type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateInput struct {
	TenantID     uint
	CoachID      uint
	ClientID     uint
	ScheduledAt  time.Time
	ServiceType  string
	Notes        string
	Summary      *string
	RecordingURL *string
}

// Create logs a session in under_review. Coach and client must both belong
// to the tenant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*sessions.Session, error) {
	in.ServiceType = strings.TrimSpace(in.ServiceType)
	if in.ServiceType == "" {
		return nil, fmt.Errorf("%w: service type is required", ErrInvalidSession)
	}
	if in.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled time is required", ErrInvalidSession)
	}

	coach, err := s.member(ctx, in.TenantID, in.CoachID, users.RoleCoach)
	if err != nil {
		return nil, err
	}
	client, err := s.member(ctx, in.TenantID, in.ClientID, users.RoleClient)
	if err != nil {
		return nil, err
	}

	sess := &sessions.Session{
		CompanyID:    in.TenantID,
		CoachID:      coach.ID,
		CoachName:    coach.DisplayName(),
		ClientID:     client.ID,
		ClientName:   client.DisplayName(),
		ClientEmail:  client.Email,
		ScheduledAt:  in.ScheduledAt.UTC(),
		ServiceType:  in.ServiceType,
		Notes:        in.Notes,
		Summary:      in.Summary,
		RecordingURL: in.RecordingURL,
		Status:       sessions.StatusUnderReview,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) member(ctx context.Context, tenantID, userID uint, role string) (*users.User, error) {
	var u users.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ? AND role = ?", userID, tenantID, role).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no %s %d", ErrInvalidParticipant, role, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", role, userID, err)
	}
	return &u, nil
}

// Get loads a session scoped to its tenant.
func (s *Service) Get(ctx context.Context, tenantID uint, sessionID string) (*sessions.Session, error) {
	var sess sessions.Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", sessionID, tenantID).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return &sess, nil
}

type Filter struct {
	Status          sessions.Status
	ClientID        uint
	CoachID         uint
	IncludeArchived bool
}

func (s *Service) List(ctx context.Context, tenantID uint, f Filter) ([]sessions.Session, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", tenantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.CoachID != 0 {
		q = q.Where("coach_id = ?", f.CoachID)
	}
	if !f.IncludeArchived {
		q = q.Where("archived = ?", false)
	}

	var list []sessions.Session
	if err := q.Order("scheduled_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// ReviewQueue is what an admin still has to decide on, oldest first.
func (s *Service) ReviewQueue(ctx context.Context, tenantID uint) ([]sessions.Session, error) {
	var list []sessions.Session
	if err := s.db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND archived = ?", tenantID, sessions.StatusUnderReview, false).
		Order("scheduled_at ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("review queue: %w", err)
	}
	return list, nil
}

// Apply performs a review action requested by role. Billing is not an
// action here; it only happens through a confirmed charge.
func (s *Service) Apply(ctx context.Context, tenantID uint, sessionID string, action sessions.Action, role string) (*sessions.Session, error) {
	if !sessions.CanPerform(role, action) {
		return nil, fmt.Errorf("%w: %s cannot %s", sessions.ErrNotPermitted, role, action)
	}

	sess, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ChargeLock != nil {
		return nil, ErrChargeInProgress
	}
	next, err := sessions.Transition(sess.Status, action)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": next}
	if action == sessions.ActionUndoBill {
		updates["billed_at"] = nil
		updates["payment_attempt_id"] = nil
		updates["amount_charged"] = nil
		updates["currency"] = nil
	}

	res := s.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND company_id = ? AND status = ? AND charge_lock IS NULL", sess.ID, tenantID, sess.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update session %s: %w", sess.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, s.conflict(ctx, tenantID, sess.ID)
	}

	if action == sessions.ActionUndoBill {
		attempt := ""
		if sess.PaymentAttemptID != nil {
			attempt = *sess.PaymentAttemptID
		}
		log.Warn().
			Uint("tenant_id", tenantID).
			Str("session_id", sess.ID).
			Str("payment_attempt_id", attempt).
			Str("role", role).
			Msg("Bill undone; the processor charge was not refunded")
	}

	return s.Get(ctx, tenantID, sess.ID)
}

// conflict explains why a conditional update matched nothing.
func (s *Service) conflict(ctx context.Context, tenantID uint, sessionID string) error {
	fresh, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if fresh.ChargeLock != nil {
		return ErrChargeInProgress
	}
	return fmt.Errorf("%w: session is now %s", ErrConcurrentChange, fresh.Status)
}

// Archive hides a session from working lists. Billed sessions stay visible.
func (s *Service) Archive(ctx context.Context, tenantID uint, sessionID, role string) (*sessions.Session, error) {
	sess, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sessions.CanArchive(role, sess) {
		return nil, fmt.Errorf("%w: cannot archive a %s session as %s", sessions.ErrNotPermitted, sess.Status, role)
	}
	if sess.Archived {
		return sess, nil
	}

	res := s.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND company_id = ? AND status <> ? AND charge_lock IS NULL", sess.ID, tenantID, sessions.StatusBilled).
		Update("archived", true)
	if res.Error != nil {
		return nil, fmt.Errorf("archive session %s: %w", sess.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, s.conflict(ctx, tenantID, sess.ID)
	}
	return s.Get(ctx, tenantID, sess.ID)
}

func (s *Service) Unarchive(ctx context.Context, tenantID uint, sessionID, role string) (*sessions.Session, error) {
	if role != users.RoleAdmin && role != users.RoleBilling {
		return nil, fmt.Errorf("%w: %s cannot unarchive", sessions.ErrNotPermitted, role)
	}
	sess, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Archived {
		return sess, nil
	}
	if err := s.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("id = ? AND company_id = ?", sess.ID, tenantID).
		Update("archived", false).Error; err != nil {
		return nil, fmt.Errorf("unarchive session %s: %w", sess.ID, err)
	}
	sess.Archived = false
	return sess, nil
}
