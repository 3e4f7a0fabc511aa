package sessions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is one logged coaching engagement.
type Session struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyID uint   `gorm:"not null;index:idx_sessions_company_status,priority:1" json:"tenantId"`

	CoachID     uint   `gorm:"not null;index" json:"coachId"`
	CoachName   string `gorm:"not null;default:''" json:"coachName"`
	ClientID    uint   `gorm:"not null;index" json:"clientId"`
	ClientName  string `gorm:"not null;default:''" json:"clientName"`
	ClientEmail string `gorm:"not null;default:''" json:"clientEmail"`

	ScheduledAt  time.Time `gorm:"not null" json:"scheduledAt"`
	ServiceType  string    `gorm:"not null" json:"serviceType"`
	Notes        string    `gorm:"type:text;not null;default:''" json:"notes"`
	Summary      *string   `gorm:"type:text" json:"summary,omitempty"`
	RecordingURL *string   `json:"recordingUrl,omitempty"`

	Status   Status `gorm:"type:varchar(20);not null;default:'under_review';index:idx_sessions_company_status,priority:2" json:"status"`
	Archived bool   `gorm:"not null;default:false" json:"archived"`

	// Written only by the Approved -> Billed transition.
	BilledAt         *time.Time `json:"billedAt,omitempty"`
	PaymentAttemptID *string    `gorm:"column:payment_attempt_id" json:"paymentAttemptId,omitempty"`
	AmountCharged    *int64     `json:"amountCharged,omitempty"`
	Currency         *string    `json:"currency,omitempty"`

	// Held while a charge is in flight. ChargeOutcomeUnknown keeps it held
	// until an operator has verified the processor side by hand.
	ChargeLock           *string    `gorm:"column:charge_lock" json:"-"`
	ChargeLockedAt       *time.Time `gorm:"column:charge_locked_at" json:"chargeLockedAt,omitempty"`
	ChargeOutcomeUnknown bool       `gorm:"column:charge_outcome_unknown;not null;default:false" json:"chargeOutcomeUnknown"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusUnderReview
	}
	return nil
}
