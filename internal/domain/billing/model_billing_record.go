package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// BillingRecord is the append-only audit row for one charge attempt.
// Client and coach names are copied in so the trail stays readable after
// profile edits.
type BillingRecord struct {
	ID               string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID        string `gorm:"type:varchar(36);not null;index" json:"sessionId"`
	PaymentAttemptID string `gorm:"not null;default:'';index" json:"paymentAttemptId"`
	CompanyID        uint   `gorm:"not null;index" json:"tenantId"`

	ClientID    uint   `gorm:"not null;index" json:"clientId"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	CoachID     uint   `gorm:"not null" json:"coachId"`
	CoachName   string `json:"coachName"`

	ServiceType  string `json:"serviceType"`
	Amount       int64  `gorm:"not null;default:0" json:"amount"`
	Currency     string `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	Env          string `gorm:"type:varchar(8);not null;index" json:"env"`
	SubAccountID string `gorm:"not null" json:"subAccountId"`

	Outcome       string `gorm:"type:varchar(16);not null;index" json:"outcome"`
	FailureCode   string `gorm:"not null;default:''" json:"failureCode,omitempty"`
	FailureReason string `gorm:"type:text;not null;default:''" json:"failureReason,omitempty"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (r *BillingRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Records are never rewritten.
func (r *BillingRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrRecordImmutable
}

func (r *BillingRecord) BeforeDelete(tx *gorm.DB) error {
	return ErrRecordImmutable
}
