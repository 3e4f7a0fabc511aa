package billing

import (
	"time"

	records "coaching-billing/internal/domain/billing"
)

// RecordDTO is a billing record with the amount rendered for display.
type RecordDTO struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	PaymentAttemptID string    `json:"paymentAttemptId,omitempty"`
	ClientID         uint      `json:"clientId"`
	ClientName       string    `json:"clientName"`
	ClientEmail      string    `json:"clientEmail"`
	CoachID          uint      `json:"coachId"`
	CoachName        string    `json:"coachName"`
	ServiceType      string    `json:"serviceType"`
	Amount           int64     `json:"amount"`
	AmountDisplay    string    `json:"amountDisplay"`
	Currency         string    `json:"currency"`
	Env              string    `json:"env"`
	Outcome          string    `json:"outcome"`
	FailureCode      string    `json:"failureCode,omitempty"`
	FailureReason    string    `json:"failureReason,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toRecordDTO(r records.BillingRecord) RecordDTO {
	return RecordDTO{
		ID:               r.ID,
		SessionID:        r.SessionID,
		PaymentAttemptID: r.PaymentAttemptID,
		ClientID:         r.ClientID,
		ClientName:       r.ClientName,
		ClientEmail:      r.ClientEmail,
		CoachID:          r.CoachID,
		CoachName:        r.CoachName,
		ServiceType:      r.ServiceType,
		Amount:           r.Amount,
		AmountDisplay:    records.FormatAmount(r.Amount, r.Currency),
		Currency:         r.Currency,
		Env:              r.Env,
		Outcome:          r.Outcome,
		FailureCode:      r.FailureCode,
		FailureReason:    r.FailureReason,
		CreatedAt:        r.CreatedAt,
	}
}

func toRecordDTOs(rs []records.BillingRecord) []RecordDTO {
	out := make([]RecordDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRecordDTO(r))
	}
	return out
}
