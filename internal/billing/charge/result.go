package charge

import "coaching-billing/internal/domain/env"

// Code identifies the outcome of a charge request. Every precondition has its
// own code so the UI can tell the operator what to fix.
type Code string

const (
	CodeSucceeded Code = "succeeded"

	CodeInvalidEnv         Code = "invalid_environment"
	CodeSessionNotFound    Code = "session_not_found"
	CodeTenantNotFound     Code = "tenant_not_found"
	CodeSessionNotApproved Code = "session_not_approved"
	CodeSessionArchived    Code = "session_archived"
	CodeChargeInProgress   Code = "charge_in_progress"
	CodeAccountNotReady    Code = "account_not_ready"
	CodeAccountDisabled    Code = "account_disabled"
	CodeNoPaymentProfile   Code = "no_payment_profile"
	CodeCustomerUnavail    Code = "customer_unavailable"
	CodeNoPaymentMethod    Code = "no_payment_method"
	CodeNoPrice            Code = "no_price_for_service_type"
	CodeNoActivePrice      Code = "no_active_price"

	CodeActionRequired Code = "action_required"
	CodeDeclined       Code = "declined"
	CodePaymentFailed  Code = "payment_failed"

	CodeProcessorUnavailable   Code = "processor_unavailable"
	CodeOutcomeUnknown         Code = "outcome_unknown"
	CodeReconciliationRequired Code = "reconciliation_required"
	CodeInternal               Code = "internal_error"
)

var messages = map[Code]string{
	CodeInvalidEnv:             "Environment must be test or live.",
	CodeSessionNotFound:        "Session not found.",
	CodeTenantNotFound:         "Company not found.",
	CodeSessionNotApproved:     "Only approved sessions can be charged.",
	CodeSessionArchived:        "Archived sessions cannot be charged.",
	CodeChargeInProgress:       "A charge for this session is already in progress.",
	CodeAccountNotReady:        "The company's payment account is not ready to accept charges.",
	CodeAccountDisabled:        "The company's payment account is disabled by the processor.",
	CodeNoPaymentProfile:       "The client has no payment method on file.",
	CodeCustomerUnavail:        "The client's payment profile could not be found at the processor.",
	CodeNoPaymentMethod:        "The client's payment profile has no usable payment method.",
	CodeNoPrice:                "No pricing found for this session type. Add a product with this name.",
	CodeNoActivePrice:          "The product for this session type has no active price.",
	CodeActionRequired:         "The payment requires additional authentication by the client.",
	CodeDeclined:               "The payment was declined.",
	CodePaymentFailed:          "The payment failed.",
	CodeProcessorUnavailable:   "The payment processor is unavailable. Try again shortly.",
	CodeOutcomeUnknown:         "The payment outcome is unknown. Verify it with the processor before retrying.",
	CodeReconciliationRequired: "The payment went through but could not be recorded. Manual reconciliation is required.",
	CodeInternal:               "The charge could not be completed.",
}

// Message is the default user-facing text for c.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return string(c)
}

type Request struct {
	SessionID string
	TenantID  uint
	Env       env.Environment
}

// Result is always returned, whatever happened. Error carries the processor's
// reason for declines and the default message otherwise.
type Result struct {
	Success          bool   `json:"success"`
	PaymentAttemptID string `json:"paymentAttemptId,omitempty"`
	AmountCharged    int64  `json:"amountCharged,omitempty"`
	Currency         string `json:"currency,omitempty"`
	Code             Code   `json:"code,omitempty"`
	Error            string `json:"error,omitempty"`
}

func fail(code Code) Result {
	return Result{Code: code, Error: code.Message()}
}

func failWith(code Code, reason string) Result {
	if reason == "" {
		reason = code.Message()
	}
	return Result{Code: code, Error: reason}
}
