package access

// BillingState is how far a tenant's connected account is along in one
// environment.
type BillingState string

const (
	BillingNotConnected BillingState = "not_connected"
	BillingOnboarding   BillingState = "onboarding"
	BillingReady        BillingState = "ready"
	BillingDisabled     BillingState = "disabled"
)

const (
	CapLogSessions      = "log_sessions"
	CapReviewSessions   = "review_sessions"
	CapChargeSessions   = "charge_sessions"
	CapCorrectBilling   = "correct_billing"
	CapManageAccounts   = "manage_accounts"
	CapManageMembers    = "manage_members"
	CapAddPaymentMethod = "add_payment_method"
	CapViewPayments     = "view_payments"
)
