package access

import "coaching-billing/internal/domain/companies"

// ComputeBillingState derives the state from the stored account columns.
func ComputeBillingState(acct companies.PaymentAccount) BillingState {
	switch {
	case !acct.Connected():
		return BillingNotConnected
	case acct.Ready:
		return BillingReady
	case acct.DisabledReason != "":
		return BillingDisabled
	default:
		return BillingOnboarding
	}
}
