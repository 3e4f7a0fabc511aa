package access

import "coaching-billing/internal/domain/users"

// CapabilitiesFor lists what role can do in an environment in state. The
// frontend uses it to hide actions the API would reject anyway.
func CapabilitiesFor(role string, state BillingState) []string {
	switch role {
	case users.RoleAdmin:
		return []string{CapLogSessions, CapReviewSessions, CapCorrectBilling, CapManageAccounts, CapManageMembers}
	case users.RoleBilling:
		caps := []string{CapCorrectBilling}
		if state == BillingReady {
			caps = append(caps, CapChargeSessions)
		}
		return caps
	case users.RoleCoach:
		return []string{CapLogSessions}
	case users.RoleClient:
		caps := []string{CapViewPayments}
		if state != BillingNotConnected {
			caps = append(caps, CapAddPaymentMethod)
		}
		return caps
	default:
		return []string{}
	}
}
