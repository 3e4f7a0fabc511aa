package stripe

import "strings"

// AccountStatus is the capability snapshot of a connected account.
type AccountStatus struct {
	AccountID        string `json:"-"`
	ChargesEnabled   bool   `json:"chargesEnabled"`
	PayoutsEnabled   bool   `json:"payoutsEnabled"`
	DetailsSubmitted bool   `json:"detailsSubmitted"`
	DisabledReason   string `json:"disabledReason,omitempty"`
}

// Ready is the readiness formula used everywhere a flag is written.
func (s AccountStatus) Ready() bool {
	return Readiness(s.ChargesEnabled, s.DetailsSubmitted)
}

func Readiness(chargesEnabled, detailsSubmitted bool) bool {
	return chargesEnabled && detailsSubmitted
}

// NormalizeDisabledReason trims Stripe's requirements.disabled_reason; an
// empty reason means the account is not disabled.
func NormalizeDisabledReason(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
