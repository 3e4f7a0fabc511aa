package users

import "time"

type MeResponse struct {
	User    UserDTO              `json:"user"`
	Company CompanyDTO           `json:"company"`
	Access  map[string]AccessDTO `json:"access"`
}

type UserDTO struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Role     string `json:"role"`
	// Environments where the client has a payment profile on file.
	PaymentProfiles []string `json:"paymentProfiles,omitempty"`
}

type CompanyDTO struct {
	ID       uint                  `json:"id"`
	Name     string                `json:"name"`
	Accounts map[string]AccountDTO `json:"accounts,omitempty"`
}

// AccountDTO is the readiness view of one environment's connected account.
type AccountDTO struct {
	Connected      bool       `json:"connected"`
	SubAccountID   string     `json:"subAccountId,omitempty"`
	Ready          bool       `json:"ready"`
	DisabledReason string     `json:"disabledReason,omitempty"`
	ObservedAt     *time.Time `json:"observedAt,omitempty"`
}

// AccessDTO is keyed by environment in MeResponse.
type AccessDTO struct {
	State        string   `json:"state"`
	Capabilities []string `json:"capabilities"`
}
