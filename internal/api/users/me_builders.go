package users

import (
	"coaching-billing/internal/domain/access"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/users"
)

// canSeeAccounts: coaches and clients only need to know whether billing works.
func canSeeAccounts(role string) bool {
	return role == users.RoleAdmin || role == users.RoleBilling
}

func BuildCompanyDTO(c companies.Company, role string) CompanyDTO {
	dto := CompanyDTO{ID: c.ID, Name: c.Name}
	if !canSeeAccounts(role) {
		return dto
	}
	dto.Accounts = map[string]AccountDTO{}
	for _, e := range env.All() {
		dto.Accounts[e.String()] = BuildAccountDTO(c.Account(e))
	}
	return dto
}

func BuildAccountDTO(a companies.PaymentAccount) AccountDTO {
	return AccountDTO{
		Connected:      a.Connected(),
		SubAccountID:   a.SubAccountID,
		Ready:          a.Ready,
		DisabledReason: a.DisabledReason,
		ObservedAt:     a.ObservedAt,
	}
}

func BuildUserDTO(u users.User) UserDTO {
	dto := UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Lastname: u.Lastname,
		Role:     u.Role,
	}
	if u.Role == users.RoleClient {
		for _, e := range env.All() {
			if u.CustomerRef(e, u.Company.Account(e).SubAccountID) != "" {
				dto.PaymentProfiles = append(dto.PaymentProfiles, e.String())
			}
		}
	}
	return dto
}

func BuildAccessDTOs(c companies.Company, role string) map[string]AccessDTO {
	out := map[string]AccessDTO{}
	for _, e := range env.All() {
		state := access.ComputeBillingState(c.Account(e))
		out[e.String()] = AccessDTO{
			State:        string(state),
			Capabilities: access.CapabilitiesFor(role, state),
		}
	}
	return out
}
