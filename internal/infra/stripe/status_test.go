package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	stripelib "github.com/stripe/stripe-go/v75"
)

func TestReadiness(t *testing.T) {
	assert.True(t, Readiness(true, true))
	assert.False(t, Readiness(true, false))
	assert.False(t, Readiness(false, true))
	assert.False(t, Readiness(false, false))
}

func TestStatusFromAccount(t *testing.T) {
	acct := &stripelib.Account{
		ID:               "acct_1",
		ChargesEnabled:   true,
		PayoutsEnabled:   false,
		DetailsSubmitted: true,
		Requirements: &stripelib.AccountRequirements{
			DisabledReason: " requirements.past_due ",
		},
	}
	st := StatusFromAccount(acct)
	assert.Equal(t, "acct_1", st.AccountID)
	assert.True(t, st.Ready())
	assert.False(t, st.PayoutsEnabled)
	assert.Equal(t, "requirements.past_due", st.DisabledReason)

	assert.Equal(t, AccountStatus{}, StatusFromAccount(nil))
}
