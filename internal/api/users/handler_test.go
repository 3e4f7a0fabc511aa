package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"coaching-billing/database"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/users"
	"coaching-billing/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func me(t *testing.T, u *users.User) MeResponse {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", func(c *gin.Context) {
		c.Set(middleware.KeyUserID, u.ID)
		c.Set(middleware.KeyCompanyID, u.CompanyID)
	}, GetCurrentUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetCurrentUserShowsAccountsToAdmins(t *testing.T) {
	database.DB = testutil.NewDB(t)
	c := testutil.CreateCompany(t, database.DB, "Acme")
	testutil.ConnectCompany(t, database.DB, c, env.Test, "acct_1", true)
	admin := testutil.CreateUser(t, database.DB, c.ID, users.RoleAdmin, "admin@example.com")

	resp := me(t, admin)
	assert.Equal(t, "Acme", resp.Company.Name)
	require.Contains(t, resp.Company.Accounts, "test")
	assert.True(t, resp.Company.Accounts["test"].Ready)
	assert.Equal(t, "acct_1", resp.Company.Accounts["test"].SubAccountID)
	assert.False(t, resp.Company.Accounts["live"].Connected)
	assert.Equal(t, "ready", resp.Access["test"].State)
	assert.Equal(t, "not_connected", resp.Access["live"].State)
}

func TestGetCurrentUserClientProfiles(t *testing.T) {
	database.DB = testutil.NewDB(t)
	c := testutil.CreateCompany(t, database.DB, "Acme")
	testutil.ConnectCompany(t, database.DB, c, env.Live, "acct_live", true)
	client := testutil.CreateUser(t, database.DB, c.ID, users.RoleClient, "client@example.com")
	testutil.SetCustomer(t, database.DB, client, env.Live, "acct_live", "cus_live")
	testutil.SetCustomer(t, database.DB, client, env.Test, "acct_test", "  ")

	resp := me(t, client)
	assert.Equal(t, []string{"live"}, resp.User.PaymentProfiles)
	assert.Nil(t, resp.Company.Accounts)
	assert.Equal(t, []string{"view_payments"}, resp.Access["test"].Capabilities)
}

func TestGetCurrentUserIgnoresProfileFromPreviousAccount(t *testing.T) {
	database.DB = testutil.NewDB(t)
	c := testutil.CreateCompany(t, database.DB, "Acme")
	testutil.ConnectCompany(t, database.DB, c, env.Live, "acct_new", true)
	client := testutil.CreateUser(t, database.DB, c.ID, users.RoleClient, "client@example.com")
	testutil.SetCustomer(t, database.DB, client, env.Live, "acct_old", "cus_old")

	resp := me(t, client)
	assert.Empty(t, resp.User.PaymentProfiles)
}
