package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"coaching-billing/database"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"
	"coaching-billing/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func router(tenantID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.KeyCompanyID, tenantID) })
	r.GET("/admin/dashboard", AdminDashboard)
	r.GET("/admin/locked-sessions", ListLockedSessions)
	r.GET("/admin/members/:id", GetMemberDetails)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAdminDashboard(t *testing.T) {
	db := testutil.NewDB(t)
	database.DB = db
	c := testutil.CreateCompany(t, db, "Acme")
	other := testutil.CreateCompany(t, db, "Other")
	testutil.CreateUser(t, db, c.ID, users.RoleAdmin, "admin@example.com")
	coach := testutil.CreateUser(t, db, c.ID, users.RoleCoach, "coach@example.com")
	client := testutil.CreateUser(t, db, c.ID, users.RoleClient, "client@example.com")
	testutil.CreateUser(t, db, other.ID, users.RoleClient, "elsewhere@example.com")

	testutil.CreateSession(t, db, c.ID, coach, client, "Full", sessions.StatusUnderReview)
	testutil.CreateSession(t, db, c.ID, coach, client, "Full", sessions.StatusBilled)
	locked := testutil.CreateSession(t, db, c.ID, coach, client, "Full", sessions.StatusApproved)
	require.NoError(t, db.Model(&sessions.Session{}).Where("id = ?", locked.ID).Update("charge_lock", "tok").Error)

	for _, rec := range []billing.BillingRecord{
		{SessionID: "a", CompanyID: c.ID, Amount: 10000, Currency: "usd", Env: "live", Outcome: billing.OutcomeSucceeded},
		{SessionID: "b", CompanyID: c.ID, Amount: 5050, Currency: "usd", Env: "live", Outcome: billing.OutcomeSucceeded},
		{SessionID: "c", CompanyID: c.ID, Amount: 10000, Currency: "usd", Env: "test", Outcome: billing.OutcomeSucceeded},
		{SessionID: "d", CompanyID: c.ID, Amount: 10000, Currency: "usd", Env: "live", Outcome: billing.OutcomeFailed},
		{SessionID: "e", CompanyID: other.ID, Amount: 99999, Currency: "usd", Env: "live", Outcome: billing.OutcomeSucceeded},
	} {
		rec := rec
		require.NoError(t, db.Create(&rec).Error)
	}

	w := get(router(c.ID), "/admin/dashboard")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats AdminStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, map[string]int64{"admin": 1, "coach": 1, "client": 1}, stats.MembersByRole)
	assert.Equal(t, int64(1), stats.SessionsByState["billed"])
	assert.Equal(t, int64(1), stats.LockedSessions)
	assert.Equal(t, int64(1), stats.FailedCharges)
	require.Len(t, stats.Revenue, 2)
	assert.Equal(t, RevenueLine{Env: "live", Currency: "usd", Amount: 15050, AmountDisplay: "150.50", Charges: 2}, stats.Revenue[0])
	assert.Equal(t, "test", stats.Revenue[1].Env)
	assert.Len(t, stats.RecentRevenue, 2)

	w = get(router(c.ID), "/admin/locked-sessions")
	require.Equal(t, http.StatusOK, w.Code)
	var list []sessions.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, locked.ID, list[0].ID)
}

func TestGetMemberDetails(t *testing.T) {
	db := testutil.NewDB(t)
	database.DB = db
	c := testutil.CreateCompany(t, db, "Acme")
	coach := testutil.CreateUser(t, db, c.ID, users.RoleCoach, "coach@example.com")
	client := testutil.CreateUser(t, db, c.ID, users.RoleClient, "client@example.com")
	testutil.ConnectCompany(t, db, c, env.Test, "acct_1", true)
	testutil.SetCustomer(t, db, client, env.Test, "acct_1", "cus_1")
	testutil.CreateSession(t, db, c.ID, coach, client, "Full", sessions.StatusApproved)

	w := get(router(c.ID), "/admin/members/"+strconv.Itoa(int(client.ID)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d MemberDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, map[string]bool{"test": true, "live": false}, d.PaymentProfiles)
	assert.Equal(t, int64(1), d.Sessions["approved"])

	assert.Equal(t, http.StatusNotFound, get(router(c.ID+1), "/admin/members/"+strconv.Itoa(int(client.ID))).Code)
	assert.Equal(t, http.StatusBadRequest, get(router(c.ID), "/admin/members/abc").Code)
}
