package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"
	"coaching-billing/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeReconciler struct {
	reg       *registry.Registry
	status    stripeinfra.AccountStatus
	err       error
	refreshed []uint
	queried   []string
}

func (f *fakeReconciler) RefreshTenant(ctx context.Context, tenantID uint, e env.Environment) (stripeinfra.AccountStatus, error) {
	f.refreshed = append(f.refreshed, tenantID)
	if f.err != nil {
		return stripeinfra.AccountStatus{}, f.err
	}
	if err := f.reg.SetReady(ctx, tenantID, e, f.status.Ready()); err != nil {
		return stripeinfra.AccountStatus{}, err
	}
	return f.status, nil
}

func (f *fakeReconciler) AccountStatus(_ context.Context, subAccountID string, _ env.Environment) (stripeinfra.AccountStatus, error) {
	f.queried = append(f.queried, subAccountID)
	if subAccountID == "" {
		return stripeinfra.AccountStatus{}, registry.ErrNoSubAccount
	}
	return f.status, f.err
}

type fakeConnector struct {
	account string
	err     error
}

func (f *fakeConnector) AuthCodeURL(e env.Environment, state string) (string, error) {
	return "https://connect.example/authorize?state=" + url.QueryEscape(state) + "&env=" + e.String(), nil
}

func (f *fakeConnector) Exchange(_ context.Context, _ env.Environment, code string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.account, nil
}

type fixture struct {
	db      *gorm.DB
	reg     *registry.Registry
	rec     *fakeReconciler
	conn    *fakeConnector
	company *companies.Company
	h       *Handler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	reg := registry.New(db)
	f := &fixture{
		db:      db,
		reg:     reg,
		rec:     &fakeReconciler{reg: reg, status: stripeinfra.AccountStatus{ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}},
		conn:    &fakeConnector{account: "acct_new"},
		company: testutil.CreateCompany(t, db, "Acme"),
	}
	f.h = NewHandler(reg, f.rec, f.conn, "state-secret", "http://app.test/")
	return f
}

func (f *fixture) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/connect/callback", f.h.ConnectCallback)
	authed := r.Group("/")
	authed.Use(func(c *gin.Context) {
		c.Set(middleware.KeyCompanyID, f.company.ID)
	})
	authed.GET("/account-status", f.h.GetAccountStatus)
	authed.POST("/update-account-readiness", f.h.UpdateAccountReadiness)
	authed.POST("/accounts/refresh", f.h.RefreshAccount)
	authed.GET("/connect/start", f.h.ConnectStart)
	return r
}

func do(r *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestGetAccountStatusDefaultsToOwnAccount(t *testing.T) {
	f := setup(t)
	testutil.ConnectCompany(t, f.db, f.company, env.Test, "acct_1", true)
	r := f.router()

	w := do(r, http.MethodGet, "/account-status?env=test", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acct_1", resp.SubAccountID)
	assert.True(t, resp.ChargesEnabled)
	assert.True(t, resp.PayoutsEnabled)
	assert.True(t, resp.DetailsSubmitted)
	assert.Equal(t, []string{"acct_1"}, f.rec.queried)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/account-status?env=test&subAccountId=acct_1", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/account-status?env=test&subAccountId=acct_other", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/account-status", "").Code)
	// live was never connected
	assert.Equal(t, http.StatusConflict, do(r, http.MethodGet, "/account-status?env=live", "").Code)
}

func TestGetAccountStatusProcessorErrors(t *testing.T) {
	f := setup(t)
	testutil.ConnectCompany(t, f.db, f.company, env.Live, "acct_live", true)
	r := f.router()

	f.rec.err = stripeinfra.ErrAccountNotFound
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/account-status?env=live", "").Code)
	f.rec.err = stripeinfra.ErrEnvNotConfigured
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/account-status?env=live", "").Code)
}

func TestUpdateAccountReadiness(t *testing.T) {
	f := setup(t)
	r := f.router()
	body := func(tenant uint, ready bool) string {
		b, _ := json.Marshal(map[string]interface{}{"tenantId": tenant, "env": "live", "ready": ready})
		return string(b)
	}

	// no sub-account on file yet
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/update-account-readiness", body(f.company.ID, true)).Code)

	testutil.ConnectCompany(t, f.db, f.company, env.Live, "acct_live", false)
	w := do(r, http.MethodPost, "/update-account-readiness", body(f.company.ID, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	acct, err := f.reg.GetAccount(context.Background(), f.company.ID, env.Live)
	require.NoError(t, err)
	assert.True(t, acct.Ready)
	test, err := f.reg.GetAccount(context.Background(), f.company.ID, env.Test)
	require.NoError(t, err)
	assert.False(t, test.Ready)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/update-account-readiness", body(f.company.ID+1, false)).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/update-account-readiness", `{"tenantId":1,"env":"live"}`).Code)
}

func TestRefreshAccount(t *testing.T) {
	f := setup(t)
	testutil.ConnectCompany(t, f.db, f.company, env.Test, "acct_1", false)
	r := f.router()

	w := do(r, http.MethodPost, "/accounts/refresh", `{"env":"test"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ready":true`)
	assert.Equal(t, []uint{f.company.ID}, f.rec.refreshed)

	acct, err := f.reg.GetAccount(context.Background(), f.company.ID, env.Test)
	require.NoError(t, err)
	assert.True(t, acct.Ready)
}

func TestConnectFlow(t *testing.T) {
	f := setup(t)
	r := f.router()

	w := do(r, http.MethodGet, "/connect/start?env=live", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var start struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	u, err := url.Parse(start.URL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	var nonce *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == connectNonceCookie {
			nonce = ck
		}
	}
	require.NotNil(t, nonce)

	// without the browser cookie the state is not accepted
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/connect/callback?code=ac_1&state="+url.QueryEscape(state), "").Code)

	w = do(r, http.MethodGet, "/connect/callback?code=ac_1&state="+url.QueryEscape(state), "", nonce)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "http://app.test/settings/payments?"))
	assert.Contains(t, w.Header().Get("Location"), "connect=connected")

	acct, err := f.reg.GetAccount(context.Background(), f.company.ID, env.Live)
	require.NoError(t, err)
	assert.Equal(t, "acct_new", acct.SubAccountID)
	assert.True(t, acct.Ready)
	assert.Equal(t, []uint{f.company.ID}, f.rec.refreshed)
}

func TestConnectCallbackRejectsForgedState(t *testing.T) {
	f := setup(t)
	r := f.router()

	other := NewHandler(f.reg, f.rec, f.conn, "another-secret", "http://app.test")
	forged, err := other.signState(f.company.ID, env.Live, "n1")
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/connect/callback?code=ac_1&state="+url.QueryEscape(forged), "",
		&http.Cookie{Name: connectNonceCookie, Value: "n1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.rec.refreshed)
}

func TestConnectCallbackDenied(t *testing.T) {
	f := setup(t)
	r := f.router()
	state, err := f.h.signState(f.company.ID, env.Test, "n1")
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/connect/callback?error=access_denied&state="+url.QueryEscape(state), "",
		&http.Cookie{Name: connectNonceCookie, Value: "n1"})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "connect=cancelled")

	acct, err := f.reg.GetAccount(context.Background(), f.company.ID, env.Test)
	require.NoError(t, err)
	assert.False(t, acct.Connected())
}
