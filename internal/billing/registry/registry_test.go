package registry

import (
	"context"
	"testing"
	"time"

	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGetAccountUnconnected(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)

	acct, err := reg.GetAccount(context.Background(), c.ID, env.Test)
	require.NoError(t, err)
	assert.Equal(t, "", acct.SubAccountID)
	assert.False(t, acct.Ready)
	assert.False(t, acct.Connected())

	_, err = reg.GetAccount(context.Background(), 9999, env.Test)
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = reg.GetAccount(context.Background(), c.ID, env.Environment("staging"))
	assert.ErrorIs(t, err, ErrInvalidEnv)
}

func TestSetReadyRequiresSubAccount(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)
	ctx := context.Background()

	err := reg.SetReady(ctx, c.ID, env.Test, true)
	assert.ErrorIs(t, err, ErrNoSubAccount)

	acct, err := reg.GetAccount(ctx, c.ID, env.Test)
	require.NoError(t, err)
	assert.False(t, acct.Ready)

	// marking not-ready is always allowed
	require.NoError(t, reg.SetReady(ctx, c.ID, env.Test, false))
}

func TestSetSubAccountThenReady(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)
	ctx := context.Background()

	require.NoError(t, reg.SetSubAccount(ctx, c.ID, env.Live, "acct_live_1"))
	require.NoError(t, reg.SetReady(ctx, c.ID, env.Live, true))

	live, err := reg.GetAccount(ctx, c.ID, env.Live)
	require.NoError(t, err)
	assert.Equal(t, "acct_live_1", live.SubAccountID)
	assert.True(t, live.Ready)

	// environments are isolated
	test, err := reg.GetAccount(ctx, c.ID, env.Test)
	require.NoError(t, err)
	assert.Equal(t, "", test.SubAccountID)
	assert.False(t, test.Ready)
}

func TestReconnectResetsReadiness(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)
	ctx := context.Background()

	require.NoError(t, reg.SetSubAccount(ctx, c.ID, env.Test, "acct_1"))
	require.NoError(t, reg.SetReady(ctx, c.ID, env.Test, true))

	// same id again is a no-op
	require.NoError(t, reg.SetSubAccount(ctx, c.ID, env.Test, "acct_1"))
	acct, _ := reg.GetAccount(ctx, c.ID, env.Test)
	assert.True(t, acct.Ready)

	require.NoError(t, reg.SetSubAccount(ctx, c.ID, env.Test, "acct_2"))
	acct, _ = reg.GetAccount(ctx, c.ID, env.Test)
	assert.Equal(t, "acct_2", acct.SubAccountID)
	assert.False(t, acct.Ready)
}

func TestSetReadyAtSkipsStaleObservations(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	testutil.ConnectCompany(t, db, c, env.Test, "acct_1", false)
	reg := New(db)
	ctx := context.Background()

	newer := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Minute)

	applied, err := reg.SetReadyAt(ctx, c.ID, env.Test, true, "", newer)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = reg.SetReadyAt(ctx, c.ID, env.Test, false, "requirements.past_due", older)
	require.NoError(t, err)
	assert.False(t, applied)

	acct, _ := reg.GetAccount(ctx, c.ID, env.Test)
	assert.True(t, acct.Ready)
	assert.Equal(t, "", acct.DisabledReason)

	// the same observation again is accepted and changes nothing
	applied, err = reg.SetReadyAt(ctx, c.ID, env.Test, true, "", newer)
	require.NoError(t, err)
	assert.True(t, applied)
	acct, _ = reg.GetAccount(ctx, c.ID, env.Test)
	assert.True(t, acct.Ready)
}

func TestFindTenantBySubAccount(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	testutil.ConnectCompany(t, db, c, env.Test, "acct_1", true)
	reg := New(db)
	ctx := context.Background()

	found, err := reg.FindTenantBySubAccount(ctx, "acct_1", env.Test)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)

	// same id in the other environment does not match
	found, err = reg.FindTenantBySubAccount(ctx, "acct_1", env.Live)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = reg.FindTenantBySubAccount(ctx, "acct_unknown", env.Test)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListConnected(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.CreateCompany(t, db, "A")
	testutil.CreateCompany(t, db, "B")
	testutil.ConnectCompany(t, db, a, env.Live, "acct_live_a", true)
	reg := New(db)

	live, err := reg.ListConnected(context.Background(), env.Live)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "acct_live_a", live[0].SubAccountID)

	test, err := reg.ListConnected(context.Background(), env.Test)
	require.NoError(t, err)
	assert.Empty(t, test)
}

func TestSetSubAccountRereadsAfterConcurrentConnect(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)

	// Another callback connects and readies acct_racer between our read and write.
	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:concurrent_connect", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "companies" {
			return
		}
		fired = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE companies SET stripe_test_account_id = ?, stripe_test_ready = ? WHERE id = ?", "acct_racer", true, c.ID)
		require.NoError(t, err)
	}))

	require.NoError(t, reg.SetSubAccount(context.Background(), c.ID, env.Test, "acct_mine"))
	require.True(t, fired)

	acct, err := reg.GetAccount(context.Background(), c.ID, env.Test)
	require.NoError(t, err)
	assert.Equal(t, "acct_mine", acct.SubAccountID)
	assert.False(t, acct.Ready, "replacing acct_racer must reset readiness")
}

func TestSetReadyKeepsReportedReason(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.CreateCompany(t, db, "Acme Coaching")
	reg := New(db)
	ctx := context.Background()

	require.NoError(t, reg.SetSubAccount(ctx, c.ID, env.Live, "acct_1"))
	applied, err := reg.SetReadyAt(ctx, c.ID, env.Live, false, "requirements.past_due", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, reg.SetReady(ctx, c.ID, env.Live, false))
	acct, err := reg.GetAccount(ctx, c.ID, env.Live)
	require.NoError(t, err)
	assert.False(t, acct.Ready)
	assert.Equal(t, "requirements.past_due", acct.DisabledReason)

	require.NoError(t, reg.SetReady(ctx, c.ID, env.Live, true))
	acct, err = reg.GetAccount(ctx, c.ID, env.Live)
	require.NoError(t, err)
	assert.True(t, acct.Ready)
	assert.Empty(t, acct.DisabledReason)
}
