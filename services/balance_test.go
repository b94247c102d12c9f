package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardProjections(t *testing.T) {
	f := newFixture(t, nil)
	referrer := f.user(t, "host@example.com", nil)
	u := f.user(t, "dash@example.com", &referrer.ID)
	ctx := context.Background()

	_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)

	d, err := f.engine.Dashboard(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 0.6, d.PendingRevenueUSD)
	assert.Equal(t, 600.0, d.PendingTokens)
	assert.Equal(t, 0.6, d.TodayEarningsUSD)
	assert.Equal(t, int64(1), d.Coins)
	assert.Equal(t, u.ReferralCode, d.ReferralCode)

	host, err := f.engine.Dashboard(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), host.ReferredUsersCount)
	assert.Equal(t, 0.06, host.ReferralEarningsUSD)
	assert.Equal(t, 3.6, host.ReferralEarningsTokens)

	f.clock.Advance(day)
	d, err = f.engine.Dashboard(ctx, u)
	require.NoError(t, err)
	assert.Zero(t, d.TodayEarningsUSD, "today resets at midnight UTC")
	assert.Equal(t, 0.6, d.TotalEarningsUSD)
}

// Every mutation path keeps locked + available equal to the total and the
// materialized row equal to the ledger.
func TestBalanceInvariantAcrossLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.admin(t)
	u := f.user(t, "life@example.com", nil)
	for i := 0; i < 10; i++ {
		f.user(t, "pal"+string(rune('a'+i))+"@example.com", &u.ID)
	}
	f.setBalance(t, u.ID, map[string]any{"total_earnings_usd": 10.0})
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		rec, err := f.engine.Reconcile(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, rec.Consistent, "%s: %+v", step, rec)
		assert.InDelta(t, rec.LockedWin+rec.AvailableWin, rec.TotalWin, 1e-9, step)
	}

	for i := 0; i < 5; i++ {
		_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "spin", AdWatched: true})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	check("after plays")

	res, err := f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	require.NotNil(t, res.Proposal)
	check("after settlement")

	_, err = f.engine.ApproveSettlement(ctx, res.Proposal.ID, admin)
	require.NoError(t, err)

	f.clock.Advance(16 * day)
	var scheduleID string
	wb, err := f.engine.WinBalance(ctx, u)
	require.NoError(t, err)
	require.Len(t, wb.VestingSchedules, 1)
	scheduleID = wb.VestingSchedules[0].ID
	check("after promotion")

	_, err = f.engine.ClaimVesting(ctx, u, scheduleID)
	require.NoError(t, err)
	check("after claim")

	_, err = f.engine.SubscribeMGM(ctx, u, "starter")
	require.NoError(t, err)
	check("after subscribe")

	f.clock.Advance(day)
	cancel, err := f.engine.CancelMGM(ctx, u)
	require.NoError(t, err)
	require.True(t, cancel.PrincipalHeld)
	check("after cancel")

	bal := f.balance(t, u.ID)
	assert.Equal(t, 1600.0, bal.AvailableWin)
	assert.Equal(t, 500.0, bal.LockedWin, "held principal stays locked")

	held, err := f.engine.HeldMGMSubscriptions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, held, 1)
	_, err = f.engine.ResolveMGMPrincipal(ctx, admin, held[0].ID, "refund")
	require.NoError(t, err)
	check("after resolve")

	bal = f.balance(t, u.ID)
	assert.Equal(t, 2100.0, bal.AvailableWin)
	assert.Zero(t, bal.LockedWin)
}
