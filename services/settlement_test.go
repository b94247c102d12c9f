package services

import (
	"context"
	"testing"
	"time"

	"winledger/errutil"
	"winledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSettlementTwoUsers(t *testing.T) {
	f := newFixture(t, nil)
	a := f.user(t, "a@example.com", nil)
	b := f.user(t, "b@example.com", nil)
	f.setBalance(t, a.ID, map[string]any{"pending_revenue_usd": 2.0})
	f.setBalance(t, b.ID, map[string]any{"pending_revenue_usd": 3.0})

	res, err := f.engine.CreateSettlement(context.Background(), TriggerAdmin)
	require.NoError(t, err)
	require.NotNil(t, res.Proposal)

	p := res.Proposal
	assert.Equal(t, models.SettlementPendingApproval, p.Status)
	assert.Equal(t, 5.0, p.TotalRevenueUSD)
	assert.Equal(t, 5000.0, p.TotalWinToBuy)
	assert.Equal(t, 3500.0, p.WinForUsers70)
	assert.Equal(t, 1500.0, p.WinForLiquidity30)
	assert.Equal(t, p.TotalWinToBuy, p.WinForUsers70+p.WinForLiquidity30)
	assert.Equal(t, 2, p.UsersCount)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, []uint(p.IncludedUsers))
	assert.Empty(t, res.SkippedUsers)

	for id, locked := range map[uint]float64{a.ID: 1400, b.ID: 2100} {
		bal := f.balance(t, id)
		assert.Zero(t, bal.PendingRevenueUSD)
		assert.Equal(t, locked, bal.LockedWin)
		assert.Equal(t, bal.LockedWin+bal.AvailableWin, bal.TotalWin())

		var sched models.VestingSchedule
		require.NoError(t, f.db.Where("user_id = ?", id).Take(&sched).Error)
		assert.Equal(t, models.VestingLocked, sched.Status)
		assert.Equal(t, p.ID, sched.SettlementID)
		assert.True(t, sched.UnlockDate.Equal(epoch.Add(15*24*time.Hour)))
	}

	var stored models.Settlement
	require.NoError(t, f.db.Preload("Entries").Take(&stored, "id = ?", p.ID).Error)
	assert.Len(t, stored.Entries, 2)
	assert.Equal(t, 3500.0, stored.WinForUsers70)
}

func TestCreateSettlementNothingToSettleIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "once@example.com", nil)
	ctx := context.Background()

	res, err := f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, MsgNothingToSettle, res.Message)
	assert.Nil(t, res.Proposal)

	f.setBalance(t, u.ID, map[string]any{"pending_revenue_usd": 1.0})
	res, err = f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	require.NotNil(t, res.Proposal)

	res, err = f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, MsgNothingToSettle, res.Message)
	assert.Nil(t, res.Proposal)

	var n int64
	require.NoError(t, f.db.Model(&models.Settlement{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCreateSettlementSkipsFailingUsers(t *testing.T) {
	f := newFixture(t, nil)
	good := f.user(t, "good@example.com", nil)
	frozen := f.user(t, "frozen@example.com", nil)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", frozen.ID).Update("is_active", false).Error)
	f.setBalance(t, good.ID, map[string]any{"pending_revenue_usd": 1.0})
	f.setBalance(t, frozen.ID, map[string]any{"pending_revenue_usd": 4.0})

	res, err := f.engine.CreateSettlement(context.Background(), TriggerAdmin)
	require.NoError(t, err)
	require.NotNil(t, res.Proposal)

	assert.Equal(t, []uint{good.ID}, []uint(res.Proposal.IncludedUsers))
	require.Len(t, res.SkippedUsers, 1)
	assert.Equal(t, frozen.ID, res.SkippedUsers[0].UserID)
	assert.Equal(t, "account inactive", res.SkippedUsers[0].Reason)
	assert.Equal(t, 1000.0, res.Proposal.TotalWinToBuy)

	assert.Equal(t, 4.0, f.balance(t, frozen.ID).PendingRevenueUSD, "skipped users keep pending for the next run")
	assert.Zero(t, f.balance(t, frozen.ID).LockedWin)

	var stored models.Settlement
	require.NoError(t, f.db.Take(&stored, "id = ?", res.Proposal.ID).Error)
	require.Len(t, stored.SkippedUsers, 1)
	assert.Equal(t, frozen.ID, stored.SkippedUsers[0].UserID)
}

func TestCreateSettlementOnlySkippedUsersWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	frozen := f.user(t, "frozen@example.com", nil)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", frozen.ID).Update("is_active", false).Error)
	f.setBalance(t, frozen.ID, map[string]any{"pending_revenue_usd": 4.0})

	res, err := f.engine.CreateSettlement(context.Background(), TriggerAdmin)
	require.NoError(t, err)
	assert.Nil(t, res.Proposal)
	assert.Len(t, res.SkippedUsers, 1)

	var n int64
	require.NoError(t, f.db.Model(&models.Settlement{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateSettlementRespectsLease(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "lease@example.com", nil)
	f.setBalance(t, u.ID, map[string]any{"pending_revenue_usd": 1.0})
	ctx := context.Background()

	other := New(f.db, f.cfg, WithClock(f.clock.Now))
	ok, err := other.AcquireJobLock(ctx, settlementLock, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.engine.CreateSettlement(ctx, TriggerAdmin)
	requireErrCode(t, err, errutil.CodeConflict)
	assert.Equal(t, 1.0, f.balance(t, u.ID).PendingRevenueUSD)

	require.NoError(t, other.ReleaseJobLock(ctx, settlementLock))
	res, err := f.engine.CreateSettlement(ctx, TriggerAdmin)
	require.NoError(t, err)
	assert.NotNil(t, res.Proposal)
}

func TestIngestAfterSettlementGoesToNextRun(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "next@example.com", nil)
	ctx := context.Background()

	_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	first, err := f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	require.NotNil(t, first.Proposal)
	assert.Equal(t, 0.6, first.Proposal.TotalRevenueUSD)

	f.clock.Advance(time.Minute)
	_, err = f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)

	rec, err := f.engine.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "%+v", rec)
	assert.Equal(t, 0.6, rec.LedgerPendingUSD)

	f.clock.Advance(time.Minute)
	second, err := f.engine.CreateSettlement(ctx, TriggerSchedule)
	require.NoError(t, err)
	require.NotNil(t, second.Proposal)
	assert.Equal(t, 0.6, second.Proposal.TotalRevenueUSD)
	assert.Equal(t, 840.0, f.balance(t, u.ID).LockedWin)
}
