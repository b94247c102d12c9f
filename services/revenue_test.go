package services

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"winledger/errutil"
	"winledger/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGamePlaySpinScenario(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "spin@example.com", nil)

	res, err := f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.TotalRevenueUSD)
	assert.Equal(t, 0.6, res.EarnedUSD)
	assert.Equal(t, 0.4, res.LiquidityUSD)
	assert.Equal(t, 36.0, res.WinTokens)
	assert.Equal(t, 0.6, res.PendingRevenueUSD)
	assert.Equal(t, 60, res.CooldownSeconds)
	assert.NotEmpty(t, res.EventID)

	bal := f.balance(t, u.ID)
	assert.Equal(t, 0.6, bal.PendingRevenueUSD)
	assert.Equal(t, 0.6, bal.TotalEarningsUSD)
	assert.Equal(t, 0.6, bal.TodayEarningsUSD)
	assert.Equal(t, int64(1), bal.GamesPlayed)
	assert.Zero(t, bal.LockedWin, "ingest never touches locked WIN")

	var events []models.RevenueEvent
	require.NoError(t, f.db.Where("user_id = ?", u.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventKindGame, events[0].Kind)
	assert.Equal(t, 0.6, events[0].SharePct)
}

func TestRecordGamePlayWinTokensAreThirtySixTimesRevenue(t *testing.T) {
	for _, cpm := range []float64{1000, 500, 12, 2.5, 0.5} {
		t.Run(fmt.Sprintf("cpm_%v", cpm), func(t *testing.T) {
			f := newFixture(t, nil, WithCPMTable(FlatCPMTable(cpm)))
			u := f.user(t, "prop@example.com", nil)

			res, err := f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "tap", AdWatched: true})
			require.NoError(t, err)

			var ev models.RevenueEvent
			require.NoError(t, f.db.Take(&ev, "id = ?", res.EventID).Error)

			x := cpm / 1000
			assert.InDelta(t, x, ev.RevenueUSD, 1e-9)
			assert.InDelta(t, 36*x, ev.WinTokens, 1e-9)
			assert.InDelta(t, ev.RevenueUSD, ev.EarnedUSD+ev.Liquidity, 1e-9)
		})
	}
}

func TestRecordGamePlayCooldownPerGameType(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "cool@example.com", nil)
	ctx := context.Background()

	_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "tap", AdWatched: true})
	require.NoError(t, err)

	f.clock.Advance(4 * time.Second)
	_, err = f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "tap", AdWatched: true})
	be := requireErrCode(t, err, errutil.CodeTooManyRequests)
	assert.Equal(t, 6*time.Second, be.RetryAfter)

	_, err = f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "quiz", AdWatched: true})
	require.NoError(t, err, "quiz has its own window")

	f.clock.Advance(6 * time.Second)
	_, err = f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "tap", AdWatched: true})
	require.NoError(t, err)

	bal := f.balance(t, u.ID)
	assert.Equal(t, int64(3), bal.GamesPlayed, "rejected plays leave no trace")
	assert.InDelta(t, 1.8, bal.PendingRevenueUSD, 1e-9)
}

func TestRecordGamePlayRejectsUnknownGame(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "bad@example.com", nil)

	_, err := f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "poker", AdWatched: true})
	requireErrCode(t, err, errutil.CodeValidationFailed)

	var n int64
	require.NoError(t, f.db.Model(&models.RevenueEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRecordGamePlayWithoutAdEarnsNothing(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "noad@example.com", nil)

	res, err := f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "quiz"})
	require.NoError(t, err)
	assert.Zero(t, res.EarnedUSD)
	assert.Zero(t, res.WinTokens)

	bal := f.balance(t, u.ID)
	assert.Zero(t, bal.PendingRevenueUSD)
	assert.Equal(t, int64(1), bal.GamesPlayed)
}

func TestRecordGamePlayCreditsReferrer(t *testing.T) {
	f := newFixture(t, nil)
	referrer := f.user(t, "referrer@example.com", nil)
	player := f.user(t, "player@example.com", &referrer.ID)

	_, err := f.engine.RecordGamePlay(context.Background(), player, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)

	bal := f.balance(t, referrer.ID)
	assert.InDelta(t, 0.06, bal.PendingRevenueUSD, 1e-9)
	assert.InDelta(t, 0.06, bal.ReferralEarningsUSD, 1e-9)
	assert.Zero(t, bal.TotalEarningsUSD)

	var ev models.RevenueEvent
	require.NoError(t, f.db.Where("user_id = ? AND kind = ?", referrer.ID, models.EventKindReferral).Take(&ev).Error)
	require.NotNil(t, ev.SourceUser)
	assert.Equal(t, player.ID, *ev.SourceUser)
}

func TestRecordGamePlayUsesCountryTier(t *testing.T) {
	f := newFixture(t, nil, WithCPMTable(DefaultCPMTable()))
	u := f.user(t, "geo@example.com", nil)

	res, err := f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "tap", AdWatched: true, Country: "de"})
	require.NoError(t, err)
	assert.Equal(t, 0.012, res.TotalRevenueUSD)
	assert.Equal(t, "DE • video CPM $12.00", res.GeoInfo)

	f.clock.Advance(time.Minute)
	res, err = f.engine.RecordGamePlay(context.Background(), u, PlayInput{GameType: "tap", AdWatched: true, WatchAgain: true, Country: "BR"})
	require.NoError(t, err)
	assert.Equal(t, 0.002, res.TotalRevenueUSD)
	assert.Equal(t, "BR • interstitial CPM $2.00", res.GeoInfo)
}

func TestGameHistoryNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	u := f.user(t, "hist@example.com", nil)
	ctx := context.Background()

	for _, g := range []string{"tap", "spin", "quiz"} {
		_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: g, AdWatched: true})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	sessions, err := f.engine.GameHistory(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "quiz", sessions[0].GameType)
	assert.Equal(t, "tap", sessions[2].GameType)
}

func TestLiveFeedSince(t *testing.T) {
	f := newFixture(t, nil)
	a := f.user(t, "alice@example.com", nil)
	b := f.user(t, "bob@example.com", nil)
	ctx := context.Background()

	_, err := f.engine.RecordGamePlay(ctx, a, PlayInput{GameType: "tap", AdWatched: true})
	require.NoError(t, err)
	cursor := f.clock.Now()
	f.clock.Advance(time.Second)
	_, err = f.engine.RecordGamePlay(ctx, b, PlayInput{GameType: "spin", AdWatched: true})
	require.NoError(t, err)
	_, err = f.engine.RecordGamePlay(ctx, a, PlayInput{GameType: "quiz"})
	require.NoError(t, err)

	all, err := f.engine.LiveFeed(ctx, 50, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2, "plays without an ad are not shown")
	assert.Equal(t, "bo***@example.com", all[0].User)

	fresh, err := f.engine.LiveFeed(ctx, 50, cursor)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, all[0].ID, fresh[0].ID)
	assert.Equal(t, int64(1), fresh[0].UserStats.Rank)
}

func TestLiveFeedRanksAgainstAllBalances(t *testing.T) {
	f := newFixture(t, nil)
	a := f.user(t, "alice@example.com", nil)
	b := f.user(t, "bob@example.com", nil)
	c := f.user(t, "carol@example.com", nil)
	top := f.user(t, "top@example.com", nil)
	ctx := context.Background()

	for _, u := range []models.User{a, b, c} {
		_, err := f.engine.RecordGamePlay(ctx, u, PlayInput{GameType: "tap", AdWatched: true})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	f.setBalance(t, a.ID, map[string]any{"total_earnings_usd": 10})
	f.setBalance(t, b.ID, map[string]any{"total_earnings_usd": 30})
	f.setBalance(t, c.ID, map[string]any{"total_earnings_usd": 30})
	f.setBalance(t, top.ID, map[string]any{"total_earnings_usd": 50})

	feed, err := f.engine.LiveFeed(ctx, 50, time.Time{})
	require.NoError(t, err)
	require.Len(t, feed, 3)

	ranks := make(map[string]int64)
	for _, item := range feed {
		ranks[item.User] = item.UserStats.Rank
	}
	assert.Equal(t, int64(2), ranks[MaskEmail(b.Email)])
	assert.Equal(t, int64(2), ranks[MaskEmail(c.Email)], "ties share a rank")
	assert.Equal(t, int64(4), ranks[MaskEmail(a.Email)])
	assert.Equal(t, 10.0, feed[2].UserStats.TotalEarnings)
}

func TestRedisCooldown(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	_ = conn.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	rc := NewRedisCooldown(client)
	rc.Prefix = "winledger:test:" + t.Name()
	ctx := context.Background()
	t.Cleanup(func() { _ = rc.Release(ctx, 1, GameTap) })

	left, err := rc.Acquire(ctx, nil, 1, GameTap, 2*time.Second, time.Now())
	require.NoError(t, err)
	assert.Zero(t, left)

	left, err = rc.Acquire(ctx, nil, 1, GameTap, 2*time.Second, time.Now())
	require.NoError(t, err)
	assert.Greater(t, left, time.Duration(0))
	assert.LessOrEqual(t, left, 2*time.Second)

	require.NoError(t, rc.Release(ctx, 1, GameTap))
	left, err = rc.Acquire(ctx, nil, 1, GameTap, 2*time.Second, time.Now())
	require.NoError(t, err)
	assert.Zero(t, left)
}
