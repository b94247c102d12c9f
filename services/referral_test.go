package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	referrer := f.user(t, "host@example.com", nil)
	player := f.user(t, "player@example.com", &referrer.ID)

	_, err := f.engine.RecordGamePlay(ctx, player, PlayInput{GameType: GameSpin, AdWatched: true})
	require.NoError(t, err)

	stats, err := f.engine.ReferralStats(ctx, referrer)
	require.NoError(t, err)

	assert.Equal(t, referrer.ReferralCode, stats.ReferralCode)
	assert.EqualValues(t, 1, stats.TotalReferrals)
	assert.InDelta(t, 0.06, stats.ReferralEarningsUSD, 1e-9)
	assert.InDelta(t, 3.6, stats.ReferralEarningsTokens, 1e-9)
	require.Len(t, stats.ReferredUsers, 1)
	assert.Equal(t, "pl***@example.com", stats.ReferredUsers[0].Email)

	bal := f.balance(t, referrer.ID)
	assert.InDelta(t, 0.06, bal.PendingRevenueUSD, 1e-9)
	assert.Zero(t, bal.TotalEarningsUSD)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ab***@x.io", MaskEmail("abcdef@x.io"))
	assert.Equal(t, "a***@x.io", MaskEmail("a@x.io"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}
