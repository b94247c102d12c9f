package services

import (
	"context"
	"testing"
	"time"

	"winledger/errutil"
	"winledger/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProposal(t *testing.T, f *fixture) *models.Settlement {
	t.Helper()
	u := f.user(t, uuid.NewString()[:8]+"@example.com", nil)
	f.setBalance(t, u.ID, map[string]any{"pending_revenue_usd": 1.0})
	res, err := f.engine.CreateSettlement(context.Background(), TriggerAdmin)
	require.NoError(t, err)
	require.NotNil(t, res.Proposal)
	return res.Proposal
}

func TestSettlementWorkflow(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.admin(t)
	ctx := context.Background()
	p := createProposal(t, f)

	_, err := f.engine.ExecuteSettlement(ctx, p.ID, []string{"sig"}, admin)
	be := requireErrCode(t, err, errutil.CodeConflict)
	assert.Equal(t, "settlement must be approved first", be.Message)

	approved, err := f.engine.ApproveSettlement(ctx, p.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.ID, *approved.ApprovedBy)

	_, err = f.engine.ApproveSettlement(ctx, p.ID, admin)
	requireErrCode(t, err, errutil.CodeConflict)

	_, err = f.engine.ExecuteSettlement(ctx, p.ID, []string{" ", ""}, admin)
	requireErrCode(t, err, errutil.CodeValidationFailed)

	executed, err := f.engine.ExecuteSettlement(ctx, p.ID, []string{"5xKq1, 3Jd9", " 5xKq1 "}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementExecuted, executed.Status)
	assert.Equal(t, []string{"5xKq1", "3Jd9"}, []string(executed.TransactionSignatures))

	_, err = f.engine.ExecuteSettlement(ctx, p.ID, []string{"other"}, admin)
	be = requireErrCode(t, err, errutil.CodeConflict)
	assert.Equal(t, "settlement already executed", be.Message)

	stored, err := f.engine.GetSettlement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"5xKq1", "3Jd9"}, []string(stored.TransactionSignatures), "executed settlements are immutable")
	assert.Len(t, stored.Entries, 1)
}

func TestSettlementLookupErrors(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.admin(t)
	ctx := context.Background()

	_, err := f.engine.ApproveSettlement(ctx, "not-a-uuid", admin)
	requireErrCode(t, err, errutil.CodeValidationFailed)

	_, err = f.engine.ApproveSettlement(ctx, uuid.NewString(), admin)
	requireErrCode(t, err, errutil.CodeNotFound)

	_, err = f.engine.ExecuteSettlement(ctx, uuid.NewString(), []string{"sig"}, admin)
	requireErrCode(t, err, errutil.CodeNotFound)
}

func TestPendingSettlementsExcludeExecuted(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.admin(t)
	ctx := context.Background()

	first := createProposal(t, f)
	f.clock.Advance(24 * time.Hour)
	second := createProposal(t, f)

	_, err := f.engine.ApproveSettlement(ctx, first.ID, admin)
	require.NoError(t, err)
	_, err = f.engine.ExecuteSettlement(ctx, first.ID, []string{"sig"}, admin)
	require.NoError(t, err)

	pending, err := f.engine.PendingSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	history, err := f.engine.SettlementHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
}

func TestAddTestRevenue(t *testing.T) {
	f := newFixture(t, nil)
	a := f.user(t, "a@example.com", nil)
	b := f.user(t, "b@example.com", nil)
	ctx := context.Background()

	n, err := f.engine.AddTestRevenue(ctx, 1.5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []uint{a.ID, b.ID} {
		assert.Equal(t, 1.5, f.balance(t, id).PendingRevenueUSD)
		rec, err := f.engine.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
	}

	_, err = f.engine.AddTestRevenue(ctx, -1)
	requireErrCode(t, err, errutil.CodeValidationFailed)
}
