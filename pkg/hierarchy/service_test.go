package hierarchy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testdata.NewDB(t)
	return NewService(db, logger.Default(), nil), db
}

func TestWriteSnapshotsAndChain(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	chain := testdata.AgentChain(t, db, ag.ID, []string{"MGA", "GA", "Agent"}, []int64{115, 100, 85})
	root, mid, writer := chain[0], chain[1], chain[2]

	deal := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 100)
	require.NoError(t, svc.WriteSnapshots(db, deal))

	resp, err := svc.Chain(ctx, ag.ID, deal.ID)
	require.NoError(t, err)

	assert.Equal(t, writer.ID, resp.WritingAgentID)
	require.Len(t, resp.Entries, 3)

	// Rendered top of hierarchy first, levels descending to the writer.
	assert.Equal(t, root.ID, resp.Entries[0].AgentID)
	assert.Equal(t, 2, resp.Entries[0].Level)
	assert.Equal(t, mid.ID, resp.Entries[1].AgentID)
	assert.Equal(t, 1, resp.Entries[1].Level)
	assert.Equal(t, writer.ID, resp.Entries[2].AgentID)
	assert.Equal(t, 0, resp.Entries[2].Level)

	// Annual premium is 1200.00; earned = annual * rate / 100.
	assert.Equal(t, "1380.00", resp.Entries[0].EarnedAmount)
	assert.Equal(t, "1200.00", resp.Entries[1].EarnedAmount)
	assert.Equal(t, "1020.00", resp.Entries[2].EarnedAmount)
}

func TestChainImmuneToLaterUplineChanges(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	chain := testdata.AgentChain(t, db, ag.ID, []string{"MGA", "Agent"}, []int64{110, 85})
	root, writer := chain[0], chain[1]

	deal := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 80)
	require.NoError(t, svc.WriteSnapshots(db, deal))

	// The agent later moves under a different upline with a new rate.
	newUpline := testdata.NewAgent(t, db, ag.ID, 0, "SGA", 125)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", writer.ID).Updates(map[string]interface{}{
		"upline_id":       newUpline.ID,
		"commission_rate": decimal.NewFromInt(90),
	}).Error)

	resp, err := svc.Chain(ctx, ag.ID, deal.ID)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, root.ID, resp.Entries[0].AgentID)
	assert.Equal(t, "85.00", resp.Entries[1].Rate)
}

func TestChainTruncatesOnMissingSnapshot(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	chain := testdata.AgentChain(t, db, ag.ID, []string{"MGA", "GA", "Agent"}, []int64{115, 100, 85})
	mid, writer := chain[1], chain[2]

	deal := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 100)
	require.NoError(t, svc.WriteSnapshots(db, deal))

	// Simulate an imported deal with a gap in its snapshot rows.
	require.NoError(t, db.Where("deal_id = ? AND agent_id = ?", deal.ID, mid.ID).
		Delete(&models.CommissionSnapshot{}).Error)

	resp, err := svc.Chain(ctx, ag.ID, deal.ID)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, writer.ID, resp.Entries[0].AgentID)
}

func TestChainNoSnapshots(t *testing.T) {
	svc, db := newTestService(t)

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)

	deal := &models.Deal{
		AgencyID:        ag.ID,
		CarrierID:       carrier.ID,
		ProductID:       product.ID,
		ClientFirstName: "No",
		ClientLastName:  "Attribution",
		MonthlyPremium:  decimal.NewFromInt(40),
		AnnualPremium:   decimal.NewFromInt(480),
		BillingCycle:    models.BillingMonthly,
		Status:          models.DealStatusSubmitted,
	}
	require.NoError(t, db.Create(deal).Error)

	_, err := svc.Chain(context.Background(), ag.ID, deal.ID)
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestChainFallsBackToHighestEarningSnapshotAgent(t *testing.T) {
	svc, db := newTestService(t)

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	chain := testdata.AgentChain(t, db, ag.ID, []string{"MGA", "Agent"}, []int64{110, 85})
	root, writer := chain[0], chain[1]

	deal := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 100)
	require.NoError(t, svc.WriteSnapshots(db, deal))

	// Agent attribution lost, e.g. a migrated record.
	require.NoError(t, db.Model(deal).Update("agent_id", nil).Error)

	resp, err := svc.Chain(context.Background(), ag.ID, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, resp.WritingAgentID)
}

func TestChainScopedToAgency(t *testing.T) {
	svc, db := newTestService(t)

	ag := testdata.NewAgency(t, db)
	other := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)

	deal := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 100)
	require.NoError(t, svc.WriteSnapshots(db, deal))

	_, err := svc.Chain(context.Background(), other.ID, deal.ID)
	require.Error(t, err)
}

func TestCheckPositions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)

	t.Run("complete chain passes", func(t *testing.T) {
		chain := testdata.AgentChain(t, db, ag.ID, []string{"MGA", "Agent"}, []int64{110, 85})
		resp, err := svc.CheckPositions(ctx, chain[1].ID)
		require.NoError(t, err)
		assert.True(t, resp.OK)
		assert.Empty(t, resp.Missing)
	})

	t.Run("unassigned upline is reported by name", func(t *testing.T) {
		upline := testdata.NewAgent(t, db, ag.ID, 0, "", 110)
		writer := testdata.NewAgent(t, db, ag.ID, upline.ID, "Agent", 85)

		resp, err := svc.CheckPositions(ctx, writer.ID)
		require.NoError(t, err)
		assert.False(t, resp.OK)
		require.Len(t, resp.Missing, 1)
		assert.Equal(t, upline.FullName(), resp.Missing[0])
	})
}

func TestDownline(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)

	root := testdata.NewAgent(t, db, ag.ID, 0, "MGA", 110)
	childA := testdata.NewAgent(t, db, ag.ID, root.ID, "GA", 100)
	childB := testdata.NewAgent(t, db, ag.ID, root.ID, "GA", 95)
	grandchild := testdata.NewAgent(t, db, ag.ID, childA.ID, "Agent", 85)

	testdata.NewDeal(t, db, ag.ID, grandchild.ID, carrier.ID, product.ID, 60)
	testdata.NewDeal(t, db, ag.ID, grandchild.ID, carrier.ID, product.ID, 70)

	entries, err := svc.Downline(ctx, ag.ID, root.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byID := map[uint]int{}
	for i, entry := range entries {
		byID[entry.ID] = i
	}

	assert.Equal(t, 1, entries[byID[childA.ID]].Depth)
	assert.Equal(t, 1, entries[byID[childB.ID]].Depth)
	assert.Equal(t, 2, entries[byID[grandchild.ID]].Depth)
	assert.Equal(t, int64(2), entries[byID[grandchild.ID]].DealCount)
	assert.Equal(t, childA.ID, entries[byID[grandchild.ID]].UplineID)

	// A leaf agent has no downline.
	leaf, err := svc.Downline(ctx, ag.ID, grandchild.ID)
	require.NoError(t, err)
	assert.Empty(t, leaf)
}
