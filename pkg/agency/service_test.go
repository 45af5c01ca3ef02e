package agency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

func TestResolveCachesSettings(t *testing.T) {
	db := testdata.NewDB(t)
	cacheClient := testdata.NewCache(t)
	svc := NewService(db, cacheClient)
	ctx := context.Background()

	ag := &models.Agency{
		Name:                "Summit Life Group",
		PostingEnabled:      true,
		TeamsEnabled:        true,
		DiscordWebhookURL:   "https://discord.example/webhook",
		DealMessageTemplate: "{agent_name} wrote {carrier_name}",
	}
	require.NoError(t, db.Create(ag).Error)

	settings, err := svc.Resolve(ctx, ag.ID)
	require.NoError(t, err)
	assert.Equal(t, ag.ID, settings.AgencyID)
	assert.Equal(t, "Summit Life Group", settings.Name)
	assert.True(t, settings.PostingEnabled)
	assert.True(t, settings.TeamsEnabled)

	// A direct row change is invisible while the cache entry lives.
	require.NoError(t, db.Model(ag).Update("posting_enabled", false).Error)

	cached, err := svc.Resolve(ctx, ag.ID)
	require.NoError(t, err)
	assert.True(t, cached.PostingEnabled)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	db := testdata.NewDB(t)
	cacheClient := testdata.NewCache(t)
	svc := NewService(db, cacheClient)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)

	// Prime the cache.
	_, err := svc.Resolve(ctx, ag.ID)
	require.NoError(t, err)

	enabled := true
	name := "Renamed Agency"
	updated, err := svc.Update(ctx, ag.ID, UpdateInput{
		Name:         &name,
		TeamsEnabled: &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Agency", updated.Name)
	assert.True(t, updated.TeamsEnabled)

	// The next resolve sees the change immediately.
	resolved, err := svc.Resolve(ctx, ag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Agency", resolved.Name)
	assert.True(t, resolved.TeamsEnabled)

	// Untouched fields survive a partial update.
	assert.True(t, resolved.PostingEnabled)
}

func TestResolveUnknownAgency(t *testing.T) {
	db := testdata.NewDB(t)
	svc := NewService(db, testdata.NewCache(t))

	_, err := svc.Resolve(context.Background(), 9999)
	require.Error(t, err)
}

func TestAgenciesCoexistWithoutWhiteLabelDomain(t *testing.T) {
	db := testdata.NewDB(t)

	first := &models.Agency{Name: "Summit Life Group", PostingEnabled: true}
	second := &models.Agency{Name: "Harbor Financial", PostingEnabled: true}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(second).Error)

	domain := "portal.summitlife.example"
	require.NoError(t, db.Model(first).Update("white_label_domain", &domain).Error)

	// A configured domain is still exclusive to one agency.
	dup := &models.Agency{Name: "Copycat Co", WhiteLabelDomain: &domain}
	assert.Error(t, db.Create(dup).Error)
}
