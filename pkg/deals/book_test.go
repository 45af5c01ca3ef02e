package deals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/database/models"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

// seedBook inserts n deals with distinct creation times so keyset ordering
// is deterministic
func seedBook(t *testing.T, db *gorm.DB, agencyID, agentID, carrierID, productID uint, n int) []*models.Deal {
	t.Helper()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	seeded := make([]*models.Deal, 0, n)
	for i := 0; i < n; i++ {
		deal := testdata.NewDeal(t, db, agencyID, agentID, carrierID, productID, int64(50+i))
		createdAt := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Model(deal).Update("created_at", createdAt).Error)
		deal.CreatedAt = &createdAt
		seeded = append(seeded, deal)
	}
	return seeded
}

func TestBookOfBusinessPagination(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	seedBook(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 30)

	seen := map[uint]bool{}
	cursor := ""
	pages := 0
	for {
		resp, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{
			Limit:  10,
			Cursor: cursor,
		})
		require.NoError(t, err)
		pages++

		var prev *time.Time
		for _, deal := range resp.Data {
			assert.False(t, seen[deal.ID], "deal %d appeared twice", deal.ID)
			seen[deal.ID] = true

			createdAt, err := time.Parse(time.RFC3339, deal.CreatedAt)
			require.NoError(t, err)
			if prev != nil {
				assert.False(t, createdAt.After(*prev), "page not newest first")
			}
			prev = &createdAt
		}

		if !resp.HasMore {
			assert.Empty(t, resp.NextCursor)
			break
		}
		require.NotEmpty(t, resp.NextCursor)
		cursor = resp.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 30)
}

func TestBookOfBusinessPageStableAgainstNewDeals(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	seedBook(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 12)

	first, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{Limit: 5})
	require.NoError(t, err)
	require.True(t, first.HasMore)

	// A deal arriving between page fetches must not shift the next page.
	newest := testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 500)
	future := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(newest).Update("created_at", future).Error)

	second, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{
		Limit:  5,
		Cursor: first.NextCursor,
	})
	require.NoError(t, err)

	firstIDs := map[uint]bool{newest.ID: true}
	for _, deal := range first.Data {
		firstIDs[deal.ID] = true
	}
	for _, deal := range second.Data {
		assert.False(t, firstIDs[deal.ID], "deal %d leaked into the next page", deal.ID)
	}
}

func TestBookOfBusinessFilters(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	seeded := seedBook(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 6)

	lapsed := seeded[0]
	require.NoError(t, db.Model(lapsed).Update("status", models.DealStatusLapsed).Error)
	require.NoError(t, db.Model(seeded[1]).Updates(map[string]interface{}{
		"client_first_name": "Maribel",
		"client_last_name":  "Okafor",
	}).Error)

	t.Run("status", func(t *testing.T) {
		resp, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{Status: models.DealStatusLapsed})
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, lapsed.ID, resp.Data[0].ID)
	})

	t.Run("client name substring case-insensitive", func(t *testing.T) {
		resp, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{Q: "okaf"})
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "Okafor", resp.Data[0].ClientLastName)
	})

	t.Run("other agency sees nothing", func(t *testing.T) {
		other := testdata.NewAgency(t, db)
		resp, err := svc.BookOfBusiness(ctx, other.ID, apimodels.BookOfBusinessRequest{})
		require.NoError(t, err)
		assert.Empty(t, resp.Data)
		assert.False(t, resp.HasMore)
	})
}

func TestBookOfBusinessCaching(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	seedBook(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 3)

	req := apimodels.BookOfBusinessRequest{Limit: 10}
	_, err := svc.BookOfBusiness(ctx, ag.ID, req)
	require.NoError(t, err)

	key := bookCacheKey(ag.ID, &req, 10)
	exists, err := svc.cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists, "page should be cached after first fetch")

	// Any deal write through Submit drops every cached page for the agency.
	submitReq := validSubmitRequest(carrier.ID, product.ID)
	submitReq.ClientEmail = ""
	_, err = svc.Submit(ctx, ag.ID, writer.ID, submitReq)
	require.NoError(t, err)

	exists, err = svc.cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "cached pages should be invalidated by a deal write")
}

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 5, 14, 9, 30, 12, 345678000, time.UTC)
	cursor := encodeCursor(&createdAt, 42)

	ts, id, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(createdAt))
	assert.Equal(t, uint(42), id)

	_, _, err = decodeCursor("not-base64!!")
	assert.Error(t, err)

	_, _, err = decodeCursor("bm8tcGlwZS1oZXJl") // valid base64, malformed payload
	assert.Error(t, err)
}

func TestBookOfBusinessLimitClamp(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	seedBook(t, db, ag.ID, writer.ID, carrier.ID, product.ID, 30)

	resp, err := svc.BookOfBusiness(ctx, ag.ID, apimodels.BookOfBusinessRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Data, defaultPageSize)
	assert.True(t, resp.HasMore)
}
