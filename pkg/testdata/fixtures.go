package testdata

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nvalencia/agentbook/pkg/cache"
	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/metrics"
)

// NewDB opens an isolated in-memory database with the full schema
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	return db
}

// NewCache starts a miniredis-backed cache client
func NewCache(t *testing.T) *cache.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return &cache.Client{
		Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
}

// NewMetrics builds a metrics set on an isolated registry
func NewMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

// NewAgency inserts an agency with every posting feature enabled
func NewAgency(t *testing.T, db *gorm.DB) *models.Agency {
	t.Helper()

	agency := &models.Agency{
		Name:           gofakeit.Company(),
		PostingEnabled: true,
	}
	require.NoError(t, db.Create(agency).Error)
	return agency
}

// NewCarrierWithProduct inserts one carrier and one product under it
func NewCarrierWithProduct(t *testing.T, db *gorm.DB, agencyID uint) (*models.Carrier, *models.Product) {
	t.Helper()

	carrier := &models.Carrier{AgencyID: agencyID, Name: gofakeit.Company(), Active: true}
	require.NoError(t, db.Create(carrier).Error)

	product := &models.Product{
		AgencyID:  agencyID,
		CarrierID: carrier.ID,
		Name:      gofakeit.ProductName(),
		Active:    true,
	}
	require.NoError(t, db.Create(product).Error)

	return carrier, product
}

// NewAgent inserts an active agent. A zero uplineID means no upline.
func NewAgent(t *testing.T, db *gorm.DB, agencyID uint, uplineID uint, position string, rate int64) *models.User {
	t.Helper()

	agent := &models.User{
		AgencyID:       agencyID,
		Email:          gofakeit.Email(),
		FirstName:      gofakeit.FirstName(),
		LastName:       gofakeit.LastName(),
		Role:           models.RoleAgent,
		Status:         models.StatusActive,
		Position:       position,
		CommissionRate: decimal.NewFromInt(rate),
	}
	if uplineID != 0 {
		agent.UplineID = &uplineID
	}
	require.NoError(t, db.Create(agent).Error)
	return agent
}

// AgentChain inserts a root-to-writer chain of agents with descending
// rates and returns them root first
func AgentChain(t *testing.T, db *gorm.DB, agencyID uint, positions []string, rates []int64) []*models.User {
	t.Helper()
	require.Equal(t, len(positions), len(rates))

	chain := make([]*models.User, 0, len(positions))
	upline := uint(0)
	for i := range positions {
		agent := NewAgent(t, db, agencyID, upline, positions[i], rates[i])
		chain = append(chain, agent)
		upline = agent.ID
	}
	return chain
}

// NewDeal inserts a minimal deal written by the given agent
func NewDeal(t *testing.T, db *gorm.DB, agencyID uint, agentID uint, carrierID, productID uint, monthly int64) *models.Deal {
	t.Helper()

	policy := gofakeit.LetterN(2) + gofakeit.DigitN(7)
	now := time.Now()
	premium := decimal.NewFromInt(monthly)

	deal := &models.Deal{
		AgencyID:        agencyID,
		AgentID:         &agentID,
		CarrierID:       carrierID,
		ProductID:       productID,
		PolicyNumber:    &policy,
		ClientFirstName: gofakeit.FirstName(),
		ClientLastName:  gofakeit.LastName(),
		MonthlyPremium:  premium,
		AnnualPremium:   premium.Mul(decimal.NewFromInt(12)),
		BillingCycle:    models.BillingMonthly,
		Status:          models.DealStatusSubmitted,
		SubmittedAt:     &now,
	}
	require.NoError(t, db.Create(deal).Error)
	return deal
}
