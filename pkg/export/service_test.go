package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/agency"
	"github.com/nvalencia/agentbook/pkg/clients"
	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/deals"
	"github.com/nvalencia/agentbook/pkg/email"
	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/logger"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
	"github.com/nvalencia/agentbook/pkg/notify"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testdata.NewDB(t)
	cacheClient := testdata.NewCache(t)
	log := logger.Default()

	agencies := agency.NewService(db, cacheClient)
	hierarchySvc := hierarchy.NewService(db, log, nil)
	emailSvc := email.NewService("noreply@example.com", "Test", "http://localhost:3000", "")
	invites := clients.NewService(db, emailSvc, log, nil)
	notifier := notify.NewNotifier(log, nil)
	dealSvc := deals.NewService(db, cacheClient, agencies, hierarchySvc, invites, notifier, log, nil)

	return NewService(dealSvc, log), db
}

func seedDeals(t *testing.T, db *gorm.DB, n int) uint {
	t.Helper()

	ag := testdata.NewAgency(t, db)
	carrier, product := testdata.NewCarrierWithProduct(t, db, ag.ID)
	writer := testdata.NewAgent(t, db, ag.ID, 0, "Agent", 85)
	for i := 0; i < n; i++ {
		testdata.NewDeal(t, db, ag.ID, writer.ID, carrier.ID, product.ID, int64(40+i))
	}
	return ag.ID
}

func TestBookOfBusinessCSV(t *testing.T) {
	svc, db := newTestService(t)
	agencyID := seedDeals(t, db, 7)

	result, err := svc.BookOfBusiness(context.Background(), agencyID, FormatCSV, apimodels.BookOfBusinessRequest{})
	require.NoError(t, err)

	assert.Equal(t, 7, result.RowCount)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "book-of-business-"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 8) // header + 7 rows
	assert.Equal(t, exportHeaders, records[0])
	for _, record := range records[1:] {
		assert.Len(t, record, len(exportHeaders))
	}
}

func TestBookOfBusinessExcel(t *testing.T) {
	svc, db := newTestService(t)
	agencyID := seedDeals(t, db, 3)

	result, err := svc.BookOfBusiness(context.Background(), agencyID, FormatExcel, apimodels.BookOfBusinessRequest{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowCount)
	assert.True(t, strings.HasSuffix(result.Filename, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Book of Business")
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 3 rows
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Created At", rows[0][len(exportHeaders)-1])
}

func TestBookOfBusinessSpansPages(t *testing.T) {
	svc, db := newTestService(t)
	// More rows than one book page (100) forces cursor-following.
	agencyID := seedDeals(t, db, 130)

	result, err := svc.BookOfBusiness(context.Background(), agencyID, FormatCSV, apimodels.BookOfBusinessRequest{})
	require.NoError(t, err)
	assert.Equal(t, 130, result.RowCount)
}

func TestBookOfBusinessHonorsFilters(t *testing.T) {
	svc, db := newTestService(t)
	agencyID := seedDeals(t, db, 4)

	var lapsed models.Deal
	require.NoError(t, db.Where("agency_id = ?", agencyID).First(&lapsed).Error)
	require.NoError(t, db.Model(&lapsed).Update("status", models.DealStatusLapsed).Error)

	result, err := svc.BookOfBusiness(context.Background(), agencyID, FormatCSV,
		apimodels.BookOfBusinessRequest{Status: models.DealStatusLapsed})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
}

func TestBookOfBusinessInvalidFormat(t *testing.T) {
	svc, db := newTestService(t)
	agencyID := seedDeals(t, db, 1)

	_, err := svc.BookOfBusiness(context.Background(), agencyID, "pdf", apimodels.BookOfBusinessRequest{})
	require.ErrorContains(t, err, "invalid format")
}

func TestBookOfBusinessEmptyBook(t *testing.T) {
	svc, db := newTestService(t)
	ag := testdata.NewAgency(t, db)

	result, err := svc.BookOfBusiness(context.Background(), ag.ID, FormatCSV, apimodels.BookOfBusinessRequest{})
	require.NoError(t, err)
	assert.Zero(t, result.RowCount)

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}
