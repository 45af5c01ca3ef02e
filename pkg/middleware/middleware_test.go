package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

func runWithUser(t *testing.T, mw echo.MiddlewareFunc, userID interface{}) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != nil {
		c.Set("user_id", userID)
	}

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	require.NoError(t, mw(handler)(c))
	return rec
}

func seedRoleUser(t *testing.T, db *gorm.DB, role, status string) *dbmodels.User {
	t.Helper()

	ag := testdata.NewAgency(t, db)
	user := &dbmodels.User{
		AgencyID:  ag.ID,
		Email:     role + "@example.com",
		FirstName: "Role",
		LastName:  "Test",
		Role:      role,
		Status:    status,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRequireAdmin(t *testing.T) {
	db := testdata.NewDB(t)
	mw := RequireAdmin(db)

	admin := seedRoleUser(t, db, dbmodels.RoleAdmin, dbmodels.StatusActive)
	agent := seedRoleUser(t, db, dbmodels.RoleAgent, dbmodels.StatusActive)

	assert.Equal(t, http.StatusOK, runWithUser(t, mw, admin.ID).Code)
	assert.Equal(t, http.StatusForbidden, runWithUser(t, mw, agent.ID).Code)
	assert.Equal(t, http.StatusUnauthorized, runWithUser(t, mw, nil).Code)
}

func TestRequireAgent(t *testing.T) {
	db := testdata.NewDB(t)
	mw := RequireAgent(db)

	admin := seedRoleUser(t, db, dbmodels.RoleAdmin, dbmodels.StatusActive)
	agent := seedRoleUser(t, db, dbmodels.RoleAgent, dbmodels.StatusActive)
	client := seedRoleUser(t, db, dbmodels.RoleClient, dbmodels.StatusActive)

	assert.Equal(t, http.StatusOK, runWithUser(t, mw, admin.ID).Code)
	assert.Equal(t, http.StatusOK, runWithUser(t, mw, agent.ID).Code)
	assert.Equal(t, http.StatusForbidden, runWithUser(t, mw, client.ID).Code)
}

func TestRequireAgentSuspended(t *testing.T) {
	db := testdata.NewDB(t)
	mw := RequireAgent(db)

	suspended := seedRoleUser(t, db, dbmodels.RoleAgent, dbmodels.StatusInactive)

	rec := runWithUser(t, mw, suspended.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "account_suspended")
}

func TestRequireRoleUnknownUser(t *testing.T) {
	db := testdata.NewDB(t)
	mw := RequireAgent(db)

	assert.Equal(t, http.StatusUnauthorized, runWithUser(t, mw, uint(9999)).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	mw := rl.RateLimitMiddleware()

	e := echo.New()
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, mw(handler)(c))
		codes = append(codes, rec.Code)
	}

	// Burst of 2, then limited.
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.9.9.9:5000"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, mw(handler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
