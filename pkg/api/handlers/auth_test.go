package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/config"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/auth"
	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/models"
	"github.com/nvalencia/agentbook/pkg/testdata"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *gorm.DB) {
	t.Helper()

	db := testdata.NewDB(t)
	cacheClient := testdata.NewCache(t)
	cfg := &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 24,
	}
	blacklist := auth.NewTokenBlacklist(cacheClient)

	return NewAuthHandler(db, cfg, blacklist, audit.NewService(db), testdata.NewMetrics(t)), db
}

func seedUser(t *testing.T, db *gorm.DB, email, password, status string) *dbmodels.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	ag := testdata.NewAgency(t, db)
	user := &dbmodels.User{
		AgencyID:     ag.ID,
		Email:        email,
		FirstName:    "Jordan",
		LastName:     "Reyes",
		PasswordHash: hash,
		Role:         dbmodels.RoleAgent,
		Status:       status,
		Position:     "Agent",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func postJSON(e *echo.Echo, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestLoginSuccess(t *testing.T) {
	h, db := newAuthHandler(t)
	user := seedUser(t, db, "jordan@example.com", "password123", dbmodels.StatusActive)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/login", `{"email": "jordan@example.com", "password": "password123"}`)

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, user.AgencyID, resp.User.AgencyID)
	assert.Equal(t, dbmodels.RoleAgent, resp.User.Role)

	claims, err := auth.ValidateJWT(resp.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.AgencyID, claims.AgencyID)

	var reloaded dbmodels.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.NotNil(t, reloaded.LastLoginAt)
}

func TestLoginWrongPassword(t *testing.T) {
	h, db := newAuthHandler(t)
	seedUser(t, db, "jordan@example.com", "password123", dbmodels.StatusActive)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/login", `{"email": "jordan@example.com", "password": "wrong"}`)

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_credentials", resp.Error)
}

func TestLoginUnknownEmail(t *testing.T) {
	h, _ := newAuthHandler(t)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/login", `{"email": "nobody@example.com", "password": "password123"}`)

	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSuspendedAccount(t *testing.T) {
	h, db := newAuthHandler(t)
	seedUser(t, db, "jordan@example.com", "password123", dbmodels.StatusInactive)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/login", `{"email": "jordan@example.com", "password": "password123"}`)

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "account_suspended", resp.Error)
}

func TestLoginInvitedUserCannotLogIn(t *testing.T) {
	h, db := newAuthHandler(t)

	// Invited clients have no password until setup completes.
	ag := testdata.NewAgency(t, db)
	user := &dbmodels.User{
		AgencyID: ag.ID,
		Email:    "client@example.com",
		Role:     dbmodels.RoleClient,
		Status:   dbmodels.StatusInvited,
	}
	require.NoError(t, db.Create(user).Error)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/login", `{"email": "client@example.com", "password": ""}`)

	require.NoError(t, h.Login(c))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, db := newAuthHandler(t)
	user := seedUser(t, db, "jordan@example.com", "password123", dbmodels.StatusActive)

	token, err := auth.GenerateJWT(user.ID, user.AgencyID, user.Email, user.Role, "test-secret", 24)
	require.NoError(t, err)

	e := echo.New()
	c, rec := postJSON(e, "/api/v1/auth/logout", `{}`)
	c.Set("token", token)
	c.Set("user_id", user.ID)
	c.Set("agency_id", user.AgencyID)

	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	revoked, err := h.blacklist.IsBlacklisted(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMe(t *testing.T) {
	h, db := newAuthHandler(t)
	user := seedUser(t, db, "jordan@example.com", "password123", dbmodels.StatusActive)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", user.ID)

	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var info models.UserInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "jordan@example.com", info.Email)
	assert.Equal(t, "Jordan", info.FirstName)
}
