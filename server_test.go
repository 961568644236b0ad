package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T, withDB bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("JWT_SECRET", "homerly-server-test")

	prev := config.GetDB()
	t.Cleanup(func() { config.SetDB(prev) })
	config.SetDB(nil)
	if withDB {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
		require.NoError(t, models.Migrate(db))
		config.SetDB(db)
	}
	return newRouter(config.GetLogger())
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzWithoutDatabase(t *testing.T) {
	r := testRouter(t, false)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/properties", "", nil).Code)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	r := testRouter(t, true)

	w := do(r, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())

	w = do(r, http.MethodGet, "/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	r := testRouter(t, true)

	w := do(r, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "owner@homerly.test",
		"password":  "secret123",
		"full_name": "Nguyen Van A",
		"role":      "owner",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/auth/register", "", gin.H{"email": "broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"email": "owner@homerly.test", "password": "wrong-one"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"email": "owner@homerly.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token   string `json:"token"`
		Account struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"account"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = do(r, http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"owner@homerly.test"`)

	// unapproved owners cannot list properties
	w = do(r, http.MethodPost, "/properties", login.Token, gin.H{"title": "Loft", "address": "1 Le Loi", "monthly_rent": "8000000"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/invoices/not-a-uuid", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid id"}`, w.Body.String())
}

func TestWebhookRequiresSignature(t *testing.T) {
	r := testRouter(t, true)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_server_test")

	w := do(r, http.MethodPost, "/payments/webhook", "", gin.H{"type": "checkout.session.completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountAndChatRoutes(t *testing.T) {
	r := testRouter(t, true)

	w := do(r, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "tenant@homerly.test",
		"password":  "secret123",
		"full_name": "Tran Thi B",
		"role":      "user",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"email": "tenant@homerly.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(r, http.MethodGet, "/admin/accounts", login.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/admin/accounts?is_deleted=maybe", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/properties?min_rent=cheap", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid min_rent"}`, w.Body.String())

	// no admin exists yet
	w = do(r, http.MethodPost, "/chat/messages", login.Token, gin.H{"message": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/chat/messages?with=nope", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
