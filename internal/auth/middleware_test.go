package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/workspaces"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Workspace{}, &models.WorkspaceMember{}, &models.Agent{}))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	return db
}

func initTestJWT(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-signing-secret")
	InitJWT()
}

func newAuthedRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", Middleware(db), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetUint("user_id"),
			"clerk_id": c.GetString("clerk_id"),
		})
	})
	return router
}

func get(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	w := get(newAuthedRouter(db), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "No authorization token provided")
}

func TestMiddlewareRejectsGarbageToken(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	w := get(newAuthedRouter(db), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	token, err := GenerateToken("user_exp", "exp@example.com", "Expired", -time.Minute)
	require.NoError(t, err)

	w := get(newAuthedRouter(db), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareResolvesExistingUser(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	_, _, err := workspaces.Provision("user_auth1", "a1@example.com", "Authed")
	require.NoError(t, err)

	token, err := GenerateToken("user_auth1", "a1@example.com", "Authed", time.Hour)
	require.NoError(t, err)

	w := get(newAuthedRouter(db), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"clerk_id":"user_auth1"`)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestMiddlewareLazyProvisionsUnknownAccount(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	token, err := GenerateToken("user_lazy", "lazy@example.com", "Lazy Larry", time.Hour)
	require.NoError(t, err)

	w := get(newAuthedRouter(db), token)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, db.Where("clerk_id = ?", "user_lazy").First(&user).Error)

	var workspace models.Workspace
	require.NoError(t, db.Where("owner_id = ?", "user_lazy").First(&workspace).Error)
	assert.Equal(t, "Lazy Larry's Workspace", workspace.Name)
}

func TestMiddlewareUnknownAccountWithoutEmailRejected(t *testing.T) {
	db := setupTestDB(t)
	initTestJWT(t)

	token, err := GenerateToken("user_ghost", "", "", time.Hour)
	require.NoError(t, err)

	w := get(newAuthedRouter(db), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "User not found")
}

func TestParseTokenFallsBackToSubject(t *testing.T) {
	setupTestDB(t)
	initTestJWT(t)

	token, err := GenerateToken("user_sub", "sub@example.com", "Sub", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_sub", claims.ClerkID)
	assert.Equal(t, "user_sub", claims.Subject)
}
