package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

const testPassword = "correct horse battery staple"

type testEnv struct {
	router *gin.Engine
	mr     *miniredis.Miniredis
	db     *gorm.DB
	apps   services.ApplicationService
	users  services.UserService
	server *auth.Server
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&models.User{}, &models.Application{}, &models.ApplicationScope{}, &models.ScopeGrant{})
	require.NoError(t, err)

	return db
}

func setupTestEnv(t *testing.T, adminClients ...string) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	s := store.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = s.Close() })

	db := setupTestDB(t)
	apps := services.NewApplicationService(db)
	users := services.NewUserService(db)
	m := metrics.New()

	srv, err := auth.NewServer(auth.Options{
		Store:        s,
		Applications: apps,
		Users:        users,
		Passwords:    services.BcryptVerifier{},
		Issuer:       "https://auth.test",
		ServerSecret: "test-server-secret-key-32-characters",
		PublicURL:    "https://auth.test",
		Metrics:      m,
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, Routes{
		Auth:         NewAuthController(srv, users, bcrypt.MinCost),
		Applications: NewApplicationController(apps),
		Health: NewHealthController("device-auth", map[string]Pinger{
			"store": srv,
		}),
		Validator:    srv.Validator,
		AdminClients: adminClients,
		Metrics:      m.Handler(),
	})

	return &testEnv{router: router, mr: mr, db: db, apps: apps, users: users, server: srv}
}

func (e *testEnv) createApp(t *testing.T, clientID string, scopes ...models.ApplicationScope) *models.Application {
	t.Helper()
	app := &models.Application{ClientID: clientID, DisplayName: "Test App", Active: true, Scopes: scopes}
	require.NoError(t, e.apps.CreateApplication(context.Background(), app))
	return app
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, user.SetPassword(testPassword, bcrypt.MinCost))
	require.NoError(t, e.users.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

// login runs the device flow over HTTP and returns the issued tokens
func (e *testEnv) login(t *testing.T, clientID, email string) auth.TokenResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": clientID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var da auth.DeviceAuthorization
	decodeBody(t, w, &da)

	loginPath := "/oauth2/v1/" + clientID + "/" + da.UserCode + "/login"
	w = e.do(t, http.MethodPost, loginPath, gin.H{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	decodeBody(t, w, &resp)
	if resp.Outcome == auth.OutcomeConsentRequired {
		w = e.do(t, http.MethodPost, "/oauth2/v1/"+clientID+"/"+da.UserCode+"/consent", gin.H{"approve": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		decodeBody(t, w, &resp)
	}
	require.Equal(t, auth.OutcomeAuthorized, resp.Outcome)

	w = e.do(t, http.MethodPost, "/oauth2/v1/token", gin.H{"clientId": clientID, "deviceCode": da.DeviceCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var token auth.TokenResponse
	decodeBody(t, w, &token)
	require.NotEmpty(t, token.AccessToken)
	return token
}
