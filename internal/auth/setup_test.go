package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

const (
	testIssuer       = "https://auth.test"
	testServerSecret = "test-server-secret-key-32-characters"
	testPassword     = "correct horse battery staple"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server  *Server
	store   *store.RedisStore
	mr      *miniredis.Miniredis
	db      *gorm.DB
	apps    services.ApplicationService
	users   services.UserService
	clock   *testClock
	metrics *metrics.Metrics
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one connection, so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&models.User{}, &models.Application{}, &models.ApplicationScope{}, &models.ScopeGrant{})
	require.NoError(t, err)

	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	s := store.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = s.Close() })

	db := setupTestDB(t)
	env := &testEnv{
		store:   s,
		mr:      mr,
		db:      db,
		apps:    services.NewApplicationService(db),
		users:   services.NewUserService(db),
		clock:   &testClock{now: time.Now()},
		metrics: metrics.New(),
	}

	srv, err := NewServer(Options{
		Store:        s,
		Applications: env.apps,
		Users:        env.users,
		Passwords:    services.BcryptVerifier{},
		Issuer:       testIssuer,
		ServerSecret: testServerSecret,
		PublicURL:    "https://auth.test/",
		Metrics:      env.metrics,
		Now:          env.clock.Now,
	})
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) createApp(t *testing.T, clientID string, scopes ...models.ApplicationScope) *models.Application {
	t.Helper()
	app := &models.Application{
		ClientID:    clientID,
		DisplayName: "Test App " + clientID,
		Active:      true,
		Scopes:      scopes,
	}
	require.NoError(t, e.apps.CreateApplication(context.Background(), app))
	loaded, err := e.apps.GetApplication(context.Background(), clientID)
	require.NoError(t, err)
	return loaded
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	birthday := time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC)
	user := &models.User{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "555-0100",
		Address:   "1 Analytical Way",
		City:      "London",
		Zip:       "N1",
		Birthday:  &birthday,
		Avatar:    "https://avatars.test/ada.png",
	}
	require.NoError(t, user.SetPassword(testPassword, bcrypt.MinCost))
	require.NoError(t, e.users.CreateUser(context.Background(), user))
	return user
}

// authorize runs a device session through login and, if asked for, consent
func (e *testEnv) authorize(t *testing.T, clientID string, user *models.User) *DeviceAuthorization {
	t.Helper()
	ctx := context.Background()

	da, err := e.server.Device.Initiate(ctx, clientID)
	require.NoError(t, err)

	result, err := e.server.Login.Login(ctx, LoginRequest{
		ClientID: clientID,
		UserCode: da.UserCode,
		Email:    user.Email,
		Password: testPassword,
	})
	require.NoError(t, err)

	if result.Outcome == OutcomeConsentRequired {
		result, err = e.server.Login.Consent(ctx, ConsentRequest{ClientID: clientID, UserCode: da.UserCode, Approve: true})
		require.NoError(t, err)
	}
	require.Equal(t, OutcomeAuthorized, result.Outcome)
	return da
}

// issue runs the whole flow and returns the first token response
func (e *testEnv) issue(t *testing.T, clientID string, user *models.User) *TokenResponse {
	t.Helper()
	da := e.authorize(t, clientID, user)
	result, err := e.server.Tokens.Poll(context.Background(), clientID, da.DeviceCode)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.NotNil(t, result.Token)
	return result.Token
}

func (e *testEnv) scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	e.metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}
