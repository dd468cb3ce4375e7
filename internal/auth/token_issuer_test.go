package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

func TestPollPending(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	ctx := context.Background()

	da, err := env.server.Device.Initiate(ctx, "abc")
	require.NoError(t, err)

	result, err := env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
	assert.Nil(t, result.Token)

	// pending polls leave the device code usable
	assert.True(t, env.mr.Exists(da.DeviceCode))
}

func TestPollIssuesTokensOnce(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc", models.ApplicationScope{Scope: "email_read", Required: true})
	user := env.createUser(t, "ada@example.com")
	ctx := context.Background()

	da := env.authorize(t, "abc", user)

	result, err := env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	token := result.Token
	require.NotNil(t, token)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "abc", token.ClientID)
	assert.Equal(t, []string{"email_read"}, token.Scopes)
	assert.Equal(t, user.UUID, token.User.OID)
	if assert.NotNil(t, token.User.Email) {
		assert.Equal(t, "ada@example.com", *token.User.Email)
	}
	assert.Nil(t, token.User.FirstName)
	assert.WithinDuration(t, env.clock.Now().Add(AccessTokenTTL), token.ExpiryDate, time.Second)
	assert.NotEqual(t, token.AccessToken, token.RefreshToken)

	assert.Equal(t, AccessTokenTTL, env.mr.TTL(token.AccessToken))
	assert.Equal(t, RefreshTokenTTL, env.mr.TTL(token.RefreshToken))
	assert.False(t, env.mr.Exists(da.DeviceCode))

	claims, rec, err := env.server.Validator.Validate(ctx, token.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.ClientID)
	assert.Equal(t, user.UUID, claims.Subject)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, user.UUID, rec.SubjectID)

	again, err := env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusExpiredToken, again.Status)
	assert.Nil(t, again.Token)

	assert.Contains(t, env.scrape(t), `device_auth_tokens_issued_total{grant="urn:ietf:params:oauth:grant-type:device_code"} 1`)
}

func TestPollExpiredSession(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	user := env.createUser(t, "ada@example.com")
	ctx := context.Background()

	da := env.authorize(t, "abc", user)

	// the success status outlives its window while the device code is still live
	env.mr.FastForward(SuccessTTL + time.Second)

	result, err := env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusExpiredSession, result.Status)
}

func TestPollExpiredDeviceCode(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	ctx := context.Background()

	da, err := env.server.Device.Initiate(ctx, "abc")
	require.NoError(t, err)
	env.mr.FastForward(SessionTTL + time.Second)

	result, err := env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusExpiredToken, result.Status)

	result, err = env.server.Tokens.Poll(ctx, "abc", "never-issued")
	require.NoError(t, err)
	assert.Equal(t, StatusExpiredToken, result.Status)
}

func TestPollByOtherClient(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	env.createApp(t, "other")
	user := env.createUser(t, "ada@example.com")
	ctx := context.Background()

	da := env.authorize(t, "abc", user)

	result, err := env.server.Tokens.Poll(ctx, "other", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusExpiredToken, result.Status)

	// the rightful client can still collect
	result, err = env.server.Tokens.Poll(ctx, "abc", da.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestPollRequiresFields(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.server.Tokens.Poll(context.Background(), "abc", "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Fields["deviceCode"])
}

func TestConcurrentPollsIssueOnePair(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	user := env.createUser(t, "ada@example.com")

	da := env.authorize(t, "abc", user)

	const pollers = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		issued  []*TokenResponse
		expired int
	)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.server.Tokens.Poll(context.Background(), "abc", da.DeviceCode)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Token != nil {
				issued = append(issued, result.Token)
			} else {
				assert.Equal(t, StatusExpiredToken, result.Status)
				expired++
			}
		}()
	}
	wg.Wait()

	require.Len(t, issued, 1)
	assert.Equal(t, pollers-1, expired)

	_, _, err := env.server.Validator.Validate(context.Background(), issued[0].AccessToken, AccessToken)
	assert.NoError(t, err)
}

func TestStoreFailureIsNotReportedAsExpiry(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T, env *testEnv, user *models.User) (interface{}, error)
	}{
		{
			name: "poll",
			run: func(t *testing.T, env *testEnv, user *models.User) (interface{}, error) {
				da := env.authorize(t, "abc", user)
				env.mr.SetError("ERR injected failure")
				return env.server.Tokens.Poll(context.Background(), "abc", da.DeviceCode)
			},
		},
		{
			name: "login",
			run: func(t *testing.T, env *testEnv, user *models.User) (interface{}, error) {
				da, err := env.server.Device.Initiate(context.Background(), "abc")
				require.NoError(t, err)
				env.mr.SetError("ERR injected failure")
				return env.server.Login.Login(context.Background(), LoginRequest{
					ClientID: "abc",
					UserCode: da.UserCode,
					Email:    user.Email,
					Password: testPassword,
				})
			},
		},
		{
			name: "refresh",
			run: func(t *testing.T, env *testEnv, user *models.User) (interface{}, error) {
				token := env.issue(t, "abc", user)
				env.mr.SetError("ERR injected failure")
				return env.server.Validator.Refresh(context.Background(), "abc", token.RefreshToken)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			env.createApp(t, "abc")
			user := env.createUser(t, "ada@example.com")

			result, err := tt.run(t, env, user)

			assert.ErrorIs(t, err, ErrStoreUnavailable)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.Nil(t, result)
		})
	}
}
