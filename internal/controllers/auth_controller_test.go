package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

func TestDeviceCodeEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")

	w := env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": "abc"})

	require.Equal(t, http.StatusOK, w.Code)
	var da auth.DeviceAuthorization
	decodeBody(t, w, &da)
	assert.Equal(t, "abc", da.ClientID)
	assert.NotEmpty(t, da.DeviceCode)
	assert.NotEmpty(t, da.UserCode)
	assert.Equal(t, 20, da.Interval)
	assert.True(t, strings.HasPrefix(da.AuthEndpoint, "https://auth.test/oauth2/v1/abc/"))
}

func TestDeviceCodeEndpointForm(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")

	req := httptest.NewRequest(http.MethodPost, "/oauth2/v1/deviceCode", strings.NewReader(url.Values{"clientId": {"abc"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeviceCodeEndpointErrors(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body models.OAuth2Error
	decodeBody(t, w, &body)
	assert.Equal(t, "invalid_request", body.Error)
	assert.Equal(t, "required", body.Fields["clientId"])

	w = env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": "unknown"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	decodeBody(t, w, &body)
	assert.Equal(t, "invalid_client", body.Error)

	env.createApp(t, "abc")
	env.mr.SetError("ERR injected failure")
	w = env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": "abc"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFullDeviceFlowOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc", models.ApplicationScope{Scope: "email_read", Required: true})
	user := env.createUser(t, "ada@example.com")

	w := env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	var da auth.DeviceAuthorization
	decodeBody(t, w, &da)

	// polling before login reports pending
	w = env.do(t, http.MethodPost, "/oauth2/v1/token", gin.H{"clientId": "abc", "deviceCode": da.DeviceCode})
	require.Equal(t, http.StatusOK, w.Code)
	var status PollStatusResponse
	decodeBody(t, w, &status)
	assert.Equal(t, auth.StatusPending, status.Status)

	loginPath := "/oauth2/v1/abc/" + da.UserCode + "/login"
	w = env.do(t, http.MethodGet, loginPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var form LoginResponse
	decodeBody(t, w, &form)
	assert.Equal(t, "Test App", form.Application)

	w = env.do(t, http.MethodPost, loginPath, gin.H{"email": user.Email, "password": "wrong"})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &form)
	assert.Equal(t, auth.OutcomeReprompt, form.Outcome)
	assert.Equal(t, "Incorrect Password", form.Fields["password"])

	w = env.do(t, http.MethodPost, loginPath, gin.H{"email": user.Email, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &form)
	require.Equal(t, auth.OutcomeConsentRequired, form.Outcome)
	assert.Len(t, form.Scopes, 1)

	w = env.do(t, http.MethodPost, "/oauth2/v1/abc/"+da.UserCode+"/consent", gin.H{"approve": true})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &form)
	assert.Equal(t, auth.OutcomeAuthorized, form.Outcome)

	w = env.do(t, http.MethodPost, "/oauth2/v1/token", gin.H{"clientId": "abc", "deviceCode": da.DeviceCode})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var token auth.TokenResponse
	decodeBody(t, w, &token)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, user.UUID, token.User.OID)
	require.NotNil(t, token.User.Email)
	assert.Equal(t, user.Email, *token.User.Email)
	assert.Equal(t, []string{"email_read"}, token.Scopes)

	// the device code is single use
	w = env.do(t, http.MethodPost, "/oauth2/v1/token", gin.H{"clientId": "abc", "deviceCode": da.DeviceCode})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &status)
	assert.Equal(t, auth.StatusExpiredToken, status.Status)
}

func TestLoginExpiredSession(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")

	w := env.do(t, http.MethodGet, "/oauth2/v1/abc/NOSUCHCODE12/login", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body models.OAuth2Error
	decodeBody(t, w, &body)
	assert.Equal(t, "invalid_grant", body.Error)
	assert.Equal(t, "Login session expired", body.ErrorDescription)
}

func TestTokenEndpointRequiresFields(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/oauth2/v1/token", gin.H{"clientId": "abc"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body models.OAuth2Error
	decodeBody(t, w, &body)
	assert.Equal(t, "required", body.Fields["deviceCode"])
}

func TestRefreshEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	env.createUser(t, "ada@example.com")
	first := env.login(t, "abc", "ada@example.com")

	w := env.do(t, http.MethodPost, "/oauth2/v1/refresh", gin.H{"clientId": "abc", "refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second auth.TokenResponse
	decodeBody(t, w, &second)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// replaying the rotated refresh token fails
	w = env.do(t, http.MethodPost, "/oauth2/v1/refresh", gin.H{"clientId": "abc", "refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body models.OAuth2Error
	decodeBody(t, w, &body)
	assert.Equal(t, "invalid_grant", body.Error)
}

func TestUserInfoAndRevoke(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc", models.ApplicationScope{Scope: "name_read"})
	user := env.createUser(t, "ada@example.com")
	token := env.login(t, "abc", "ada@example.com")
	bearer := "Bearer " + token.AccessToken

	w := env.do(t, http.MethodGet, "/oauth2/v1/userinfo", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	var slim auth.SlimUser
	decodeBody(t, w, &slim)
	assert.Equal(t, user.UUID, slim.OID)
	require.NotNil(t, slim.FirstName)
	assert.Equal(t, "Ada", *slim.FirstName)
	assert.Nil(t, slim.Email)

	w = env.do(t, http.MethodPost, "/oauth2/v1/revoke", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/oauth2/v1/userinfo", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/oauth2/v1/refresh", gin.H{"clientId": "abc", "refreshToken": token.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserInfoRefreshesExpiredAccessToken(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	env.createUser(t, "ada@example.com")
	token := env.login(t, "abc", "ada@example.com")

	// the access record expires while the refresh record remains
	env.mr.FastForward(auth.AccessTokenTTL + time.Second)

	w := env.do(t, http.MethodGet, "/oauth2/v1/userinfo", nil,
		"Authorization", "Bearer "+token.AccessToken,
		"X-Refresh-Token", token.RefreshToken)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Access-Token"))
	assert.NotEqual(t, token.RefreshToken, w.Header().Get("X-Refresh-Token"))
}

func TestRegisterUser(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/oauth2/v1/users", gin.H{"email": "ada@example.com", "password": "long-enough-password"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/oauth2/v1/users", gin.H{"email": "ada@example.com", "password": "long-enough-password"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/oauth2/v1/users", gin.H{"email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.mr.SetError("ERR injected failure")
	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"unavailable"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.createApp(t, "abc")
	env.do(t, http.MethodPost, "/oauth2/v1/deviceCode", gin.H{"clientId": "abc"})

	w := env.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `device_auth_device_authorizations_total{result="ok"} 1`)
}
