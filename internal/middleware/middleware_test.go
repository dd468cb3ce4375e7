package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

type stubToken struct {
	tokenType auth.TokenType
	claims    *auth.TokenClaims
}

type stubValidator struct {
	tokens       map[string]stubToken
	validateErr  error
	next         *auth.TokenResponse
	refreshCalls int
	validated    []string
}

func newStubValidator() *stubValidator {
	return &stubValidator{tokens: map[string]stubToken{}}
}

func (s *stubValidator) add(token string, tokenType auth.TokenType, clientID, subject string) {
	s.tokens[token] = stubToken{
		tokenType: tokenType,
		claims: &auth.TokenClaims{
			ClientID:         clientID,
			User:             auth.SlimUser{OID: subject},
			RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		},
	}
}

func (s *stubValidator) lookup(token string, tokenType auth.TokenType) (*auth.TokenClaims, *auth.TokenRecord, error) {
	if s.validateErr != nil {
		return nil, nil, s.validateErr
	}
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil, auth.ErrTokenRevoked
	}
	if t.tokenType != tokenType {
		return nil, nil, &auth.SignatureError{Reason: auth.ReasonTypeMismatch}
	}
	return t.claims, &auth.TokenRecord{TokenType: tokenType, ClientID: t.claims.ClientID, SubjectID: t.claims.Subject}, nil
}

func (s *stubValidator) Validate(_ context.Context, token string, tokenType auth.TokenType) (*auth.TokenClaims, *auth.TokenRecord, error) {
	s.validated = append(s.validated, token)
	return s.lookup(token, tokenType)
}

func (s *stubValidator) Rotate(_ context.Context, refreshToken string) (*auth.TokenResponse, error) {
	s.refreshCalls++
	claims, _, err := s.lookup(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}
	if s.next == nil {
		return nil, auth.ErrTokenRevoked
	}
	clientID := claims.ClientID
	delete(s.tokens, refreshToken)
	s.add(s.next.AccessToken, auth.AccessToken, clientID, s.next.User.OID)
	s.add(s.next.RefreshToken, auth.RefreshToken, clientID, s.next.User.OID)
	return s.next, nil
}

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"clientId":  c.GetString(ContextClientID),
			"subjectId": c.GetString(ContextSubjectID),
		})
	})
	router.GET("/protected", handlers...)
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTokenAuthBearer(t *testing.T) {
	v := newStubValidator()
	v.add("hdr.payload.sig", auth.AccessToken, "abc", "U1")
	router := setupRouter(TokenAuth(v, auth.AccessToken))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer hdr.payload.sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "abc", body["clientId"])
	assert.Equal(t, "U1", body["subjectId"])
}

func TestTokenAuthSplitCookies(t *testing.T) {
	v := newStubValidator()
	v.add("hdr.payload.sig", auth.AccessToken, "abc", "U1")
	router := setupRouter(TokenAuth(v, auth.AccessToken))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "hdr.payload"})
	req.AddCookie(&http.Cookie{Name: "access_token_sig", Value: "sig"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U1", decode(t, w)["subjectId"])
}

func TestTokenAuthMissingToken(t *testing.T) {
	router := setupRouter(TokenAuth(newStubValidator(), auth.AccessToken))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authorization_required", decode(t, w)["error"])
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestTokenAuthRejectsNonBearerScheme(t *testing.T) {
	router := setupRouter(TokenAuth(newStubValidator(), auth.AccessToken))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["error"])
}

func TestTokenAuthRevokedAndWrongType(t *testing.T) {
	v := newStubValidator()
	v.add("refresh.token.sig", auth.RefreshToken, "abc", "U1")
	router := setupRouter(TokenAuth(v, auth.AccessToken))

	for token, description := range map[string]string{
		"unknown.token.sig": "Token has been revoked or expired",
		"refresh.token.sig": auth.ReasonTypeMismatch,
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, token)
		body := decode(t, w)
		assert.Equal(t, "invalid_token", body["error"])
		assert.Equal(t, description, body["error_description"])
	}
}

func TestTokenAuthStoreUnavailable(t *testing.T) {
	v := newStubValidator()
	v.validateErr = store.ErrUnavailable
	router := setupRouter(TokenAuth(v, auth.AccessToken))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer a.b.c")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "temporarily_unavailable", decode(t, w)["error"])
}

func TestTokenAuthDoesNotRefresh(t *testing.T) {
	v := newStubValidator()
	v.add("refresh.token.sig", auth.RefreshToken, "abc", "U1")
	router := setupRouter(TokenAuth(v, auth.AccessToken))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired.access.sig")
	req.Header.Set(RefreshTokenHeader, "refresh.token.sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, v.refreshCalls)
}

func TestRefreshingAuthRotatesFromHeader(t *testing.T) {
	v := newStubValidator()
	v.add("refresh.token.sig", auth.RefreshToken, "abc", "U1")
	v.next = &auth.TokenResponse{AccessToken: "new.access.sig", RefreshToken: "new.refresh.sig", User: auth.SlimUser{OID: "U1"}}
	router := setupRouter(RefreshingAuth(v))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired.access.sig")
	req.Header.Set(RefreshTokenHeader, "refresh.token.sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, v.refreshCalls)
	// rotation validates the refresh token itself; the middleware only checks access tokens
	assert.Equal(t, []string{"expired.access.sig", "new.access.sig"}, v.validated)
	assert.Equal(t, "new.access.sig", w.Header().Get(AccessTokenHeader))
	assert.Equal(t, "new.refresh.sig", w.Header().Get(RefreshTokenHeader))
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, "abc", decode(t, w)["clientId"])
}

func TestRefreshingAuthRotatesCookies(t *testing.T) {
	v := newStubValidator()
	v.add("refresh.token.sig", auth.RefreshToken, "abc", "U1")
	v.next = &auth.TokenResponse{AccessToken: "new.access.sig", RefreshToken: "new.refresh.sig", User: auth.SlimUser{OID: "U1"}}
	router := setupRouter(RefreshingAuth(v))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh.token"})
	req.AddCookie(&http.Cookie{Name: "refresh_token_sig", Value: "sig"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	cookies := map[string]*http.Cookie{}
	for _, cookie := range w.Result().Cookies() {
		cookies[cookie.Name] = cookie
	}
	require.Contains(t, cookies, "access_token")
	require.Contains(t, cookies, "access_token_sig")
	assert.Equal(t, "new.access", cookies["access_token"].Value)
	assert.Equal(t, "sig", cookies["access_token_sig"].Value)
	assert.True(t, cookies["access_token_sig"].HttpOnly)
	assert.False(t, cookies["access_token"].HttpOnly)
	assert.Equal(t, "new.refresh", cookies["refresh_token"].Value)
}

func TestRefreshingAuthValidAccessSkipsRotation(t *testing.T) {
	v := newStubValidator()
	v.add("live.access.sig", auth.AccessToken, "abc", "U1")
	v.add("refresh.token.sig", auth.RefreshToken, "abc", "U1")
	router := setupRouter(RefreshingAuth(v))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer live.access.sig")
	req.Header.Set(RefreshTokenHeader, "refresh.token.sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, v.refreshCalls)
	assert.Empty(t, w.Header().Get(AccessTokenHeader))
}

func TestRefreshingAuthRevokedRefresh(t *testing.T) {
	v := newStubValidator()
	router := setupRouter(RefreshingAuth(v))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(RefreshTokenHeader, "gone.refresh.sig")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_token", decode(t, w)["error"])
}

func TestRequireClient(t *testing.T) {
	v := newStubValidator()
	v.add("admin.token.sig", auth.AccessToken, "admin-console", "U1")
	v.add("other.token.sig", auth.AccessToken, "abc", "U2")
	router := setupRouter(TokenAuth(v, auth.AccessToken), RequireClient("admin-console"))

	for token, status := range map[string]int{
		"admin.token.sig": http.StatusOK,
		"other.token.sig": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, token)
	}
}

func TestRequireClientWithoutAuthentication(t *testing.T) {
	router := setupRouter(RequireClient())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
