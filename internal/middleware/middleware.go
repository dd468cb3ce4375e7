package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

var log = logrus.WithField("component", "middleware")

// Context keys set by TokenAuth and RefreshingAuth
const (
	ContextClaims    = "tokenClaims"
	ContextClientID  = "clientID"
	ContextSubjectID = "subjectID"
	ContextUser      = "user"
)

const (
	// AccessTokenHeader carries a rotated access token back to the caller
	AccessTokenHeader = "X-Access-Token"
	// RefreshTokenHeader carries a refresh token in both directions
	RefreshTokenHeader = "X-Refresh-Token"
)

// Validator is the part of auth.TokenValidator the middleware needs
type Validator interface {
	Validate(ctx context.Context, token string, tokenType auth.TokenType) (*auth.TokenClaims, *auth.TokenRecord, error)
	Rotate(ctx context.Context, refreshToken string) (*auth.TokenResponse, error)
}

// TokenAuth requires a live token of tokenType, presented either as an
// Authorization Bearer header or as the split cookie pair
// {type}_token (header.payload) and {type}_token_sig (signature).
func TokenAuth(v Validator, tokenType auth.TokenType) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, v, tokenType, false)
	}
}

// RefreshingAuth requires an access token like TokenAuth, but when the access
// token is missing or no longer valid and a refresh token is presented via
// X-Refresh-Token or refresh cookies, it rotates the pair and continues with
// the new access token. The new pair is returned in X-Access-Token and
// X-Refresh-Token, and in cookies if the request used cookies.
func RefreshingAuth(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, v, auth.AccessToken, true)
	}
}

func authenticate(c *gin.Context, v Validator, tokenType auth.TokenType, refresh bool) {
	ctx := c.Request.Context()

	token, fromCookie, err := extractToken(c, tokenType)
	if err != nil {
		respondWithOAuth2Error(c, http.StatusUnauthorized,
			models.NewOAuth2Error("invalid_request", err.Error()))
		return
	}

	var claims *auth.TokenClaims
	if token != "" {
		claims, _, err = v.Validate(ctx, token, tokenType)
	}

	if claims == nil && refresh && (token == "" || isAuthFailure(err)) {
		if refreshToken, refreshFromCookie := presentedRefreshToken(c); refreshToken != "" {
			claims, err = rotate(c, v, refreshToken, fromCookie || refreshFromCookie)
		}
	}

	switch {
	case claims != nil:
	case err == nil:
		respondWithOAuth2Error(c, http.StatusUnauthorized, models.NewOAuth2Error(models.ErrAuthorizationRequired,
			"Missing Authorization header. A valid Bearer token is required."))
		return
	case isAuthFailure(err):
		respondWithOAuth2Error(c, http.StatusUnauthorized,
			models.NewOAuth2Error(models.ErrInvalidToken, describeAuthFailure(err)))
		return
	default:
		AbortWithError(c, err)
		return
	}

	c.Set(ContextClaims, claims)
	c.Set(ContextClientID, claims.ClientID)
	c.Set(ContextSubjectID, claims.Subject)
	c.Set(ContextUser, claims.User)
	c.Next()
}

// extractToken returns the token from the Authorization header, falling back
// to the cookie pair for tokenType
func extractToken(c *gin.Context, tokenType auth.TokenType) (string, bool, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		// RFC 6750: Bearer scheme only
		if !strings.HasPrefix(header, "Bearer ") {
			return "", false, errors.New("Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return "", false, errors.New("Bearer token is empty")
		}
		return token, false, nil
	}
	token := cookieToken(c, tokenType)
	return token, token != "", nil
}

func presentedRefreshToken(c *gin.Context) (string, bool) {
	if token := strings.TrimSpace(c.GetHeader(RefreshTokenHeader)); token != "" {
		return token, false
	}
	token := cookieToken(c, auth.RefreshToken)
	return token, token != ""
}

func rotate(c *gin.Context, v Validator, refreshToken string, cookies bool) (*auth.TokenClaims, error) {
	ctx := c.Request.Context()

	pair, err := v.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	c.Header(AccessTokenHeader, pair.AccessToken)
	c.Header(RefreshTokenHeader, pair.RefreshToken)
	if cookies {
		setTokenCookies(c, auth.AccessToken, pair.AccessToken, auth.AccessTokenTTL)
		setTokenCookies(c, auth.RefreshToken, pair.RefreshToken, auth.RefreshTokenTTL)
	}

	claims, _, err := v.Validate(ctx, pair.AccessToken, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	log.WithField("client_id", claims.ClientID).Debug("Rotated tokens during request authentication")
	return claims, nil
}

// CookieNames returns the cookie pair a token of tokenType is split across
func CookieNames(tokenType auth.TokenType) (string, string) {
	name := string(tokenType) + "_token"
	return name, name + "_sig"
}

func cookieToken(c *gin.Context, tokenType auth.TokenType) string {
	bodyName, sigName := CookieNames(tokenType)
	body, err := c.Cookie(bodyName)
	if err != nil || body == "" {
		return ""
	}
	sig, err := c.Cookie(sigName)
	if err != nil || sig == "" {
		return ""
	}
	return body + "." + sig
}

// setTokenCookies splits token at its last dot so the signature can live in
// an HttpOnly cookie while header.payload stays readable by scripts
func setTokenCookies(c *gin.Context, tokenType auth.TokenType, token string, ttl time.Duration) {
	i := strings.LastIndex(token, ".")
	if i < 0 {
		return
	}
	bodyName, sigName := CookieNames(tokenType)
	secure := c.Request.TLS != nil
	maxAge := int(ttl.Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(bodyName, token[:i], maxAge, "/", "", secure, false)
	c.SetCookie(sigName, token[i+1:], maxAge, "/", "", secure, true)
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrSignature) || errors.Is(err, auth.ErrValidation)
}

func describeAuthFailure(err error) string {
	var sigErr *auth.SignatureError
	if errors.As(err, &sigErr) {
		return sigErr.Reason
	}
	return "Token has been revoked or expired"
}
