package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	oauthErrors "github.com/go-oauth2/oauth2/v4/errors"

	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

// ErrorResponse maps an error from the auth package to an HTTP status and an
// RFC 6749 error body
func ErrorResponse(err error) (int, models.OAuth2Error) {
	var (
		verr   *auth.ValidationError
		sigErr *auth.SignatureError
	)
	switch {
	case errors.As(err, &verr):
		body := oauth2Error(oauthErrors.ErrInvalidRequest, "")
		body.Fields = verr.Fields
		return http.StatusBadRequest, body
	case errors.Is(err, auth.ErrApplicationInvalid):
		return http.StatusUnauthorized, oauth2Error(oauthErrors.ErrInvalidClient, "Not a valid application")
	case errors.As(err, &sigErr):
		return http.StatusBadRequest, oauth2Error(oauthErrors.ErrInvalidGrant, sigErr.Reason)
	case errors.Is(err, auth.ErrSessionExpired):
		return http.StatusBadRequest, oauth2Error(oauthErrors.ErrInvalidGrant, "Login session expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusBadRequest, oauth2Error(oauthErrors.ErrInvalidGrant, "Token has been revoked or expired")
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusBadRequest, oauth2Error(oauthErrors.ErrInvalidGrant, "")
	case errors.Is(err, auth.ErrStoreUnavailable), errors.Is(err, auth.ErrAllocationExhausted):
		return http.StatusServiceUnavailable, oauth2Error(oauthErrors.ErrTemporarilyUnavailable, "")
	default:
		return http.StatusInternalServerError, oauth2Error(oauthErrors.ErrServerError, "")
	}
}

// AbortWithError writes the error response for err and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	status, body := ErrorResponse(err)
	entry := log.WithError(err).WithField("path", c.FullPath())
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}
	respondWithOAuth2Error(c, status, body)
}

// respondWithOAuth2Error responds with RFC 6750 compliant error format
func respondWithOAuth2Error(c *gin.Context, status int, body models.OAuth2Error) {
	if body.Error == models.ErrInvalidToken || body.Error == models.ErrAuthorizationRequired {
		c.Header("WWW-Authenticate", `Bearer error="`+body.Error+`"`)
	}
	c.JSON(status, body)
	c.Abort()
}

func oauth2Error(code error, description string) models.OAuth2Error {
	if description == "" {
		description = oauthErrors.Descriptions[code]
	}
	return models.NewOAuth2Error(code.Error(), description)
}
