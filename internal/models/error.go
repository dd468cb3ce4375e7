package models

// APIError represents a standardized error response for the API
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error code constants
const (
	// General errors
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrNotFound         = "NOT_FOUND"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"

	// Application errors
	ErrApplicationNotFound     = "APPLICATION_NOT_FOUND"
	ErrApplicationInvalidScope = "APPLICATION_INVALID_SCOPE"
	ErrApplicationForbidden    = "APPLICATION_FORBIDDEN"
	ErrUserExists              = "USER_ALREADY_EXISTS"

	// Bearer token errors (RFC 6750), not covered by the oauth2 errors package
	ErrInvalidToken          = "invalid_token"
	ErrAuthorizationRequired = "authorization_required"
)

// NewAPIError creates a new API error with the given code and message
func NewAPIError(code, message string, details ...map[string]interface{}) APIError {
	err := APIError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// OAuth2Error represents an OAuth2 error response (RFC 6749)
type OAuth2Error struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	ErrorURI         string            `json:"error_uri,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// NewOAuth2Error creates a new OAuth2 error response
func NewOAuth2Error(error, description string) OAuth2Error {
	return OAuth2Error{
		Error:            error,
		ErrorDescription: description,
	}
}
