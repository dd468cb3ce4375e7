package auth

import (
	"context"
	"time"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

// Poll statuses. Anything other than StatusSuccess tells the client to poll again or stop.
const (
	StatusPending        = "authorization_pending"
	StatusSuccess        = "authorization_success"
	StatusAccessDenied   = "access_denied"
	StatusExpiredToken   = "expired_token"
	StatusExpiredSession = "expired_session"
)

const (
	// SessionTTL bounds a device session from code issuance to login
	SessionTTL = 600 * time.Second
	// SuccessTTL bounds how long a completed authorization waits to be polled
	SuccessTTL = 60 * time.Second
	// PollInterval is the advisory minimum seconds between polls
	PollInterval = 20
)

// Store key layout for one device session:
//
//	{userCode}          -> clientId
//	{userCode}-status   -> poll status
//	{userCode}-subject  -> user UUID, set on success
//	{userCode}-consent  -> user UUID, set while consent is outstanding
//	{deviceCode}        -> userCode
func statusKey(userCode string) string  { return userCode + "-status" }
func subjectKey(userCode string) string { return userCode + "-subject" }
func consentKey(userCode string) string { return userCode + "-consent" }

// ApplicationDirectory resolves client IDs to registered applications.
// Unknown IDs are reported as services.ErrNotFound.
type ApplicationDirectory interface {
	GetApplication(ctx context.Context, clientID string) (*models.Application, error)
}

// UserDirectory is the durable user and grant record set. Unknown users are
// reported as services.ErrNotFound.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUUID(ctx context.Context, uuid string) (*models.User, error)
	TouchLastAccess(ctx context.Context, userID uint) error
	GrantedScopes(ctx context.Context, userID uint, clientID string) ([]models.ScopeGrant, error)
	GrantScopes(ctx context.Context, userID uint, clientID string, scopes []models.ApplicationScope) error
}

// PasswordVerifier checks a password against a stored hash
type PasswordVerifier interface {
	Verify(password, hash string) bool
}
