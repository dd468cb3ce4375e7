package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

// LoginOutcome says what the browser should be shown next
type LoginOutcome string

const (
	// OutcomeReprompt re-renders the login form with field errors
	OutcomeReprompt LoginOutcome = "reprompt"
	// OutcomeConsentRequired renders the consent form
	OutcomeConsentRequired LoginOutcome = "consent_required"
	// OutcomeAuthorized means the polling client can now collect tokens
	OutcomeAuthorized LoginOutcome = "authorized"
	// OutcomeDenied means the user refused consent
	OutcomeDenied LoginOutcome = "denied"
)

const (
	incorrectPassword = "Incorrect Password"
	invalidEmail      = "must be a valid email address"
)

var validate = validator.New()

type LoginRequest struct {
	ClientID string
	UserCode string
	Email    string
	Password string
}

type ConsentRequest struct {
	ClientID string
	UserCode string
	Approve  bool
}

type LoginResult struct {
	Outcome     LoginOutcome
	ClientID    string
	UserCode    string
	Application string
	FieldErrors FieldErrors
	Values      map[string]string
	// Scopes lists the application's declared scopes when consent is required
	Scopes []models.ApplicationScope
	// MissingScopes lists the required scopes the user has not granted
	MissingScopes []models.ApplicationScope
	// Err is ErrAuthentication when the credentials were rejected
	Err error
}

// LoginHandler drives a device session from pending to success
type LoginHandler struct {
	store     store.Store
	apps      ApplicationDirectory
	users     UserDirectory
	passwords PasswordVerifier
	metrics   *metrics.Metrics
}

func NewLoginHandler(s store.Store, apps ApplicationDirectory, users UserDirectory, passwords PasswordVerifier, m *metrics.Metrics) *LoginHandler {
	return &LoginHandler{store: s, apps: apps, users: users, passwords: passwords, metrics: m}
}

// Login checks credentials for the session behind userCode. A wrong password
// leaves the session untouched and asks for the form again.
func (h *LoginHandler) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := (FieldErrors{}).require(map[string]string{
		"clientId": req.ClientID,
		"userCode": req.UserCode,
	}).err(); err != nil {
		return nil, err
	}

	result := &LoginResult{
		ClientID: req.ClientID,
		UserCode: req.UserCode,
		Values:   map[string]string{"email": req.Email},
	}

	fields := FieldErrors{}.require(map[string]string{"email": req.Email, "password": req.Password})
	if _, ok := fields["email"]; !ok {
		if err := validate.Var(req.Email, "email"); err != nil {
			fields["email"] = invalidEmail
		}
	}
	if len(fields) > 0 {
		result.Outcome = OutcomeReprompt
		result.FieldErrors = fields
		h.metrics.Login(string(OutcomeReprompt))
		return result, nil
	}

	if err := h.checkSession(ctx, req.UserCode, req.ClientID); err != nil {
		return nil, err
	}

	app, err := activeApplication(ctx, h.apps, req.ClientID)
	if err != nil {
		return nil, err
	}
	result.Application = app.DisplayName

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !h.passwords.Verify(req.Password, hash) {
		log.WithField("client_id", req.ClientID).Info("Login rejected: incorrect credentials")
		result.Outcome = OutcomeReprompt
		result.FieldErrors = FieldErrors{"password": incorrectPassword}
		result.Err = ErrAuthentication
		h.metrics.Login(string(OutcomeReprompt))
		return result, nil
	}

	grants, err := h.users.GrantedScopes(ctx, user.ID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load granted scopes: %w", err)
	}

	missing := missingRequiredScopes(app, grants)
	if len(missing) > 0 || (len(grants) == 0 && len(app.Scopes) > 0) {
		if err := h.store.SetWithExpiry(ctx, consentKey(req.UserCode), user.UUID, SessionTTL); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"client_id":      req.ClientID,
			"missing_scopes": len(missing),
		}).Info("Login requires consent")
		result.Outcome = OutcomeConsentRequired
		result.Scopes = app.Scopes
		result.MissingScopes = missing
		h.metrics.Login(string(OutcomeConsentRequired))
		return result, nil
	}

	if err := h.complete(ctx, req.UserCode, req.ClientID, user); err != nil {
		return nil, err
	}
	result.Outcome = OutcomeAuthorized
	h.metrics.Login(string(OutcomeAuthorized))
	return result, nil
}

// Consent records the user's decision for a session that is waiting on it.
// Approval grants every declared scope and completes the session; refusal
// sets the poll status to access_denied.
func (h *LoginHandler) Consent(ctx context.Context, req ConsentRequest) (*LoginResult, error) {
	if err := (FieldErrors{}).require(map[string]string{
		"clientId": req.ClientID,
		"userCode": req.UserCode,
	}).err(); err != nil {
		return nil, err
	}

	if err := h.checkSession(ctx, req.UserCode, req.ClientID); err != nil {
		return nil, err
	}

	subject, err := h.store.Get(ctx, consentKey(req.UserCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no login awaiting consent", ErrSessionExpired)
		}
		return nil, err
	}

	app, err := activeApplication(ctx, h.apps, req.ClientID)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{ClientID: req.ClientID, UserCode: req.UserCode, Application: app.DisplayName}

	if !req.Approve {
		if err := h.store.SetWithExpiry(ctx, statusKey(req.UserCode), StatusAccessDenied, SuccessTTL); err != nil {
			return nil, err
		}
		if err := h.store.Delete(ctx, consentKey(req.UserCode)); err != nil {
			return nil, err
		}
		log.WithField("client_id", req.ClientID).Info("Consent refused")
		result.Outcome = OutcomeDenied
		h.metrics.Login(string(OutcomeDenied))
		return result, nil
	}

	user, err := h.users.GetUserByUUID(ctx, subject)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := h.users.GrantScopes(ctx, user.ID, req.ClientID, app.Scopes); err != nil {
		return nil, fmt.Errorf("failed to record scope grants: %w", err)
	}

	if err := h.complete(ctx, req.UserCode, req.ClientID, user); err != nil {
		return nil, err
	}
	if err := h.store.Delete(ctx, consentKey(req.UserCode)); err != nil {
		log.WithError(err).Warn("Failed to clear consent marker")
	}

	result.Outcome = OutcomeAuthorized
	h.metrics.Login(string(OutcomeAuthorized))
	return result, nil
}

// FormState returns what the login form needs to render for a session
func (h *LoginHandler) FormState(ctx context.Context, clientID, userCode string) (*LoginResult, error) {
	if err := h.checkSession(ctx, userCode, clientID); err != nil {
		return nil, err
	}
	app, err := activeApplication(ctx, h.apps, clientID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Outcome:     OutcomeReprompt,
		ClientID:    clientID,
		UserCode:    userCode,
		Application: app.DisplayName,
		FieldErrors: FieldErrors{},
		Values:      map[string]string{},
	}, nil
}

// checkSession verifies userCode is live, belongs to clientID and is still
// pending. A denied or completed session cannot be reopened.
func (h *LoginHandler) checkSession(ctx context.Context, userCode, clientID string) error {
	boundClient, err := h.store.Get(ctx, userCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	if boundClient != clientID {
		log.WithField("client_id", clientID).Warn("User code presented for a different client")
		return ErrSessionExpired
	}

	status, err := h.store.Get(ctx, statusKey(userCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	if status != StatusPending {
		log.WithFields(logrus.Fields{
			"client_id": clientID,
			"status":    status,
		}).Warn("Login attempted on a session that is no longer pending")
		return fmt.Errorf("%w: session is %s", ErrSessionExpired, status)
	}
	return nil
}

// complete marks the session successful. The subject pointer is written
// before the status so a poller that sees success always finds a subject.
func (h *LoginHandler) complete(ctx context.Context, userCode, clientID string, user *models.User) error {
	if err := h.store.SetWithExpiry(ctx, userCode, clientID, SessionTTL); err != nil {
		return err
	}
	if err := h.store.SetWithExpiry(ctx, subjectKey(userCode), user.UUID, SessionTTL); err != nil {
		return err
	}
	if err := h.store.SetWithExpiry(ctx, statusKey(userCode), StatusSuccess, SuccessTTL); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"client_id": clientID,
		"user_id":   user.ID,
	}).Info("Authorization successful, awaiting token poll")

	go h.touchLastAccess(context.WithoutCancel(ctx), user.ID)
	return nil
}

func (h *LoginHandler) touchLastAccess(ctx context.Context, userID uint) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.users.TouchLastAccess(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to update last access")
	}
}
