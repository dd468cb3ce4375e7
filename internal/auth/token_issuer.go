package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

// DeviceCodeGrant is the RFC 8628 grant type polled at the token endpoint
const DeviceCodeGrant oauth2.GrantType = "urn:ietf:params:oauth:grant-type:device_code"

// errClaimLost means another request consumed the credential first
var errClaimLost = errors.New("credential already consumed")

// TokenResponse is returned by a successful poll or refresh
type TokenResponse struct {
	TokenType    string    `json:"tokenType"`
	ClientID     string    `json:"clientId"`
	Scopes       []string  `json:"scopes"`
	User         SlimUser  `json:"user"`
	ExpiryDate   time.Time `json:"expiryDate"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
}

// PollResult carries either a non-success status or the issued tokens
type PollResult struct {
	Status string
	Token  *TokenResponse
}

// TokenIssuer answers token polls and mints token pairs
type TokenIssuer struct {
	store   store.Store
	records *TokenRecordStore
	signer  *TokenSigner
	apps    ApplicationDirectory
	users   UserDirectory
	metrics *metrics.Metrics
}

func NewTokenIssuer(s store.Store, records *TokenRecordStore, signer *TokenSigner, apps ApplicationDirectory, users UserDirectory, m *metrics.Metrics) *TokenIssuer {
	return &TokenIssuer{store: s, records: records, signer: signer, apps: apps, users: users, metrics: m}
}

// Poll resolves a device code. Until the user has logged in it returns the
// session status; after success it returns tokens exactly once.
func (i *TokenIssuer) Poll(ctx context.Context, clientID, deviceCode string) (*PollResult, error) {
	if err := (FieldErrors{}).require(map[string]string{
		"clientId":   clientID,
		"deviceCode": deviceCode,
	}).err(); err != nil {
		return nil, err
	}

	result, err := i.poll(ctx, clientID, deviceCode)
	if err != nil {
		i.metrics.Poll("error")
		return nil, err
	}
	i.metrics.Poll(result.Status)
	return result, nil
}

func (i *TokenIssuer) poll(ctx context.Context, clientID, deviceCode string) (*PollResult, error) {
	userCode, ok, err := i.lookup(ctx, deviceCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return expired(StatusExpiredToken), nil
	}

	status, ok, err := i.lookup(ctx, statusKey(userCode))
	if err != nil {
		return nil, err
	}
	if !ok {
		return expired(StatusExpiredSession), nil
	}
	if status != StatusSuccess {
		return &PollResult{Status: status}, nil
	}

	subject, ok, err := i.lookup(ctx, subjectKey(userCode))
	if err != nil {
		return nil, err
	}
	if !ok {
		return expired(StatusExpiredToken), nil
	}

	boundClient, ok, err := i.lookup(ctx, userCode)
	if err != nil {
		return nil, err
	}
	if !ok || boundClient != clientID {
		log.WithField("client_id", clientID).Warn("Device code polled by a different client")
		return expired(StatusExpiredToken), nil
	}

	user, err := i.users.GetUserByUUID(ctx, subject)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return expired(StatusExpiredToken), nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	grants, err := i.users.GrantedScopes(ctx, user.ID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load granted scopes: %w", err)
	}
	slim := ProjectClaims(user, grants)

	app, err := activeApplication(ctx, i.apps, clientID)
	if err != nil {
		return nil, err
	}

	consumeDeviceCode := func(ctx context.Context) error {
		if _, err := i.store.Take(ctx, deviceCode); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errClaimLost
			}
			return err
		}
		return nil
	}

	token, err := i.mint(ctx, app, slim, consumeDeviceCode)
	if err != nil {
		if errors.Is(err, errClaimLost) {
			log.WithField("client_id", clientID).Warn("Device code consumed by a concurrent poll")
			return expired(StatusExpiredToken), nil
		}
		return nil, err
	}

	i.metrics.TokensIssued(string(DeviceCodeGrant))
	log.WithFields(logrus.Fields{
		"client_id": clientID,
		"user_id":   user.ID,
		"scopes":    len(grants),
	}).Info("Tokens issued for device code")

	return &PollResult{Status: StatusSuccess, Token: token}, nil
}

// mint signs a token pair and makes it live. New records are written first;
// claim then consumes the credential being exchanged, and only if it wins
// does the subject index move to the new pair and the replaced tokens go.
func (i *TokenIssuer) mint(ctx context.Context, app *models.Application, user SlimUser, claim func(context.Context) error) (*TokenResponse, error) {
	pair, err := i.signer.SignPair(app.ClientID, app.ApplicationSecret, user)
	if err != nil {
		return nil, err
	}

	ref := SecretRef(app.ApplicationSecret)
	accessRec := TokenRecord{TokenType: AccessToken, ClientID: app.ClientID, SubjectID: user.OID, SecretRef: ref}
	refreshRec := TokenRecord{TokenType: RefreshToken, ClientID: app.ClientID, SubjectID: user.OID, SecretRef: ref}

	if err := i.records.Create(ctx, pair.AccessToken, accessRec, AccessTokenTTL); err != nil {
		return nil, err
	}
	if err := i.records.Create(ctx, pair.RefreshToken, refreshRec, RefreshTokenTTL); err != nil {
		i.discard(ctx, pair.AccessToken)
		return nil, err
	}

	if claim != nil {
		if err := claim(ctx); err != nil {
			i.discard(ctx, pair.AccessToken, pair.RefreshToken)
			return nil, err
		}
	}

	if err := i.records.Promote(ctx, pair.AccessToken, accessRec, AccessTokenTTL); err != nil {
		return nil, err
	}
	if err := i.records.Promote(ctx, pair.RefreshToken, refreshRec, RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &TokenResponse{
		TokenType:    "Bearer",
		ClientID:     app.ClientID,
		Scopes:       app.ScopeNames(),
		User:         user,
		ExpiryDate:   pair.AccessExpiresAt,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (i *TokenIssuer) discard(ctx context.Context, tokens ...string) {
	for _, token := range tokens {
		if err := i.records.Remove(ctx, token); err != nil {
			log.WithError(err).Warn("Failed to discard unissued token record")
		}
	}
}

// lookup distinguishes an absent key (ok=false) from a store failure
func (i *TokenIssuer) lookup(ctx context.Context, key string) (string, bool, error) {
	value, err := i.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func expired(status string) *PollResult {
	return &PollResult{Status: status}
}
