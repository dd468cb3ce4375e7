package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
)

// RefreshTokenGrant labels tokens minted by rotation
const RefreshTokenGrant = "refresh_token"

// TokenValidator checks presented tokens and rotates refresh tokens
type TokenValidator struct {
	records *TokenRecordStore
	signer  *TokenSigner
	issuer  *TokenIssuer
	apps    ApplicationDirectory
	metrics *metrics.Metrics
}

func NewTokenValidator(records *TokenRecordStore, signer *TokenSigner, issuer *TokenIssuer, apps ApplicationDirectory, m *metrics.Metrics) *TokenValidator {
	return &TokenValidator{records: records, signer: signer, issuer: issuer, apps: apps, metrics: m}
}

// Validate returns the claims of a live token of the given type. A token
// without a record is revoked regardless of its signature.
func (v *TokenValidator) Validate(ctx context.Context, token string, tokenType TokenType) (*TokenClaims, *TokenRecord, error) {
	claims, rec, err := v.validate(ctx, token, tokenType)
	v.metrics.Validation(string(tokenType), validationResult(err))
	if err != nil {
		return nil, nil, err
	}
	return claims, rec, nil
}

func (v *TokenValidator) validate(ctx context.Context, token string, tokenType TokenType) (*TokenClaims, *TokenRecord, error) {
	if token == "" {
		return nil, nil, &ValidationError{Fields: FieldErrors{"token": "required"}}
	}

	rec, err := v.records.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if rec.TokenType != tokenType {
		return nil, nil, &SignatureError{
			Reason: ReasonTypeMismatch,
			Err:    fmt.Errorf("expected %s token, got %s", tokenType, rec.TokenType),
		}
	}

	var key []byte
	switch tokenType {
	case AccessToken:
		app, err := activeApplication(ctx, v.apps, rec.ClientID)
		if err != nil {
			return nil, nil, err
		}
		if SecretRef(app.ApplicationSecret) != rec.SecretRef {
			return nil, nil, &SignatureError{Reason: ReasonSecretRotated}
		}
		key = []byte(app.ApplicationSecret)
	case RefreshToken:
		key = v.signer.serverSecret
	}

	claims, err := v.signer.Verify(token, key, rec.ClientID)
	if err != nil {
		return nil, nil, err
	}
	if claims.Subject != rec.SubjectID {
		return nil, nil, &SignatureError{Reason: ReasonClaimsIncomplete, Err: errors.New("subject does not match token record")}
	}
	return claims, rec, nil
}

// Refresh exchanges a refresh token issued to clientID for a new pair. The
// old refresh token is consumed atomically after the new records are
// written, so of two concurrent rotations only one succeeds.
func (v *TokenValidator) Refresh(ctx context.Context, clientID, refreshToken string) (*TokenResponse, error) {
	if err := (FieldErrors{}).require(map[string]string{
		"clientId":     clientID,
		"refreshToken": refreshToken,
	}).err(); err != nil {
		return nil, err
	}

	claims, rec, err := v.Validate(ctx, refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}
	if rec.ClientID != clientID {
		return nil, &SignatureError{
			Reason: ReasonAudience,
			Err:    jwt.ErrTokenInvalidAudience,
		}
	}
	return v.rotate(ctx, refreshToken, claims, rec)
}

// Rotate exchanges a refresh token for a new pair of the client it was
// issued to. The token is validated once.
func (v *TokenValidator) Rotate(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, rec, err := v.Validate(ctx, refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}
	return v.rotate(ctx, refreshToken, claims, rec)
}

func (v *TokenValidator) rotate(ctx context.Context, refreshToken string, claims *TokenClaims, rec *TokenRecord) (*TokenResponse, error) {
	app, err := activeApplication(ctx, v.apps, rec.ClientID)
	if err != nil {
		return nil, err
	}

	consumeRefresh := func(ctx context.Context) error {
		if _, err := v.records.Take(ctx, refreshToken); err != nil {
			if errors.Is(err, ErrTokenRevoked) {
				return errClaimLost
			}
			return err
		}
		return nil
	}

	token, err := v.issuer.mint(ctx, app, claims.User, consumeRefresh)
	if err != nil {
		if errors.Is(err, errClaimLost) {
			log.WithField("client_id", rec.ClientID).Warn("Refresh token rotated by a concurrent request")
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	v.metrics.TokensIssued(RefreshTokenGrant)
	log.WithFields(logrus.Fields{
		"client_id":  rec.ClientID,
		"subject_id": rec.SubjectID,
	}).Info("Refresh token rotated")
	return token, nil
}

// RevokeSubject ends every live token of subjectID for clientID
func (v *TokenValidator) RevokeSubject(ctx context.Context, subjectID, clientID string) error {
	if err := (FieldErrors{}).require(map[string]string{
		"subjectId": subjectID,
		"clientId":  clientID,
	}).err(); err != nil {
		return err
	}
	if err := v.records.RevokeSubject(ctx, subjectID, clientID); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"client_id":  clientID,
		"subject_id": subjectID,
	}).Info("Tokens revoked")
	return nil
}

func validationResult(err error) string {
	var sigErr *SignatureError
	switch {
	case err == nil:
		return "valid"
	case errors.As(err, &sigErr):
		return sigErr.Reason
	case errors.Is(err, ErrNotFound):
		return "revoked"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	default:
		return "error"
	}
}
