package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 6 * time.Hour
)

// TokenClaims is the payload of both access and refresh tokens
type TokenClaims struct {
	ClientID string   `json:"clientId"`
	User     SlimUser `json:"user"`
	jwt.RegisteredClaims
}

// TokenPair is a freshly signed access and refresh token
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenSigner signs access tokens with the application's own secret and
// refresh tokens with the server-global secret.
type TokenSigner struct {
	issuer       string
	serverSecret []byte
	method       jwt.SigningMethod
	now          func() time.Time
}

// NewTokenSigner creates a signer for issuer using HS256
func NewTokenSigner(issuer, serverSecret string, now func() time.Time) *TokenSigner {
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{
		issuer:       issuer,
		serverSecret: []byte(serverSecret),
		method:       jwt.SigningMethodHS256,
		now:          now,
	}
}

// SignPair mints an access token and a refresh token carrying the same
// {clientId, user} claims.
func (s *TokenSigner) SignPair(clientID, applicationSecret string, user SlimUser) (*TokenPair, error) {
	if applicationSecret == "" {
		return nil, errors.New("cannot sign access token: application has no secret")
	}
	now := s.now()

	access, accessExp, err := s.sign(clientID, user, []byte(applicationSecret), now, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(clientID, user, s.serverSecret, now, RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenSigner) sign(clientID string, user SlimUser, key []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := TokenClaims{
		ClientID: clientID,
		User:     user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.OID,
			Audience:  jwt.ClaimStrings{clientID},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			// a unique ID keeps tokens minted in the same second distinct
			ID: uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer, audience and expiry. The returned error is
// always a *SignatureError naming the failed check.
func (s *TokenSigner) Verify(tokenString string, key []byte, audience string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			// Only accept HMAC; rejects alg confusion
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, &SignatureError{Reason: signatureReason(err), Err: err}
	}
	if !token.Valid {
		return nil, &SignatureError{Reason: ReasonBadSignature}
	}
	if claims.ClientID != audience || claims.User.OID == "" {
		return nil, &SignatureError{Reason: ReasonClaimsIncomplete}
	}
	return claims, nil
}

func signatureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonIssuer
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonBadSignature
	}
}
