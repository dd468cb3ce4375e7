package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

// TokenType discriminates token records
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

func (t TokenType) valid() bool {
	return t == AccessToken || t == RefreshToken
}

// TokenRecord is the server-side entry stored under a token's own value.
// Its presence is what makes a token live.
type TokenRecord struct {
	TokenType TokenType `json:"tokenType"`
	ClientID  string    `json:"clientId"`
	SubjectID string    `json:"subjectId"`
	// SecretRef fingerprints the application secret the token was issued under
	SecretRef string `json:"secretRef"`
}

// SecretRef returns the fingerprint stored in token records for an application secret
func SecretRef(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// TokenRecordStore keeps token records and the subject index that points at
// the live token for each (subject, client, token type).
type TokenRecordStore struct {
	store store.Store
}

func NewTokenRecordStore(s store.Store) *TokenRecordStore {
	return &TokenRecordStore{store: s}
}

func subjectIndexKey(subjectID, clientID string, tokenType TokenType) string {
	return fmt.Sprintf("subject:%s:%s:%s", subjectID, clientID, tokenType)
}

// Create writes the record for token
func (s *TokenRecordStore) Create(ctx context.Context, token string, rec TokenRecord, ttl time.Duration) error {
	if !rec.TokenType.valid() {
		return fmt.Errorf("unknown token type %q", rec.TokenType)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	return s.store.SetWithExpiry(ctx, token, string(data), ttl)
}

// Get returns the record for token or ErrTokenRevoked
func (s *TokenRecordStore) Get(ctx context.Context, token string) (*TokenRecord, error) {
	data, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}
	return decodeRecord(data)
}

// Take atomically removes and returns the record for token. Only one caller
// can take a given record.
func (s *TokenRecordStore) Take(ctx context.Context, token string) (*TokenRecord, error) {
	data, err := s.store.Take(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}
	return decodeRecord(data)
}

// Remove deletes the record for token
func (s *TokenRecordStore) Remove(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

// Current returns the live token for a subject, or "" if the index is empty
func (s *TokenRecordStore) Current(ctx context.Context, subjectID, clientID string, tokenType TokenType) (string, error) {
	token, err := s.store.Get(ctx, subjectIndexKey(subjectID, clientID, tokenType))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return token, err
}

// Promote points the subject index at token and removes the token it
// replaces. The new record must already exist, so at no point is the subject
// left without a live token.
func (s *TokenRecordStore) Promote(ctx context.Context, token string, rec TokenRecord, ttl time.Duration) error {
	previous, err := s.Current(ctx, rec.SubjectID, rec.ClientID, rec.TokenType)
	if err != nil {
		return err
	}
	if err := s.store.SetWithExpiry(ctx, subjectIndexKey(rec.SubjectID, rec.ClientID, rec.TokenType), token, ttl); err != nil {
		return err
	}
	if previous != "" && previous != token {
		if err := s.Remove(ctx, previous); err != nil {
			return err
		}
	}
	return nil
}

// RevokeSubject deletes the live tokens and index entries of a subject for one client
func (s *TokenRecordStore) RevokeSubject(ctx context.Context, subjectID, clientID string) error {
	for _, tokenType := range []TokenType{AccessToken, RefreshToken} {
		token, err := s.Current(ctx, subjectID, clientID, tokenType)
		if err != nil {
			return err
		}
		if token != "" {
			if err := s.Remove(ctx, token); err != nil {
				return err
			}
		}
		if err := s.store.Delete(ctx, subjectIndexKey(subjectID, clientID, tokenType)); err != nil {
			return err
		}
	}
	return nil
}

func decodeRecord(data string) (*TokenRecord, error) {
	var rec TokenRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}
	if !rec.TokenType.valid() || rec.ClientID == "" {
		return nil, fmt.Errorf("corrupt token record: type %q", rec.TokenType)
	}
	return &rec, nil
}
