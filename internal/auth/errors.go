package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/franciscosanchezn/gin-device-auth/internal/codegen"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

var (
	// ErrValidation marks a request with missing or malformed fields
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown client, an expired code or a revoked token.
	// It is terminal: retrying the same request cannot succeed.
	ErrNotFound = errors.New("not found")

	// ErrAuthentication marks bad credentials
	ErrAuthentication = errors.New("authentication failed")

	// ErrSignature marks a token that failed signature or claim validation
	ErrSignature = errors.New("token validation failed")

	// ErrStoreUnavailable marks a transient failure of the state store
	ErrStoreUnavailable = store.ErrUnavailable

	// ErrAllocationExhausted marks a code allocation that ran out of attempts
	ErrAllocationExhausted = codegen.ErrAllocationExhausted
)

var (
	ErrApplicationInvalid = fmt.Errorf("%w: not a valid application", ErrNotFound)
	ErrSessionExpired     = fmt.Errorf("%w: login session expired", ErrNotFound)
	ErrTokenRevoked       = fmt.Errorf("%w: token has been revoked or expired", ErrNotFound)
)

// FieldErrors maps a request field name to its problem
type FieldErrors map[string]string

// ValidationError reports every invalid field of a request
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// require adds a "required" error for every empty value
func (f FieldErrors) require(values map[string]string) FieldErrors {
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			f[name] = "required"
		}
	}
	return f
}

func (f FieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// Signature failure reasons
const (
	ReasonExpired          = "token_expired"
	ReasonBadSignature     = "signature_invalid"
	ReasonAudience         = "audience_mismatch"
	ReasonIssuer           = "issuer_mismatch"
	ReasonMalformed        = "token_malformed"
	ReasonTypeMismatch     = "token_type_mismatch"
	ReasonSecretRotated    = "application_secret_rotated"
	ReasonClaimsIncomplete = "claims_incomplete"
)

// SignatureError reports why a token failed validation
type SignatureError struct {
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *SignatureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSignature}
	}
	return []error{ErrSignature, e.Err}
}
