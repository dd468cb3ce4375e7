package services

import "golang.org/x/crypto/bcrypt"

// BcryptVerifier checks passwords against bcrypt hashes
type BcryptVerifier struct{}

// Verify reports whether password matches hash. An empty hash never matches.
func (BcryptVerifier) Verify(password, hash string) bool {
	if hash == "" {
		// unknown accounts still pay for one comparison
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against for accounts that do not exist
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
