package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

const verifierLength = 43 // RFC 7636 minimum, 32 random bytes base64url encoded

// stateCharset is the RFC 3986 unreserved character set.
const stateCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

// generatePKCE produces a fresh code verifier and its S256 challenge
// (base64url-encoded SHA-256 digest of the verifier, RFC 7636).
func generatePKCE() (verifier, challenge string, err error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return "", "", errors.Wrap(err, "[generatePKCE] rand.Read")
	}
	verifier = base64.RawURLEncoding.EncodeToString(verifierBytes)
	challenge = S256ChallengeFromVerifier(verifier)
	return verifier, challenge, nil
}

// S256ChallengeFromVerifier computes the S256 code challenge for a verifier.
func S256ChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// generateState produces an anti-CSRF state parameter of the given length,
// drawn from the unreserved charset with a cryptographically secure source.
func generateState(length int) (string, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", errors.Wrap(err, "[generateState] rand.Read")
	}
	state := make([]byte, length)
	for i, b := range randomBytes {
		state[i] = stateCharset[int(b)%len(stateCharset)]
	}
	return string(state), nil
}
