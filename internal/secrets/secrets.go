package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"strings"
)

const minSecretLength = 16

// ServiceSecret is the shared secret trusted for server-to-server calls,
// such as the title endpoint trigger issued by the chat handler.
type ServiceSecret struct {
	digest []byte
}

func ParseServiceSecret(raw string) (*ServiceSecret, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("INTERNAL_SERVICE_SECRET is required")
	}
	if len(raw) < minSecretLength {
		return nil, errors.New("INTERNAL_SERVICE_SECRET must be at least 16 characters")
	}
	digest := sha256.Sum256([]byte(raw))
	return &ServiceSecret{digest: digest[:]}, nil
}

// Matches reports whether the presented value equals the configured secret.
// Comparison runs over fixed-size digests so timing does not leak length.
func (s *ServiceSecret) Matches(presented string) bool {
	if s == nil || presented == "" {
		return false
	}
	candidate := sha256.Sum256([]byte(strings.TrimSpace(presented)))
	return hmac.Equal(s.digest, candidate[:])
}
