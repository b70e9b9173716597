package authorizer

import (
	"strings"
)

const bearerPrefix = "bearer "

// ExtractBearerToken returns the token that follows the "Bearer " prefix of
// an authorization header value. The token itself is not inspected.
func ExtractBearerToken(credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", ErrMissingCredential
	}

	if len(credential) < len(bearerPrefix) || !strings.EqualFold(credential[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidScheme
	}

	return credential[len(bearerPrefix):], nil
}
