package authorizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm is the signing algorithm accepted when none is configured
const DefaultAlgorithm = "RS256"

// asymmetricAlgorithms lists the algorithms a verifier may be pinned to.
// Symmetric and "none" algorithms are never accepted.
var asymmetricAlgorithms = map[string]jwt.SigningMethod{
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
	"PS256": jwt.SigningMethodPS256,
	"PS384": jwt.SigningMethodPS384,
	"PS512": jwt.SigningMethodPS512,
	"ES256": jwt.SigningMethodES256,
	"ES384": jwt.SigningMethodES384,
	"ES512": jwt.SigningMethodES512,
}

// IsSupportedAlgorithm reports whether alg can be used to pin a Verifier
func IsSupportedAlgorithm(alg string) bool {
	_, ok := asymmetricAlgorithms[alg]
	return ok
}

// TokenHeader holds the header fields needed to select a verification key
type TokenHeader struct {
	Alg   string
	KeyID string
	Type  string
}

// VerifiedClaims holds the claims of a token whose signature and lifetime were verified
type VerifiedClaims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	Algorithm string        // pinned algorithm, default RS256
	Leeway    time.Duration // clock skew tolerance for exp/nbf
	Issuer    string        // optional expected iss
	Audience  string        // optional expected aud
}

// Verifier validates token structure, signature and time-based claims
type Verifier struct {
	alg      string
	leeway   time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier creates a Verifier pinned to a single asymmetric algorithm
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if !IsSupportedAlgorithm(cfg.Algorithm) {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", cfg.Algorithm)
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}

	return &Verifier{
		alg:      cfg.Algorithm,
		leeway:   cfg.Leeway,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}, nil
}

// Algorithm returns the pinned algorithm
func (v *Verifier) Algorithm() string {
	return v.alg
}

// ParseHeader checks that the token is a three-part JWT and returns its
// header. The signature is not checked.
func (v *Verifier) ParseHeader(token string) (*TokenHeader, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) && parsed != nil {
			// structure is fine but the declared alg is not one the library knows
			return nil, newError(KindInvalidSignature, "parse header", err)
		}
		return nil, newError(KindMalformedToken, "parse header", err)
	}

	h := &TokenHeader{}
	h.Alg, _ = parsed.Header["alg"].(string)
	h.KeyID, _ = parsed.Header["kid"].(string)
	h.Type, _ = parsed.Header["typ"].(string)
	return h, nil
}

// Verify checks the token against key. The gates run in order: structure,
// algorithm pinning, signature, then exp/nbf and the optional iss/aud.
func (v *Verifier) Verify(token string, key *SigningKey) (*VerifiedClaims, error) {
	if key == nil || key.PublicKey == nil {
		return nil, newError(KindInvalidSignature, "verify token", errors.New("no verification key"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if kid, _ := t.Header["kid"].(string); kid != key.KeyID {
			return nil, fmt.Errorf("token kid %q does not match key %q", kid, key.KeyID)
		}
		return key.PublicKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims.Subject == "" {
		return nil, newError(KindMalformedToken, "verify token", errors.New("missing sub claim"))
	}

	out := &VerifiedClaims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: append([]string(nil), claims.Audience...),
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// classifyParseError maps golang-jwt errors onto failure kinds. Signature
// problems are checked before claim problems since the library verifies
// the signature first.
func classifyParseError(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(KindMalformedToken, "verify token", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindInvalidSignature, "verify token", err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return newError(KindExpiredToken, "verify token", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newError(KindInvalidClaims, "verify token", err)
	default:
		return newError(KindInvalidClaims, "verify token", err)
	}
}
