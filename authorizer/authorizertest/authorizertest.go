// Package authorizertest provides a test identity provider: an RSA signing
// key with a self-signed certificate, a key directory server publishing it
// and helpers to mint tokens.
package authorizertest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Issuer signs tokens with a single RSA key
type Issuer struct {
	KeyID       string
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

// NewIssuer generates a key pair and a self-signed certificate for kid
func NewIssuer(t testing.TB, kid string) *Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "todo-test-issuer " + kid},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &Issuer{KeyID: kid, Key: key, Certificate: cert}
}

// JWK returns the public key as a JSON Web Key carrying its certificate in x5c
func (i *Issuer) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:          &i.Key.PublicKey,
		KeyID:        i.KeyID,
		Algorithm:    "RS256",
		Use:          "sig",
		Certificates: []*x509.Certificate{i.Certificate},
	}
}

// Sign signs claims with RS256 and the issuer's kid
func (i *Issuer) Sign(t testing.TB, claims jwt.Claims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.KeyID
	s, err := tok.SignedString(i.Key)
	require.NoError(t, err)
	return s
}

// Mint returns a token for subject that expires after ttl. A negative ttl
// produces an already expired token.
func (i *Issuer) Mint(t testing.TB, subject string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	return i.Sign(t, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "https://issuer.test/",
		Audience:  jwt.ClaimStrings{"todo-api"},
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
}

// FlipSignatureByte returns token with one byte of its signature inverted
func FlipSignatureByte(t testing.TB, token string) string {
	t.Helper()

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	sig[len(sig)/2] ^= 0xff
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

// DirectoryDocument marshals a key directory publishing the given issuers
func DirectoryDocument(t testing.TB, issuers ...*Issuer) []byte {
	t.Helper()

	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(issuers))}
	for _, iss := range issuers {
		set.Keys = append(set.Keys, iss.JWK())
	}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	return b
}

// DirectoryServer serves a key directory and counts the requests it receives
type DirectoryServer struct {
	*httptest.Server

	mu      sync.Mutex
	body    []byte
	status  int
	delay   time.Duration
	fetches atomic.Int32
}

// NewDirectoryServer starts a server publishing issuers. It is closed when the test ends.
func NewDirectoryServer(t testing.TB, issuers ...*Issuer) *DirectoryServer {
	t.Helper()

	s := &DirectoryServer{body: DirectoryDocument(t, issuers...), status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *DirectoryServer) serve(w http.ResponseWriter, r *http.Request) {
	s.fetches.Add(1)

	s.mu.Lock()
	body, status, delay := s.body, s.status, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Fetches returns the number of requests served so far
func (s *DirectoryServer) Fetches() int {
	return int(s.fetches.Load())
}

// Publish replaces the served directory with one publishing issuers
func (s *DirectoryServer) Publish(t testing.TB, issuers ...*Issuer) {
	t.Helper()
	s.SetBody(DirectoryDocument(t, issuers...))
}

// SetBody replaces the raw response body
func (s *DirectoryServer) SetBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// SetStatus sets the response status code
func (s *DirectoryServer) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

// SetDelay delays every response by d
func (s *DirectoryServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}
