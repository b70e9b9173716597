package authorizer

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxDirectoryBytes caps the size of a key directory response body
const maxDirectoryBytes = 1 << 20

// KeyDirectoryFetcher returns the identity provider's current signing keys
type KeyDirectoryFetcher interface {
	Fetch(ctx context.Context) (*KeyDirectory, error)
}

// SigningKey is one verification key published by the identity provider
type SigningKey struct {
	KeyID          string
	Certificate    *x509.Certificate
	PublicKey      crypto.PublicKey
	RawCertificate string // x5c[0] as published
}

// KeyDirectory is an immutable snapshot of the published signing keys
type KeyDirectory struct {
	keys      map[string]*SigningKey
	order     []string
	fetchedAt time.Time
}

// NewKeyDirectory builds a snapshot from the given keys. When two keys share
// an identifier the first one wins.
func NewKeyDirectory(keys []*SigningKey, fetchedAt time.Time) *KeyDirectory {
	dir := &KeyDirectory{
		keys:      make(map[string]*SigningKey, len(keys)),
		order:     make([]string, 0, len(keys)),
		fetchedAt: fetchedAt,
	}
	for _, k := range keys {
		if k == nil || k.KeyID == "" {
			continue
		}
		if _, exists := dir.keys[k.KeyID]; exists {
			continue
		}
		dir.keys[k.KeyID] = k
		dir.order = append(dir.order, k.KeyID)
	}
	return dir
}

// Len returns the number of keys in the directory
func (d *KeyDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// KeyIDs returns the key identifiers in publication order
func (d *KeyDirectory) KeyIDs() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.order...)
}

// Keys returns the keys in publication order
func (d *KeyDirectory) Keys() []*SigningKey {
	if d == nil {
		return nil
	}
	out := make([]*SigningKey, 0, len(d.order))
	for _, kid := range d.order {
		out = append(out, d.keys[kid])
	}
	return out
}

// FetchedAt returns when the snapshot was obtained from the identity provider
func (d *KeyDirectory) FetchedAt() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.fetchedAt
}

// DirectoryDocument is the JSON shape of a signing-key directory (JWKS)
type DirectoryDocument struct {
	Keys []DirectoryEntry `json:"keys"`
}

// DirectoryEntry is one element of the directory "keys" array
type DirectoryEntry struct {
	Kid string   `json:"kid"`
	Kty string   `json:"kty,omitempty"`
	Alg string   `json:"alg,omitempty"`
	Use string   `json:"use,omitempty"`
	X5c []string `json:"x5c"`
}

// ParseDirectory decodes a directory document and loads the signing
// certificate (x5c[0]) of every key. Any unusable entry fails the whole
// document so a partially understood directory is never served.
func ParseDirectory(body []byte, fetchedAt time.Time) (*KeyDirectory, error) {
	var doc DirectoryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, newError(KindDirectoryMalformed, "parse directory", err)
	}
	return doc.directory(fetchedAt)
}

func (doc DirectoryDocument) directory(fetchedAt time.Time) (*KeyDirectory, error) {
	if doc.Keys == nil {
		return nil, newError(KindDirectoryMalformed, "parse directory", errors.New("missing keys"))
	}

	keys := make([]*SigningKey, 0, len(doc.Keys))
	for i, entry := range doc.Keys {
		key, err := entry.signingKey()
		if err != nil {
			return nil, newError(KindDirectoryMalformed, "parse directory", fmt.Errorf("key %d: %w", i, err))
		}
		keys = append(keys, key)
	}

	dir := NewKeyDirectory(keys, fetchedAt)
	if dir.Len() == 0 {
		return nil, newError(KindDirectoryMalformed, "parse directory", errors.New("no signing keys"))
	}
	return dir, nil
}

// Document converts the snapshot back into its JSON shape
func (d *KeyDirectory) Document() DirectoryDocument {
	doc := DirectoryDocument{Keys: make([]DirectoryEntry, 0, d.Len())}
	for _, k := range d.Keys() {
		doc.Keys = append(doc.Keys, DirectoryEntry{Kid: k.KeyID, X5c: []string{k.RawCertificate}})
	}
	return doc
}

func (e DirectoryEntry) signingKey() (*SigningKey, error) {
	if e.Kid == "" {
		return nil, errors.New("missing kid")
	}
	if len(e.X5c) == 0 || e.X5c[0] == "" {
		return nil, fmt.Errorf("kid %s: missing x5c", e.Kid)
	}

	// x5c values are standard (padded) base64 DER per RFC 7517 section 4.7
	der, err := base64.StdEncoding.DecodeString(e.X5c[0])
	if err != nil {
		return nil, fmt.Errorf("kid %s: decode x5c: %w", e.Kid, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("kid %s: parse certificate: %w", e.Kid, err)
	}

	return &SigningKey{
		KeyID:          e.Kid,
		Certificate:    cert,
		PublicKey:      cert.PublicKey,
		RawCertificate: e.X5c[0],
	}, nil
}

// DirectoryClient fetches the key directory from a fixed endpoint
type DirectoryClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// DirectoryClientConfig holds configuration for DirectoryClient
type DirectoryClientConfig struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is applied when it has none
}

// NewDirectoryClient creates a new DirectoryClient
func NewDirectoryClient(cfg DirectoryClientConfig, logger *zap.Logger) *DirectoryClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	} else if httpClient.Timeout == 0 {
		c := *httpClient
		c.Timeout = cfg.Timeout
		httpClient = &c
	}

	return &DirectoryClient{
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// URL returns the configured directory endpoint
func (c *DirectoryClient) URL() string {
	return c.url
}

// Fetch performs a single GET against the directory endpoint. It does not retry.
func (c *DirectoryClient) Fetch(ctx context.Context) (*KeyDirectory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, newError(KindDirectoryUnavailable, "fetch directory", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindDirectoryUnavailable, "fetch directory", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindDirectoryUnavailable, "fetch directory", fmt.Errorf("status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectoryBytes+1))
	if err != nil {
		return nil, newError(KindDirectoryUnavailable, "fetch directory", err)
	}
	if len(body) > maxDirectoryBytes {
		return nil, newError(KindDirectoryMalformed, "fetch directory", errors.New("response body too large"))
	}

	dir, err := ParseDirectory(body, c.now())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("key directory fetched",
		zap.Int("keys", dir.Len()),
		zap.Duration("duration", c.now().Sub(start)))

	return dir, nil
}
