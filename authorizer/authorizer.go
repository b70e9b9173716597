// Package authorizer decides whether a bearer token grants access to the
// protected API.
//
// The pipeline is strictly sequential: the credential is reduced to a token,
// the token header names a key, the key is looked up in the identity
// provider's signing-key directory and the token is verified against it.
// Every failure ends in Deny; the Authorizer never returns an error.
package authorizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFetchTimeout bounds a directory fetch when no timeout is configured
const DefaultFetchTimeout = 5 * time.Second

// RequestContext carries the request fields that may be logged alongside a
// decision. It must never hold the credential.
type RequestContext struct {
	RequestID string
	MethodARN string
	SourceIP  string
}

func (rc RequestContext) fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if rc.RequestID != "" {
		fields = append(fields, zap.String("request_id", rc.RequestID))
	}
	if rc.MethodARN != "" {
		fields = append(fields, zap.String("method_arn", rc.MethodARN))
	}
	if rc.SourceIP != "" {
		fields = append(fields, zap.String("source_ip", rc.SourceIP))
	}
	return fields
}

// directoryRefresher is implemented by fetchers that can bypass their cache
type directoryRefresher interface {
	ForceRefresh(ctx context.Context) (*KeyDirectory, error)
}

// Option configures an Authorizer
type Option func(*Authorizer)

// WithFetchTimeout bounds the directory lookup of a single invocation
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Authorizer) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// Authorizer composes the authorization stages. It is safe for concurrent use.
type Authorizer struct {
	fetcher      KeyDirectoryFetcher
	verifier     *Verifier
	logger       *zap.Logger
	fetchTimeout time.Duration
}

// New creates an Authorizer. fetcher is usually a *DirectoryClient, or a
// *DirectoryCache wrapping one.
func New(fetcher KeyDirectoryFetcher, verifier *Verifier, logger *zap.Logger, opts ...Option) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Authorizer{
		fetcher:      fetcher,
		verifier:     verifier,
		logger:       logger,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize returns the decision for credential
func (a *Authorizer) Authorize(ctx context.Context, credential string) Decision {
	return a.AuthorizeRequest(ctx, credential, RequestContext{})
}

// AuthorizeRequest returns the decision for credential and logs failures with rc
func (a *Authorizer) AuthorizeRequest(ctx context.Context, credential string, rc RequestContext) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			a.logFailure(rc, newError(KindInternal, "authorize", fmt.Errorf("panic: %v", r)))
			decision = Deny()
		}
	}()

	claims, err := a.authenticate(ctx, credential, rc)
	if err != nil {
		a.logFailure(rc, err)
		return Deny()
	}

	a.logger.Debug("request authorized",
		append(rc.fields(), zap.String("principal_id", claims.Subject))...)
	return Allow(claims.Subject)
}

func (a *Authorizer) authenticate(ctx context.Context, credential string, rc RequestContext) (*VerifiedClaims, error) {
	if a.fetcher == nil || a.verifier == nil {
		return nil, newError(KindInternal, "authorize", errors.New("authorizer is not configured"))
	}

	token, err := ExtractBearerToken(credential)
	if err != nil {
		return nil, err
	}

	header, err := a.verifier.ParseHeader(token)
	if err != nil {
		return nil, err
	}
	if header.Alg != a.verifier.Algorithm() {
		return nil, newError(KindInvalidSignature, "verify token", fmt.Errorf("algorithm %q is not allowed", header.Alg))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	dir, err := a.fetcher.Fetch(fetchCtx)
	if err != nil {
		return nil, directoryError(err)
	}

	key, err := ResolveKey(dir, header.KeyID)
	if errors.Is(err, ErrUnknownKey) && header.KeyID != "" {
		if r, ok := a.fetcher.(directoryRefresher); ok {
			a.logger.Info("unknown key, refreshing directory",
				append(rc.fields(), zap.String("kid", header.KeyID))...)

			dir, err = r.ForceRefresh(fetchCtx)
			if err != nil {
				return nil, directoryError(err)
			}
			key, err = ResolveKey(dir, header.KeyID)
		}
	}
	if err != nil {
		return nil, err
	}

	return a.verifier.Verify(token, key)
}

// directoryError keeps fetch failures in the directory category even when a
// fetcher returns an error of its own
func directoryError(err error) error {
	if KindOf(err) == KindInternal {
		return newError(KindDirectoryUnavailable, "fetch directory", err)
	}
	return err
}

func (a *Authorizer) logFailure(rc RequestContext, err error) {
	kind := KindOf(err)
	fields := append(rc.fields(),
		zap.String("kind", string(kind)),
		zap.String("category", string(kind.Category())),
		zap.Error(err),
	)

	var level zapcore.Level
	switch kind.Category() {
	case CategoryCredential:
		level = zapcore.InfoLevel
	case CategoryKey, CategoryToken:
		level = zapcore.WarnLevel
	default:
		level = zapcore.ErrorLevel
	}

	if ce := a.logger.Check(level, "authorization denied"); ce != nil {
		ce.Write(fields...)
	}
}
