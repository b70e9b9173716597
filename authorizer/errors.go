package authorizer

import (
	"errors"
	"fmt"
)

// Kind identifies why an authorization attempt failed
type Kind string

const (
	KindMissingCredential    Kind = "missing_credential"
	KindInvalidScheme        Kind = "invalid_scheme"
	KindDirectoryUnavailable Kind = "directory_unavailable"
	KindDirectoryMalformed   Kind = "directory_malformed"
	KindUnknownKey           Kind = "unknown_key"
	KindMalformedToken       Kind = "malformed_token"
	KindInvalidSignature     Kind = "invalid_signature"
	KindExpiredToken         Kind = "expired_token"
	KindInvalidClaims        Kind = "invalid_claims"
	KindInternal             Kind = "internal"
)

// Category groups failure kinds by who is at fault
type Category string

const (
	CategoryCredential Category = "credential"
	CategoryDirectory  Category = "directory"
	CategoryKey        Category = "key"
	CategoryToken      Category = "token"
	CategoryInternal   Category = "internal"
)

// Category returns the category the kind belongs to
func (k Kind) Category() Category {
	switch k {
	case KindMissingCredential, KindInvalidScheme:
		return CategoryCredential
	case KindDirectoryUnavailable, KindDirectoryMalformed:
		return CategoryDirectory
	case KindUnknownKey:
		return CategoryKey
	case KindMalformedToken, KindInvalidSignature, KindExpiredToken, KindInvalidClaims:
		return CategoryToken
	default:
		return CategoryInternal
	}
}

// Error is a failure produced by one of the authorization stages
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	// ErrMissingCredential is returned when no credential was supplied
	ErrMissingCredential = &Error{Kind: KindMissingCredential}

	// ErrInvalidScheme is returned when the credential is not a bearer credential
	ErrInvalidScheme = &Error{Kind: KindInvalidScheme}

	// ErrDirectoryUnavailable is returned when the key directory could not be reached
	ErrDirectoryUnavailable = &Error{Kind: KindDirectoryUnavailable}

	// ErrDirectoryMalformed is returned when the key directory body could not be used
	ErrDirectoryMalformed = &Error{Kind: KindDirectoryMalformed}

	// ErrUnknownKey is returned when no directory key matches the token kid
	ErrUnknownKey = &Error{Kind: KindUnknownKey}

	// ErrMalformedToken is returned when the token is not a well-formed JWT
	ErrMalformedToken = &Error{Kind: KindMalformedToken}

	// ErrInvalidSignature is returned for a disallowed algorithm or a bad signature
	ErrInvalidSignature = &Error{Kind: KindInvalidSignature}

	// ErrExpiredToken is returned when exp or nbf rule out the current time
	ErrExpiredToken = &Error{Kind: KindExpiredToken}

	// ErrInvalidClaims is returned when issuer or audience do not match
	ErrInvalidClaims = &Error{Kind: KindInvalidClaims}
)

// KindOf reports the failure kind carried by err. Errors that did not
// come from an authorization stage are reported as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
