package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeNoToken            = "NO_TOKEN"
	TextCodeTokenInvalid       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAlreadyRegistered  = "ALREADY_REGISTERED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// ErrNoToken is returned when a protected operation carries no bearer token.
var ErrNoToken = errors.New("No token, authorization denied", errors.CategoryAuth).
	WithTextCode(TextCodeNoToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid is returned when a token fails signature verification.
var ErrTokenInvalid = errors.New("Token is not valid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiration claim.
var ErrTokenExpired = errors.New("Token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = errors.New("Token is not valid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials is returned for a failed email/password check. The
// message deliberately does not reveal whether the email exists.
var ErrInvalidCredentials = errors.New("Invalid Credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAlreadyRegistered is returned when registering an email that exists.
var ErrAlreadyRegistered = errors.New("User already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(errors.CodeConflict)

// ErrForbidden is returned when a resolved identity lacks a required role.
var ErrForbidden = errors.New("Access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrIdentityNotFound is returned when a token subject has no identity record.
var ErrIdentityNotFound = errors.New("User not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrStoreUnavailable is returned when the identity store cannot be reached.
// It must never be collapsed into ErrIdentityNotFound or ErrForbidden: a
// store outage is not a policy decision about the caller.
var ErrStoreUnavailable = errors.New("Identity store unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrNoEmptyString guards hashing empty passwords.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// TextCode returns the rich error text code, or "" for foreign errors.
func TextCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsIdentityNotFound reports whether err classifies the token subject as
// unknown, as opposed to the store being unreachable.
func IsIdentityNotFound(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeIdentityNotFound {
		return true
	}
	return errors.IsNotFound(err)
}

// IsStoreUnavailable reports whether err means the identity store could not
// answer. Callers must treat this distinctly from both "not found" and
// "forbidden".
func IsStoreUnavailable(err error) bool {
	return TextCode(err) == TextCodeStoreUnavailable
}
