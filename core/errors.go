package core

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// ErrorCode identifies an authentication or authorization failure on the wire.
type ErrorCode string

const (
	CodeInvalidCredentials  ErrorCode = "invalid_credentials"
	CodeWeakPassword        ErrorCode = "weak_password"
	CodeTokenInvalid        ErrorCode = "token_invalid"
	CodeTokenExpired        ErrorCode = "token_expired"
	CodeTokenAlreadyUsed    ErrorCode = "token_already_used"
	CodeAccountDisabled     ErrorCode = "account_disabled"
	CodeTenantInactive      ErrorCode = "tenant_inactive"
	CodeEmailExists         ErrorCode = "email_exists"
	CodeNetworkFailure      ErrorCode = "network_failure"
	CodeAuthorizationDenied ErrorCode = "authorization_denied"
	CodeRateLimited         ErrorCode = "rate_limited"
)

// AuthError is a failure the caller can recover from (retry, re-enter a value, request a
// new link). Its Message is safe to show to an end user.
type AuthError struct {
	Code    ErrorCode
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// Is matches any AuthError carrying the same code.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if stderrors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

var (
	ErrInvalidCredentials  = &AuthError{CodeInvalidCredentials, "invalid email or password"}
	ErrWeakPassword        = &AuthError{CodeWeakPassword, "password does not meet the minimum requirements"}
	ErrTokenInvalid        = &AuthError{CodeTokenInvalid, "invalid token"}
	ErrTokenExpired        = &AuthError{CodeTokenExpired, "token has expired"}
	ErrTokenAlreadyUsed    = &AuthError{CodeTokenAlreadyUsed, "token has already been used"}
	ErrAccountDisabled     = &AuthError{CodeAccountDisabled, "account is disabled"}
	ErrTenantInactive      = &AuthError{CodeTenantInactive, "school account is not active"}
	ErrEmailExists         = &AuthError{CodeEmailExists, "an account with this email already exists"}
	ErrNetworkFailure      = &AuthError{CodeNetworkFailure, "could not reach the server"}
	ErrAuthorizationDenied = &AuthError{CodeAuthorizationDenied, "not permitted"}
	ErrRateLimited         = &AuthError{CodeRateLimited, "too many attempts, please try again later"}
)

var authErrors = map[ErrorCode]*AuthError{
	CodeInvalidCredentials:  ErrInvalidCredentials,
	CodeWeakPassword:        ErrWeakPassword,
	CodeTokenInvalid:        ErrTokenInvalid,
	CodeTokenExpired:        ErrTokenExpired,
	CodeTokenAlreadyUsed:    ErrTokenAlreadyUsed,
	CodeAccountDisabled:     ErrAccountDisabled,
	CodeTenantInactive:      ErrTenantInactive,
	CodeEmailExists:         ErrEmailExists,
	CodeNetworkFailure:      ErrNetworkFailure,
	CodeAuthorizationDenied: ErrAuthorizationDenied,
	CodeRateLimited:         ErrRateLimited,
}

// AuthErrorFromCode returns the sentinel for a wire code, or nil if the code is unknown.
func AuthErrorFromCode(code string) *AuthError {
	return authErrors[ErrorCode(code)]
}

// AsAuthError unwraps err down to an *AuthError, if any.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
