package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
)

const codeInvalidInput = "invalid_input"

type httpError struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// unauthenticatedError marks credential failures on routes that need a live session.
// They are reported as 401 whatever the underlying token error.
type unauthenticatedError struct {
	err error
}

func (e unauthenticatedError) Error() string { return e.err.Error() }
func (e unauthenticatedError) Unwrap() error { return e.err }

func unauthenticated(err error) error {
	if err == nil {
		return nil
	}
	return unauthenticatedError{err: err}
}

func authErrorStatus(code core.ErrorCode) int {
	switch code {
	case core.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case core.CodeAccountDisabled, core.CodeTenantInactive, core.CodeAuthorizationDenied:
		return http.StatusForbidden
	case core.CodeEmailExists:
		return http.StatusConflict
	case core.CodeRateLimited:
		return http.StatusTooManyRequests
	case core.CodeNetworkFailure:
		return http.StatusBadGateway
	default: // weak password, invalid/expired/used tokens
		return http.StatusBadRequest
	}
}

func statusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var body httpError

		var unauthErr unauthenticatedError
		authErr, isAuthErr := core.AsAuthError(err)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			body = httpError{Error: http.StatusText(code), Code: statusCode(code)}
			if msg, ok := origErr.Message.(string); ok {
				body.Error = msg
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			body = httpError{
				Error:  "invalid input",
				Code:   codeInvalidInput,
				Fields: core.TranslateValidationErrors(origErr, translator),
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body = httpError{Error: origErr.Error(), Code: codeInvalidInput}
			if origErr.Fields != nil {
				body.Error = "invalid input"
				body.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					body.Fields[fErr.Field] = fErr.Error
				}
			}
		default:
			switch {
			case isAuthErr:
				code = authErrorStatus(authErr.Code)
				if errors.As(err, &unauthErr) && code == http.StatusBadRequest {
					code = http.StatusUnauthorized
				}
				body = httpError{Error: authErr.Message, Code: string(authErr.Code)}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				body = httpError{Error: msg, Code: statusCode(code)}

				fields := map[string]interface{}{"method": ctx.Request().Method, "path": ctx.Path()}
				if p, ok := contextPrincipal(ctx); ok {
					logger.Error(msg, errors.Wrap(err, msg), fields, p)
				} else {
					logger.Error(msg, errors.Wrap(err, msg), fields)
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			body.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// invalidField reports a single bad request field.
func invalidField(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}
