package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
)

const forgotPasswordMessage = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type authApi struct {
	svc        *auth.Service
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(g *echo.Group, bearer, limit echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		svc:        deps.AuthSvc,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// un-authed endpoints
	g.POST("/auth/login", api.login, limit)
	g.POST("/auth/refresh-token", api.refreshToken, limit)
	g.POST("/auth/logout", api.logout)
	g.POST("/auth/verify-email", api.verifyEmail, limit)
	g.POST("/forgot-password", api.forgotPassword, limit)
	g.POST("/reset-password", api.resetPassword, limit)
	g.POST("/register-school", api.registerSchool, limit)

	// authed endpoints, open to a principal that must change its password
	g.GET("/auth/me", api.me, bearer)
	g.POST("/auth/change-password", api.changePassword, bearer, requireCapability(authz.ChangePassword))
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Login(ctx.Request().Context(), data.Email, data.Password, data.Remember)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, newGrantResponse(res))
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Refresh(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		if _, ok := core.AsAuthError(err); ok {
			return unauthenticated(err)
		}
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, newGrantResponse(res))
}

// logout ends the session of the bearer token, if it still names one. It always succeeds.
func (api *authApi) logout(ctx echo.Context) error {
	if tok := bearerToken(ctx); tok != "" {
		rctx := ctx.Request().Context()
		if p, err := api.svc.Authenticate(rctx, tok); err == nil {
			if err := api.svc.Logout(rctx, p.SessionID); err != nil {
				api.logger.Error("logging out", errors.Wrap(err, "revoking session"), p)
			}
		}
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Logged out."})
}

func (api *authApi) me(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	if !ok {
		return unauthenticated(core.ErrTokenInvalid)
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: p, Capabilities: authz.Effective(&p).Slice()})
}

func (api *authApi) changePassword(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	if !ok {
		return unauthenticated(core.ErrTokenInvalid)
	}
	var data ChangePasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePasswordRequest")
	}

	if err := api.svc.ChangePassword(ctx.Request().Context(), p, data.NewPassword); err != nil {
		if errors.Is(err, core.ErrTokenInvalid) {
			return unauthenticated(err)
		}
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Password has been changed."})
}

// forgotPassword answers the same way whether or not the email is known.
func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data ForgotPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ForgotPasswordRequest")
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: forgotPasswordMessage})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data ResetPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPasswordRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data.Token, data.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Password has been reset with the new password."})
}

func (api *authApi) verifyEmail(ctx echo.Context) error {
	var data VerifyEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyEmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.VerifyEmail(ctx.Request().Context(), data.Token); err != nil {
		return errors.Wrap(err, "verifying email")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Email address has been verified."})
}

func (api *authApi) registerSchool(ctx echo.Context) error {
	var data account.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	school, admin, err := api.svc.RegisterSchool(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	return ctx.JSON(http.StatusCreated, RegisterSchoolResponse{School: school, User: admin})
}
