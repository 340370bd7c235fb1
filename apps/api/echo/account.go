package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
)

type accountApi struct {
	svc      *auth.Service
	validate *validator.Validate
}

func registerAccountAPI(g *echo.Group, bearer echo.MiddlewareFunc, deps ServerDeps) {
	api := accountApi{
		svc:      deps.AuthSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/accounts", bearer, requireCapability(authz.ManageSchool))
	ag.POST("", api.create)
	ag.PUT("/:id/role", api.updateRole)
	ag.POST("/:id/disable", api.disable)
}

// Handlers

func (api *accountApi) create(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	if !ok {
		return unauthenticated(core.ErrTokenInvalid)
	}
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	acc, err := api.svc.CreateAccount(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *accountApi) updateRole(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	if !ok {
		return unauthenticated(core.ErrTokenInvalid)
	}
	var data RoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.svc.UpdateRole(ctx.Request().Context(), p, ctx.Param("id"), data.Role)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) disable(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	if !ok {
		return unauthenticated(core.ErrTokenInvalid)
	}
	if err := api.svc.DisableAccount(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "disabling account")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Account has been disabled."})
}
