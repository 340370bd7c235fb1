package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

const contextPrincipalKey = "principal"

// bearerToken returns the token of an "Authorization: Bearer <token>" header, if any.
func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

func setContextPrincipal(ctx echo.Context, p account.Principal) {
	ctx.Set(contextPrincipalKey, p)
}

func contextPrincipal(ctx echo.Context) (account.Principal, bool) {
	p, ok := ctx.Get(contextPrincipalKey).(account.Principal)
	return p, ok
}
