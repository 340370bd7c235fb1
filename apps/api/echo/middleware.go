package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
	"github.com/MagetoJ/EduKE-sub001/services/metrics"
	"github.com/MagetoJ/EduKE-sub001/services/ratelimit"
)

// bearerMiddleware resolves the access token into a principal. The account is re-read on
// every request, so a disabled account or a suspended school is refused at once.
func bearerMiddleware(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tok := bearerToken(ctx)
			if tok == "" {
				return unauthenticated(core.ErrTokenInvalid)
			}
			p, err := svc.Authenticate(ctx.Request().Context(), tok)
			if err != nil {
				if _, ok := core.AsAuthError(err); ok {
					return unauthenticated(err)
				}
				return errors.Wrap(err, "authenticating")
			}
			setContextPrincipal(ctx, p)
			return next(ctx)
		}
	}
}

func requireCapability(c authz.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, ok := contextPrincipal(ctx)
			if !ok {
				return unauthenticated(core.ErrTokenInvalid)
			}
			if err := authz.Check(&p, c); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// rateLimitMiddleware counts requests per route and client IP. A failing limiter lets the
// request through.
func rateLimitMiddleware(limiter ratelimit.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(ctx echo.Context) error {
			key := ctx.Path() + ":" + ctx.RealIP()
			ok, err := limiter.Allow(ctx.Request().Context(), key)
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter unavailable", err, map[string]interface{}{"key": key})
				}
				return next(ctx)
			}
			if !ok {
				return core.ErrRateLimited
			}
			return next(ctx)
		}
	}
}

func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the response so its status is observed
				ctx.Error(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
