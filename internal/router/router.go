// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Auth         *handler.AuthHandler
	Pools        *handler.PoolHandler
	Reservations *handler.ReservationHandler
}

// Middleware carries the optional Redis-backed middleware.  Nil entries
// are skipped.
type Middleware struct {
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	RegisterRoutes(e)
	RegisterAuth(e, h.Auth)
	RegisterPublic(e, h.Pools, mw.Cache)
	protected := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	protected.GET("/me", h.Auth.Me)
	RegisterCustomer(protected, h.Reservations, mw.RateLimit)
	RegisterAdmin(protected, h.Pools)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth exposes register and login under /v1/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers the browse endpoints guests may call.  Only
// pool details go through the response cache.
func RegisterPublic(e *echo.Echo, p *handler.PoolHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/pools/:id", p.Get, optional(cache)...)
	e.GET("/v1/pools/:id/seats", p.Seats)
}

func optional(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := mw[:0:0]
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
