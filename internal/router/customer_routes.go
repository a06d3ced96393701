package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// RegisterCustomer registers the reservation lifecycle on an
// authenticated group.  Seat selection is rate limited when a limiter is
// given.
func RegisterCustomer(g *echo.Group, h *handler.ReservationHandler, limiter echo.MiddlewareFunc) {
	g.POST("/pools/:id/reservations", h.Select, optional(limiter)...)
	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/confirm", h.Confirm)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.GET("/bookings", h.Bookings)
}
