package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// RegisterAdmin registers pool management under /admin of an
// authenticated group.  Only the ADMIN role passes.
func RegisterAdmin(g *echo.Group, p *handler.PoolHandler) {
	admin := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/pools", p.Create)
	admin.POST("/pools/:id/open", p.Open)
}
