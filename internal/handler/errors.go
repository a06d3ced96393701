package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// writeError maps the service error taxonomy onto HTTP responses.
// Unknown errors are logged and hidden behind a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var (
		conflict *service.ConflictError
		funds    *service.InsufficientFundsError
	)
	switch {
	case errors.As(err, &conflict):
		body := echo.Map{"error": "seats unavailable", "conflicting_seats": conflict.Seats}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &funds):
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":     "insufficient funds",
			"required":  funds.RequiredCents,
			"available": funds.AvailableCents,
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrInconsistency):
		log.Error("internal inconsistency", zap.String("path", c.Request().URL.Path), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal inconsistency"})
	}
	log.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
