package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// ReservationHandler exposes the reservation lifecycle to customers.
// Every route runs behind JWTAuth.
type ReservationHandler struct {
	Svc *service.ReservationService
	Log *zap.Logger
}

func NewReservationHandler(svc *service.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Log: log}
}

type selectReq struct {
	SeatNumbers []string `json:"seat_numbers"`
}

type passengerReq struct {
	SeatNumber string `json:"seat_number"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
}

type confirmReq struct {
	Passengers []passengerReq `json:"passengers"`
}

// Select handles POST /v1/pools/:id/reservations.
func (h *ReservationHandler) Select(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pid, ok := poolID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	var req selectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Svc.Select(c.Request().Context(), service.SelectRequest{
		PoolID:      pid,
		UserID:      uid,
		SeatNumbers: req.SeatNumbers,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, heldView{
		reservationView: newReservationView(res),
		ExpiresIn:       int64(h.Svc.HoldTTL().Seconds()),
	})
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Svc.ListReservations(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]reservationView, 0, len(list))
	for i := range list {
		out = append(out, newReservationView(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Svc.Get(c.Request().Context(), reservationID(c), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

// Confirm handles POST /v1/reservations/:id/confirm.  The body lists one
// passenger per held seat.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ps := make([]service.PassengerInput, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		ps = append(ps, service.PassengerInput{SeatNumber: p.SeatNumber, Name: p.Name, Email: p.Email, Mobile: p.Mobile})
	}
	b, err := h.Svc.Confirm(c.Request().Context(), service.ConfirmRequest{
		ReservationID: reservationID(c),
		UserID:        uid,
		Passengers:    ps,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newBookingView(b))
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Svc.Cancel(c.Request().Context(), reservationID(c), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

// Bookings handles GET /v1/bookings.
func (h *ReservationHandler) Bookings(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Svc.ListBookings(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]bookingView, 0, len(list))
	for i := range list {
		out = append(out, newBookingView(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

func reservationID(c echo.Context) string { return strings.TrimSpace(c.Param("id")) }
