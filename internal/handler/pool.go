package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// PoolHandler serves pool details, seat maps and pool creation.
type PoolHandler struct {
	Reservations *service.ReservationService
	Pools        *service.PoolService
	Log          *zap.Logger
}

func NewPoolHandler(rs *service.ReservationService, ps *service.PoolService, log *zap.Logger) *PoolHandler {
	return &PoolHandler{Reservations: rs, Pools: ps, Log: log}
}

type seatMapResp struct {
	Pool      poolView   `json:"pool"`
	Seats     []seatView `json:"seats"`
	Available int        `json:"available"`
}

type createPoolReq struct {
	Name              string    `json:"name"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	StartsAt          time.Time `json:"starts_at"`
	PricePerSeatCents int64     `json:"price_per_seat_cents"`
	SeatCount         int       `json:"seat_count"`
	Draft             bool      `json:"draft"`
}

// Get handles GET /v1/pools/:id.
func (h *PoolHandler) Get(c echo.Context) error {
	id, ok := poolID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	p, err := h.Reservations.Pool(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPoolView(p))
}

// Seats handles GET /v1/pools/:id/seats.  Holds past their expiry are
// reported as available.
func (h *PoolHandler) Seats(c echo.Context) error {
	id, ok := poolID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	p, seats, err := h.Reservations.SeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := seatMapResp{Pool: newPoolView(p), Seats: make([]seatView, 0, len(seats))}
	for _, st := range seats {
		resp.Seats = append(resp.Seats, seatView{SeatNumber: st.SeatNumber, Status: st.Status})
		if st.Status == model.SeatAvailable {
			resp.Available++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Create handles POST /v1/admin/pools.
func (h *PoolHandler) Create(c echo.Context) error {
	var req createPoolReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p, err := h.Pools.Create(c.Request().Context(), service.CreatePoolRequest{
		Name:              req.Name,
		Origin:            req.Origin,
		Destination:       req.Destination,
		StartsAt:          req.StartsAt,
		PricePerSeatCents: req.PricePerSeatCents,
		SeatCount:         req.SeatCount,
		Draft:             req.Draft,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newPoolView(p))
}

// Open handles POST /v1/admin/pools/:id/open and publishes a draft pool.
func (h *PoolHandler) Open(c echo.Context) error {
	id, ok := poolID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	p, err := h.Pools.Publish(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPoolView(p))
}

func poolID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
