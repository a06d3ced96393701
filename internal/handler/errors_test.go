package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"conflict", &service.ConflictError{Seats: []string{"3", "4"}}, http.StatusConflict,
			`{"error":"seats unavailable","conflicting_seats":["3","4"]}`},
		{"funds", &service.InsufficientFundsError{RequiredCents: 300, AvailableCents: 100}, http.StatusPaymentRequired,
			`{"error":"insufficient funds","required":300,"available":100}`},
		{"not found", fmt.Errorf("%w: pool 9", service.ErrNotFound), http.StatusNotFound, `{"error":"not found: pool 9"}`},
		{"invalid state", service.ErrInvalidState, http.StatusBadRequest, `{"error":"reservation is not pending"}`},
		{"validation", fmt.Errorf("%w: seat_numbers is empty", service.ErrValidation), http.StatusBadRequest,
			`{"error":"validation failed: seat_numbers is empty"}`},
		{"expired", service.ErrExpired, http.StatusGone, `{"error":"reservation expired"}`},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, `{"error":"forbidden"}`},
		{"inconsistency", &service.InconsistencyError{Op: "book seats", Expected: 2, Actual: 1},
			http.StatusInternalServerError, `{"error":"internal inconsistency"}`},
		{"other", errors.New("db down"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
			assert.NoError(t, writeError(c, zap.NewNop(), tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestWriteError_ConflictWithCauseStaysConflict(t *testing.T) {
	err := &service.ConflictError{
		Seats: []string{"2"},
		Cause: &service.InconsistencyError{Op: "reserve seats", Expected: 2, Actual: 1},
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/x", nil), rec)
	assert.NoError(t, writeError(c, zap.NewNop(), err))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWriteError_LogsUnknown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/v1/bookings", nil), httptest.NewRecorder())
	_ = writeError(c, zap.New(core), errors.New("db down"))
	entries := logs.FilterMessage("request failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "/v1/bookings", entries[0].ContextMap()["path"])
	}
}
