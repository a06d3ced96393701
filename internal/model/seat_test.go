package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seatAt(status SeatStatus, holder *string) Seat {
	return Seat{PoolID: 1, SeatNumber: "4", Status: status, HolderReservationID: holder}
}

func TestSeat_HeldBy(t *testing.T) {
	id, other := "r1", "r2"

	// Called on a returned value, as the service tests read seats.
	assert.True(t, seatAt(SeatReserved, &id).HeldBy("r1"))
	assert.False(t, seatAt(SeatReserved, &other).HeldBy("r1"))
	assert.False(t, seatAt(SeatBooked, &id).HeldBy("r1"))
	assert.False(t, seatAt(SeatReserved, nil).HeldBy("r1"))
}
