package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository/memstore"
)

func TestPoolService_Create(t *testing.T) {
	store := memstore.New()
	svc := NewPoolService(store.Pools())
	ctx := context.Background()
	starts := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	p, err := svc.Create(ctx, CreatePoolRequest{
		Name: " Night bus ", Origin: "Tehran", Destination: "Shiraz",
		StartsAt: starts, PricePerSeatCents: 2500, SeatCount: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "Night bus", p.Name)
	assert.Equal(t, model.PoolStatusPublished, p.Status)
	assert.NotZero(t, p.ID)

	seats, err := store.Pools().ListSeats(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, seats, 12)
	assert.Equal(t, "1", seats[0].SeatNumber)
	assert.Equal(t, "12", seats[11].SeatNumber)
	for _, st := range seats {
		assert.Equal(t, model.SeatAvailable, st.Status)
	}

	draft, err := svc.Create(ctx, CreatePoolRequest{
		Name: "Draft", Origin: "A", Destination: "B", StartsAt: starts, PricePerSeatCents: 1, SeatCount: 1, Draft: true,
	})
	require.NoError(t, err)
	assert.False(t, draft.IsOpen())
}

func TestPoolService_CreateValidation(t *testing.T) {
	svc := NewPoolService(memstore.New().Pools())
	valid := CreatePoolRequest{Name: "n", Origin: "a", Destination: "b",
		StartsAt: time.Now(), PricePerSeatCents: 100, SeatCount: 10}

	cases := map[string]func(r *CreatePoolRequest){
		"name":       func(r *CreatePoolRequest) { r.Name = " " },
		"route":      func(r *CreatePoolRequest) { r.Destination = "" },
		"starts_at":  func(r *CreatePoolRequest) { r.StartsAt = time.Time{} },
		"price":      func(r *CreatePoolRequest) { r.PricePerSeatCents = 0 },
		"no seats":   func(r *CreatePoolRequest) { r.SeatCount = 0 },
		"many seats": func(r *CreatePoolRequest) { r.SeatCount = MaxSeatsPerPool + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPoolService_Publish(t *testing.T) {
	store := memstore.New()
	svc := NewPoolService(store.Pools())
	ctx := context.Background()

	draft, err := svc.Create(ctx, CreatePoolRequest{Name: "d", Origin: "a", Destination: "b",
		StartsAt: time.Now(), PricePerSeatCents: 100, SeatCount: 2, Draft: true})
	require.NoError(t, err)

	p, err := svc.Publish(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, p.IsOpen())

	_, err = svc.Publish(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Publish(ctx, draft.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}
