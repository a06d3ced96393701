package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// MaxSeatsPerPool bounds the seat rows created for one pool.
const MaxSeatsPerPool = 500

// CreatePoolRequest is the admin input for a new pool.
type CreatePoolRequest struct {
	Name              string
	Origin            string
	Destination       string
	StartsAt          time.Time
	PricePerSeatCents int64
	SeatCount         int
	Draft             bool
}

// PoolService manages the pool catalogue.
type PoolService struct {
	pools repository.PoolAdmin
}

func NewPoolService(pools repository.PoolAdmin) *PoolService { return &PoolService{pools: pools} }

// Create validates req and stores the pool with seats "1".."SeatCount".
func (s *PoolService) Create(ctx context.Context, req CreatePoolRequest) (*model.Pool, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, validation("name is required")
	case strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "":
		return nil, validation("origin and destination are required")
	case req.StartsAt.IsZero():
		return nil, validation("starts_at is required")
	case req.PricePerSeatCents <= 0:
		return nil, validation("price_per_seat_cents must be positive")
	case req.SeatCount <= 0 || req.SeatCount > MaxSeatsPerPool:
		return nil, validation("seat_count must be between 1 and %d", MaxSeatsPerPool)
	}
	p := &model.Pool{
		Name:              strings.TrimSpace(req.Name),
		Origin:            strings.TrimSpace(req.Origin),
		Destination:       strings.TrimSpace(req.Destination),
		StartsAt:          req.StartsAt.UTC(),
		PricePerSeatCents: req.PricePerSeatCents,
		SeatCount:         req.SeatCount,
		Status:            model.PoolStatusPublished,
	}
	if req.Draft {
		p.Status = model.PoolStatusDraft
	}
	if err := s.pools.CreatePool(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Publish opens a draft pool for holds.  Publishing a pool that is
// already past draft is an invalid state.
func (s *PoolService) Publish(ctx context.Context, poolID uint64) (*model.Pool, error) {
	p, err := s.pools.PublishPool(ctx, poolID)
	switch {
	case errors.Is(err, repository.ErrPoolNotDraft):
		return nil, fmt.Errorf("%w: pool %d is %s", ErrInvalidState, poolID, p.Status)
	case err != nil:
		return nil, notFound(err, "pool %d", poolID)
	}
	return p, nil
}
