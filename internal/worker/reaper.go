// Package worker runs the background jobs of the reservation core.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Expirer lists and expires pending reservations past their TTL.
type Expirer interface {
	ExpiredReservations(ctx context.Context, limit int) ([]model.Reservation, error)
	Expire(ctx context.Context, res *model.Reservation) (bool, error)
}

// ReaperConfig controls the sweep cadence.
type ReaperConfig struct {
	Interval  time.Duration // time between sweeps
	BatchSize int           // reservations fetched per page
}

// DefaultReaperConfig sweeps every 30 seconds in pages of 100 reservations.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{Interval: 30 * time.Second, BatchSize: 100}
}

// ReaperStats is a snapshot of reaper counters.
type ReaperStats struct {
	Running      bool
	Sweeps       int64
	Expired      int64 // reservations this reaper transitioned
	Skipped      int64 // already finished by another actor
	Failed       int64
	LastSweepAt  time.Time
	LastExpiries int
}

// Reaper periodically expires holds whose TTL elapsed.  Losing a race to
// a confirm or cancel is expected and only counted.
type Reaper struct {
	expirer Expirer
	cfg     ReaperConfig
	log     *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	stats   ReaperStats
}

// NewReaper builds a stopped reaper.
func NewReaper(expirer Expirer, cfg ReaperConfig, log *zap.Logger) *Reaper {
	def := DefaultReaperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{expirer: expirer, cfg: cfg, log: log.Named("reaper")}
}

// ErrAlreadyRunning is returned by Start on a running reaper.
var ErrAlreadyRunning = errors.New("reaper already running")

// Start runs one sweep right away and then one per interval until ctx
// is done or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stop := r.stopCh
	r.mu.Unlock()

	r.log.Info("starting", zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))
	r.wg.Add(1)
	go r.loop(ctx, stop)
	return nil
}

// Stop ends the loop and waits for an in-progress sweep.  It is safe to
// call more than once.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info("stopped")
}

// Stats returns a snapshot of the counters.
func (r *Reaper) Stats() ReaperStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Running = r.running
	return s
}

func (r *Reaper) loop(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires overdue reservations page by page and returns how many
// this call transitioned.  It stops on a short page, when ctx is done, or
// when a whole page only produced failures, since those rows would come
// back on the next page unchanged.
func (r *Reaper) Sweep(ctx context.Context) int {
	var expired, skipped, failed int64
	found := 0
	for ctx.Err() == nil {
		list, err := r.expirer.ExpiredReservations(ctx, r.cfg.BatchSize)
		if err != nil {
			r.log.Error("list expired reservations failed", zap.Error(err))
			failed++
			break
		}
		found += len(list)

		progress := false
		for i := range list {
			res := &list[i]
			ok, err := r.expirer.Expire(ctx, res)
			switch {
			case err != nil:
				failed++
				r.log.Error("expire failed", zap.String("reservation_id", res.ID), zap.Error(err))
			case ok:
				expired++
				progress = true
			default:
				skipped++
				progress = true
			}
		}
		if len(list) < r.cfg.BatchSize || !progress {
			break
		}
	}
	if found > 0 {
		r.log.Info("sweep done",
			zap.Int("found", found), zap.Int64("expired", expired),
			zap.Int64("skipped", skipped), zap.Int64("failed", failed))
	}
	r.record(expired, skipped, failed, found)
	return int(expired)
}

func (r *Reaper) record(expired, skipped, failed int64, found int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Sweeps++
	r.stats.Expired += expired
	r.stats.Skipped += skipped
	r.stats.Failed += failed
	r.stats.LastSweepAt = time.Now().UTC()
	r.stats.LastExpiries = found
}
