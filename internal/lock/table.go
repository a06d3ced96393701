// Package lock implements the advisory seat lock table.  Locks are a
// contention shortcut taken before the authoritative conditional write
// against the store; losing them (restart, second process) never breaks
// correctness, it only lets more requests reach the database.
package lock

import (
	"context"
	"sort"
	"sync"
)

// Locker is a non-blocking, all-or-nothing lock over seat keys.
// TryAcquireBatch never waits: it returns the seats that could not be
// taken and false when any seat is already held.  ReleaseBatch is
// idempotent and only releases seats owned by holder.  Owner reports
// the current holder of one seat.
type Locker interface {
	TryAcquireBatch(ctx context.Context, poolID uint64, seats []string, holder string) ([]string, bool)
	ReleaseBatch(ctx context.Context, poolID uint64, seats []string, holder string)
	Owner(ctx context.Context, poolID uint64, seat string) (string, bool)
}

type key struct {
	pool uint64
	seat string
}

// Table is the in-process Locker.  Each seat key has its own mutex that
// is only ever taken with TryLock; ownership lives in a separate map so
// a release can be authorised by holder id.  mu guards the two maps and
// is held only while they are read or written, never across a batch.
//
// Mutex entries are never removed: a goroutine may hold a pointer from
// lockFor while the seat is released, and a replacement mutex would let
// two holders in.  The table therefore grows with the number of distinct
// seats ever touched, one small entry each, and is rebuilt on restart.
type Table struct {
	mu     sync.Mutex
	locks  map[key]*sync.Mutex
	owners map[key]string
}

// NewTable returns an empty lock table.
func NewTable() *Table {
	return &Table{
		locks:  make(map[key]*sync.Mutex),
		owners: make(map[key]string),
	}
}

func (t *Table) lockFor(k key) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[k]
	if !ok {
		l = &sync.Mutex{}
		t.locks[k] = l
	}
	return l
}

// canonical returns a sorted, deduplicated copy of seats.  Every batch
// walks keys in this order so overlapping batches cannot deadlock.
func canonical(seats []string) []string {
	out := make([]string, 0, len(seats))
	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TryAcquireBatch takes every seat lock or none.  It stops at the first
// seat it cannot lock, unlocks what it took and reports that seat plus
// every other seat of the batch already owned by a different holder.
// Later seats are only read from the owners map, never locked, so a
// losing batch cannot block the one that is winning.
func (t *Table) TryAcquireBatch(_ context.Context, poolID uint64, seats []string, holder string) ([]string, bool) {
	ordered := canonical(seats)
	acquired := make([]*sync.Mutex, 0, len(ordered))
	for i, s := range ordered {
		l := t.lockFor(key{poolID, s})
		if !l.TryLock() {
			for _, a := range acquired {
				a.Unlock()
			}
			return t.conflicts(poolID, ordered, i, holder), false
		}
		acquired = append(acquired, l)
	}

	t.mu.Lock()
	for _, s := range ordered {
		t.owners[key{poolID, s}] = holder
	}
	t.mu.Unlock()
	return nil, true
}

// conflicts returns ordered[failed] and every other seat owned by a
// holder other than holder, in canonical order.
func (t *Table) conflicts(poolID uint64, ordered []string, failed int, holder string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, 1)
	for i, s := range ordered {
		owner, ok := t.owners[key{poolID, s}]
		if i == failed || (ok && owner != holder) {
			out = append(out, s)
		}
	}
	return out
}

// ReleaseBatch unlocks the seats owned by holder.  Seats that are free or
// owned by someone else are left alone.
func (t *Table) ReleaseBatch(_ context.Context, poolID uint64, seats []string, holder string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range canonical(seats) {
		k := key{poolID, s}
		owner, ok := t.owners[k]
		if !ok || owner != holder {
			continue
		}
		delete(t.owners, k)
		if l, ok := t.locks[k]; ok {
			l.Unlock()
		}
	}
}

// Owner returns the holder of a seat lock, if any.
func (t *Table) Owner(_ context.Context, poolID uint64, seat string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.owners[key{poolID, seat}]
	return h, ok
}
