package config

import (
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Storage and lock backends.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
	LockMemory  = "memory"
	LockRedis   = "redis"
)

// HoldConfig controls seat holds and the reservation core.
type HoldConfig struct {
	TTL                 time.Duration           // HOLD_TTL, lifetime of a pending reservation
	ReaperInterval      time.Duration           // REAPER_INTERVAL, time between expiry sweeps
	ReaperBatchSize     int                     // REAPER_BATCH_SIZE
	LockBackend         string                  // LOCK_BACKEND: memory or redis
	LockPrefix          string                  // LOCK_PREFIX, Redis key prefix
	StoreDriver         string                  // STORE_DRIVER: mysql or memory
	TransactionStatus   model.TransactionStatus // TRANSACTION_STATUS: held or settled
	InitialBalanceCents int64                   // INITIAL_BALANCE_CENTS granted on registration
	FinalizeMaxTries    uint                    // FINALIZE_MAX_TRIES on deadlocks
}

// LoadHoldConfig reads HoldConfig with defaults: a 600s hold, a sweep
// every 30s and a 1000.00 opening balance.
func LoadHoldConfig() HoldConfig {
	c := HoldConfig{
		TTL:                 envDur("HOLD_TTL", 600*time.Second),
		ReaperInterval:      envDur("REAPER_INTERVAL", 30*time.Second),
		ReaperBatchSize:     envInt("REAPER_BATCH_SIZE", 100),
		LockBackend:         envStr("LOCK_BACKEND", LockMemory),
		LockPrefix:          envStr("LOCK_PREFIX", "seatlock"),
		StoreDriver:         envStr("STORE_DRIVER", StoreMySQL),
		TransactionStatus:   model.TransactionStatus(envStr("TRANSACTION_STATUS", string(model.TransactionHeld))),
		InitialBalanceCents: envInt64("INITIAL_BALANCE_CENTS", 100000),
		FinalizeMaxTries:    uint(envInt("FINALIZE_MAX_TRIES", 3)),
	}
	if c.TTL <= 0 {
		c.TTL = 600 * time.Second
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 30 * time.Second
	}
	if c.ReaperBatchSize < 1 {
		c.ReaperBatchSize = 100
	}
	if c.LockBackend != LockRedis {
		c.LockBackend = LockMemory
	}
	if c.StoreDriver != StoreMemory {
		c.StoreDriver = StoreMySQL
	}
	if c.TransactionStatus != model.TransactionSettled {
		c.TransactionStatus = model.TransactionHeld
	}
	if c.InitialBalanceCents < 0 {
		c.InitialBalanceCents = 0
	}
	if c.FinalizeMaxTries < 1 {
		c.FinalizeMaxTries = 1
	}
	return c
}
