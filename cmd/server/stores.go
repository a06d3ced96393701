package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/repository/memstore"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// stores is the persistence the server runs against, MySQL or memory.
type stores struct {
	pools        repository.PoolRegistry
	admin        repository.PoolAdmin
	seats        repository.SeatStore
	reservations repository.ReservationStore
	accounts     repository.AccountStore
	bookings     repository.BookingStore
	users        repository.UserStore
	db           *sql.DB
}

func (s *stores) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(ctx context.Context, cfg config.Config, hold config.HoldConfig, log *zap.Logger) (*stores, error) {
	if hold.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		m := memstore.New()
		return &stores{
			pools:        m.Pools(),
			admin:        m.Pools(),
			seats:        m.Seats(),
			reservations: m.Reservations(),
			accounts:     m.Users(),
			bookings:     m.Bookings(),
			users:        m.Users(),
		}, nil
	}

	cfg.RequireDB()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	users := repository.NewUserRepo(db)
	pools := repository.NewPoolRepo(db)
	return &stores{
		pools:        pools,
		admin:        pools,
		seats:        repository.NewSeatRepo(db),
		reservations: repository.NewReservationRepo(db),
		accounts:     users,
		bookings:     repository.NewBookingRepo(db),
		users:        users,
		db:           db,
	}, nil
}

// seedAdmin creates the ADMIN_EMAIL account when it does not exist yet.
func seedAdmin(ctx context.Context, cfg config.Config, users repository.UserStore) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	err = users.Create(ctx, &model.User{Email: email, Name: "admin", PasswordHash: hash, Role: model.RoleAdmin})
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	return err
}
