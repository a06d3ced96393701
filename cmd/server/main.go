package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/lock"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/notify"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
	"github.com/iliyamo/bus-seat-reservation/internal/worker"
)

func main() {
	cfg := config.Load()
	hold := config.LoadHoldConfig()
	nc := config.LoadNotifyConfig()

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, hold, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()
	if err := seedAdmin(ctx, cfg, st.users); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; cache, rate limit and redis locks disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	notifier, closeNotifier := newNotifier(nc, logger)
	defer closeNotifier()

	fin := service.NewFinalizer(st.bookings, st.pools, st.accounts, notifier, service.FinalizerOptions{
		TransactionStatus: hold.TransactionStatus,
		MaxTries:          hold.FinalizeMaxTries,
		NotifyTimeout:     nc.Timeout,
	}, logger)
	rs := service.NewReservationService(service.Deps{
		Pools:        st.pools,
		Seats:        st.seats,
		Reservations: st.reservations,
		Accounts:     st.accounts,
		Bookings:     st.bookings,
		Locks:        newLocker(hold, rdb, logger),
	}, fin, service.Options{HoldTTL: hold.TTL}, logger)

	reaper := worker.NewReaper(rs, worker.ReaperConfig{
		Interval:  hold.ReaperInterval,
		BatchSize: hold.ReaperBatchSize,
	}, logger)
	if err := reaper.Start(ctx); err != nil {
		logger.Fatal("start reaper", zap.Error(err))
	}

	if nc.Driver == config.NotifyAMQP && nc.ConsumerEnabled {
		consumer := queue.NewConsumer(nc.AMQPURL, mailSink(nc, logger), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, st.users, hold.InitialBalanceCents, logger),
		Pools:        handler.NewPoolHandler(rs, service.NewPoolService(st.admin), logger),
		Reservations: handler.NewReservationHandler(rs, logger),
	}, router.Middleware{
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	}, cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", hold.StoreDriver), zap.String("locks", hold.LockBackend),
			zap.String("notify", nc.Driver), zap.Duration("hold_ttl", hold.TTL))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	reaper.Stop()
	fin.Wait()
}

func newLocker(hold config.HoldConfig, rdb *redis.Client, log *zap.Logger) lock.Locker {
	if hold.LockBackend == config.LockRedis && rdb != nil {
		// Keys outlive the hold so a slow reaper still finds them.
		return lock.NewRedisTable(rdb, hold.LockPrefix, hold.TTL+2*hold.ReaperInterval, log)
	}
	if hold.LockBackend == config.LockRedis {
		log.Warn("LOCK_BACKEND=redis but redis is unavailable; using in-process locks")
	}
	return lock.NewTable()
}

// newNotifier picks the notifier the finalizer hands booking messages to.
func newNotifier(nc config.NotifyConfig, log *zap.Logger) (notify.Notifier, func()) {
	switch nc.Driver {
	case config.NotifyAMQP:
		p := queue.NewPublisher(nc.AMQPURL, log)
		return p, func() { _ = p.Close() }
	case config.NotifySMTP:
		return mailSink(nc, log), func() {}
	}
	return notify.NewLogNotifier(log), func() {}
}

func mailSink(nc config.NotifyConfig, log *zap.Logger) notify.Notifier {
	if !nc.SMTP.Configured() {
		log.Warn("smtp not configured; booking emails are only logged")
		return notify.NewLogNotifier(log)
	}
	return notify.NewMailer(nc.SMTP, log)
}
