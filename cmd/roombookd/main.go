package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/config"
	httptransport "github.com/example/roombook/internal/http"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/notify"
	"github.com/example/roombook/internal/persistence/sqlite"
)

func main() {
	logger := logging.NewLogger(slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env for local development; the real environment wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(sqlite.DefaultConfig(cfg.SQLiteDSN))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	roomRepo := sqlite.NewRoomRepository(pool)
	reservationRepo := sqlite.NewReservationRepository(pool)
	blockingRepo := sqlite.NewBlockingRepository(pool)

	var notifier booking.Notifier
	if cfg.AMQPURL != "" {
		notifier = notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
	} else {
		notifier = notify.NewLogNotifier()
	}

	idGenerator := uuid.NewString
	now := time.Now
	guard := application.OwnerGuard{}

	bookingService := application.NewBookingService(roomRepo, reservationRepo, blockingRepo, guard, notifier, cfg.Settings, idGenerator, now)
	calendarService := application.NewCalendarService(roomRepo, reservationRepo, blockingRepo, guard, cfg.Settings, cfg.CacheTTL, now)
	roomService := application.NewRoomService(roomRepo, guard, idGenerator, now)
	blockingService := application.NewBlockingService(blockingRepo, roomRepo, guard, idGenerator, now)

	invalidate := calendarService.InvalidateCache
	router := httptransport.NewRouter(logger, httptransport.Handlers{
		Bookings:  httptransport.NewBookingHandler(bookingService, invalidate),
		Calendar:  httptransport.NewCalendarHandler(calendarService),
		Rooms:     httptransport.NewRoomHandler(roomService, invalidate),
		Blockings: httptransport.NewBlockingHandler(blockingService, invalidate),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
