package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/agendaplus/scheduling-backend/internal/adapters/database"
	"github.com/agendaplus/scheduling-backend/internal/adapters/lock"
	"github.com/agendaplus/scheduling-backend/internal/application/services"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/redis"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/notifications"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/observability"
	"github.com/agendaplus/scheduling-backend/pkg/config"
)

func main() {
	_ = godotenv.Load()

	observability.InitLogger("scheduling-worker", os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Dur("interval", cfg.Worker.Interval).
		Int("horizon_weeks", cfg.Scheduling.HorizonWeeks).
		Msg("maintenance worker starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	professionals := database.NewProfessionalAdapter(pgClient)
	patients := database.NewPatientAdapter(pgClient)
	appointments := database.NewAppointmentAdapter(pgClient)
	locker := lock.NewRedisLocker(redisClient, cfg.Scheduling.LockTTL)
	notifier := notifications.NewOutboxDispatcher(pgClient)

	agenda := services.NewAgendaService(professionals, cfg.Scheduling.SlotSize)
	maintenance := services.NewMaintenanceService(
		professionals, patients, appointments, agenda, locker, notifier,
		*observability.GetLogger(),
		cfg.Scheduling.Horizon(), cfg.Scheduling.LoyaltyWindowDays,
		nil,
	)

	runOnce(rootCtx, maintenance, cfg.Worker.RunTimeout)

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping maintenance worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, maintenance, cfg.Worker.RunTimeout)
		}
	}
}

func runOnce(ctx context.Context, maintenance *services.MaintenanceService, timeout time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := observability.LoggerFromContext(runCtx)
	start := time.Now()
	if err := maintenance.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("maintenance run failed")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("maintenance run complete")
}
