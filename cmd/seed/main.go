package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/agendaplus/scheduling-backend/internal/adapters/database"
	"github.com/agendaplus/scheduling-backend/internal/application/services"
	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/observability"
	"github.com/agendaplus/scheduling-backend/pkg/config"
)

var specialties = []string{
	"dermatology",
	"physiotherapy",
	"nutrition",
	"psychology",
	"dentistry",
	"general_practice",
}

func main() {
	_ = godotenv.Load()

	observability.InitLogger("scheduling-seed", os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	gofakeit.Seed(time.Now().UnixNano())
	ctx := context.Background()

	professionals := database.NewProfessionalAdapter(pgClient)
	patients := database.NewPatientAdapter(pgClient)
	promotions := database.NewPromotionAdapter(pgClient)
	agenda := services.NewAgendaService(professionals, cfg.Scheduling.SlotSize)

	if err := seedProfessionals(ctx, professionals, agenda, cfg.Scheduling.Horizon(), 20); err != nil {
		log.Fatal().Err(err).Msg("failed to seed professionals")
	}
	if err := seedPatients(ctx, patients, 200); err != nil {
		log.Fatal().Err(err).Msg("failed to seed patients")
	}
	if err := seedPromotions(ctx, promotions); err != nil {
		log.Fatal().Err(err).Msg("failed to seed promotions")
	}

	log.Info().Msg("seed complete")
}

func seedProfessionals(ctx context.Context, repo repositories.ProfessionalRepository, agenda *services.AgendaService, horizon time.Duration, count int) error {
	log.Info().Int("count", count).Msg("seeding professionals")
	now := time.Now().UTC()

	for i := 0; i < count; i++ {
		professional := &entities.Professional{
			ID:                 uuid.New().String(),
			UserID:             uuid.New().String(),
			Name:               gofakeit.Name(),
			SpecialtyArea:      specialties[gofakeit.Number(0, len(specialties)-1)],
			BasePrice:          float64(gofakeit.Number(50, 300)),
			DefaultDurationMin: 30 * gofakeit.Number(1, 3),
			Agenda:             entities.NewAgenda(),
			WorkRules:          randomWorkRules(),
			Status:             entities.ProfessionalStatusActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		agenda.GenerateDefaultAvailability(professional, now, now.Add(horizon))
		if err := repo.Create(ctx, professional); err != nil {
			return err
		}
	}
	return nil
}

func randomWorkRules() []entities.WorkRule {
	locationID := uuid.New().String()
	var rules []entities.WorkRule
	for day := time.Monday; day <= time.Friday; day++ {
		if gofakeit.Bool() && len(rules) > 0 {
			continue
		}
		startHour := gofakeit.Number(8, 10)
		endHour := startHour + gofakeit.Number(4, 8)
		rules = append(rules, entities.WorkRule{
			Weekday:    day,
			StartTime:  fmt.Sprintf("%02d:00", startHour),
			EndTime:    fmt.Sprintf("%02d:00", endHour),
			LocationID: locationID,
		})
	}
	return rules
}

func seedPatients(ctx context.Context, repo repositories.PatientRepository, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")
	now := time.Now().UTC()

	for i := 0; i < count; i++ {
		patient := &entities.Patient{
			ID:           uuid.New().String(),
			UserID:       uuid.New().String(),
			Name:         gofakeit.Name(),
			Status:       entities.PatientStatusActive,
			RegisteredAt: gofakeit.DateRange(now.AddDate(-2, 0, 0), now),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Create(ctx, patient); err != nil {
			return err
		}
	}
	return nil
}

func seedPromotions(ctx context.Context, repo repositories.PromotionRepository) error {
	log.Info().Msg("seeding promotions")
	now := time.Now().UTC()
	code := "welcome10"

	promos := []*entities.Promotion{
		{
			ID:              uuid.New().String(),
			Description:     "first double booking",
			DiscountPercent: 20,
			Kind:            entities.PromotionKindFirstDouble,
			Scope:           entities.PromotionScopeGlobal,
		},
		{
			ID:              uuid.New().String(),
			Description:     "loyal client",
			DiscountPercent: 10,
			Kind:            entities.PromotionKindLoyalClient,
			Scope:           entities.PromotionScopeGlobal,
			Cumulative:      true,
		},
		{
			ID:              uuid.New().String(),
			Description:     "five visit package",
			DiscountPercent: 25,
			Kind:            entities.PromotionKindPackage,
			Scope:           entities.PromotionScopeGlobal,
			MinQuantity:     5,
		},
		{
			ID:              uuid.New().String(),
			Description:     "seasonal campaign",
			DiscountPercent: 15,
			Kind:            entities.PromotionKindPeriod,
			Scope:           entities.PromotionScopeGlobal,
		},
		{
			ID:              uuid.New().String(),
			Description:     "welcome code",
			DiscountPercent: 10,
			Kind:            entities.PromotionKindCode,
			Scope:           entities.PromotionScopeGlobal,
			Code:            &code,
			Cumulative:      true,
		},
	}

	for _, promo := range promos {
		promo.StartsAt = now.AddDate(0, -1, 0)
		promo.EndsAt = now.AddDate(0, 2, 0)
		promo.Active = true
		promo.CreatedAt = now
		promo.UpdatedAt = now
		if err := repo.Create(ctx, promo); err != nil {
			return err
		}
	}
	return nil
}
