package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

var professionalColumns = []interface{}{
	"id", "user_id", "name", "specialty_area", "base_price",
	"default_duration_min", "work_rules", "activated_promotion_ids",
	"available_slots", "blocked_slots", "agenda_version",
	"status", "deleted", "created_at", "updated_at",
}

// ProfessionalAdapter implements the ProfessionalRepository interface.
// The agenda slot sets and work rules live as jsonb columns on the
// professional row; agenda_version backs the optimistic-concurrency check.
type ProfessionalAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProfessionalAdapter creates a new professional adapter
func NewProfessionalAdapter(client *postgres.Client) repositories.ProfessionalRepository {
	return &ProfessionalAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new professional
func (a *ProfessionalAdapter) Create(ctx context.Context, professional *entities.Professional) error {
	record, err := professionalRecord(professional)
	if err != nil {
		return err
	}
	record["id"] = professional.ID
	record["agenda_version"] = agendaVersion(professional)
	record["created_at"] = professional.CreatedAt

	query, args, err := a.db.Insert("professionals").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create professional", err)
	}

	return nil
}

// Update replaces the professional under the agenda version check: the write
// only lands when the stored version still equals the loaded one, and bumps
// it. Zero rows with an existing id means the version moved, a CONFLICT.
func (a *ProfessionalAdapter) Update(ctx context.Context, professional *entities.Professional) error {
	record, err := professionalRecord(professional)
	if err != nil {
		return err
	}
	loadedVersion := agendaVersion(professional)
	record["agenda_version"] = loadedVersion + 1

	query, args, err := a.db.Update("professionals").
		Set(record).
		Where(goqu.Ex{"id": professional.ID, "agenda_version": loadedVersion}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update professional", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		exists, err := a.exists(ctx, professional.ID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.NewNotFoundError(fmt.Sprintf("professional with id %s not found", professional.ID))
		}
		return apperrors.NewConflictError("professional was modified concurrently")
	}

	if professional.Agenda != nil {
		professional.Agenda.Version = loadedVersion + 1
	}
	return nil
}

// GetByID retrieves a professional by ID
func (a *ProfessionalAdapter) GetByID(ctx context.Context, id string) (*entities.Professional, error) {
	return a.getBy(ctx, goqu.Ex{"id": id}, fmt.Sprintf("professional with id %s not found", id))
}

// GetByUserID retrieves a professional by the owning user id
func (a *ProfessionalAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Professional, error) {
	return a.getBy(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("professional for user %s not found", userID))
}

// ListAll retrieves every professional, including soft-deleted ones
func (a *ProfessionalAdapter) ListAll(ctx context.Context) ([]*entities.Professional, error) {
	return a.list(ctx, nil)
}

// ListActive retrieves active, non-deleted professionals
func (a *ProfessionalAdapter) ListActive(ctx context.Context) ([]*entities.Professional, error) {
	return a.list(ctx, goqu.Ex{"status": entities.ProfessionalStatusActive, "deleted": false})
}

func (a *ProfessionalAdapter) getBy(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Professional, error) {
	query, args, err := a.db.Select(professionalColumns...).
		From("professionals").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	professional, err := scanProfessional(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get professional", err)
	}

	return professional, nil
}

func (a *ProfessionalAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.Professional, error) {
	ds := a.db.Select(professionalColumns...).From("professionals").Order(goqu.I("created_at").Asc())
	if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list professionals", err)
	}
	defer rows.Close()

	var professionals []*entities.Professional
	for rows.Next() {
		professional, err := scanProfessional(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan professional", err)
		}
		professionals = append(professionals, professional)
	}

	return professionals, nil
}

func (a *ProfessionalAdapter) exists(ctx context.Context, id string) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("professionals").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build exists query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check professional existence", err)
	}
	return count > 0, nil
}

func professionalRecord(professional *entities.Professional) (goqu.Record, error) {
	workRules, err := json.Marshal(professional.WorkRules)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode work rules", err)
	}
	promotionIDs, err := json.Marshal(professional.ActivatedPromotionIDs)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode promotion ids", err)
	}

	var available, blocked []time.Time
	if professional.Agenda != nil {
		available = professional.Agenda.AvailableSlots()
		blocked = professional.Agenda.BlockedSlots()
	}
	availableJSON, err := json.Marshal(available)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode available slots", err)
	}
	blockedJSON, err := json.Marshal(blocked)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode blocked slots", err)
	}

	return goqu.Record{
		"user_id":                 professional.UserID,
		"name":                    professional.Name,
		"specialty_area":          professional.SpecialtyArea,
		"base_price":              professional.BasePrice,
		"default_duration_min":    professional.DefaultDurationMin,
		"work_rules":              workRules,
		"activated_promotion_ids": promotionIDs,
		"available_slots":         availableJSON,
		"blocked_slots":           blockedJSON,
		"status":                  professional.Status,
		"deleted":                 professional.Deleted,
		"updated_at":              professional.UpdatedAt,
	}, nil
}

func agendaVersion(professional *entities.Professional) int64 {
	if professional.Agenda == nil {
		return 0
	}
	return professional.Agenda.Version
}

func scanProfessional(row rowScanner) (*entities.Professional, error) {
	professional := &entities.Professional{}
	var workRules, promotionIDs, availableJSON, blockedJSON []byte
	var version int64

	err := row.Scan(
		&professional.ID,
		&professional.UserID,
		&professional.Name,
		&professional.SpecialtyArea,
		&professional.BasePrice,
		&professional.DefaultDurationMin,
		&workRules,
		&promotionIDs,
		&availableJSON,
		&blockedJSON,
		&version,
		&professional.Status,
		&professional.Deleted,
		&professional.CreatedAt,
		&professional.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(workRules) > 0 {
		if err := json.Unmarshal(workRules, &professional.WorkRules); err != nil {
			return nil, err
		}
	}
	if len(promotionIDs) > 0 {
		if err := json.Unmarshal(promotionIDs, &professional.ActivatedPromotionIDs); err != nil {
			return nil, err
		}
	}

	var available, blocked []time.Time
	if len(availableJSON) > 0 {
		if err := json.Unmarshal(availableJSON, &available); err != nil {
			return nil, err
		}
	}
	if len(blockedJSON) > 0 {
		if err := json.Unmarshal(blockedJSON, &blocked); err != nil {
			return nil, err
		}
	}

	agenda := entities.NewAgenda()
	agenda.SetSlots(available, blocked)
	agenda.Version = version
	professional.Agenda = agenda

	return professional, nil
}
