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

var appointmentColumns = []interface{}{
	"id", "patient_id", "professional_id", "scheduled_at", "status",
	"base_price", "final_price", "discount_percent", "duration_min",
	"applied_promotion_ids", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new appointment
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	promotionIDs, err := json.Marshal(appointment.AppliedPromotionIDs)
	if err != nil {
		return apperrors.NewInternalError("failed to encode promotion ids", err)
	}

	record := goqu.Record{
		"id":                    appointment.ID,
		"patient_id":            appointment.PatientID,
		"professional_id":       appointment.ProfessionalID,
		"scheduled_at":          appointment.ScheduledAt,
		"status":                appointment.Status,
		"base_price":            appointment.BasePrice,
		"final_price":           appointment.FinalPrice,
		"discount_percent":      appointment.DiscountPercent,
		"duration_min":          appointment.DurationMin,
		"applied_promotion_ids": promotionIDs,
		"created_at":            appointment.CreatedAt,
		"updated_at":            appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert("appointments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// Update replaces an appointment
func (a *AppointmentAdapter) Update(ctx context.Context, appointment *entities.Appointment) error {
	promotionIDs, err := json.Marshal(appointment.AppliedPromotionIDs)
	if err != nil {
		return apperrors.NewInternalError("failed to encode promotion ids", err)
	}

	record := goqu.Record{
		"scheduled_at":          appointment.ScheduledAt,
		"status":                appointment.Status,
		"base_price":            appointment.BasePrice,
		"final_price":           appointment.FinalPrice,
		"discount_percent":      appointment.DiscountPercent,
		"duration_min":          appointment.DurationMin,
		"applied_promotion_ids": promotionIDs,
		"updated_at":            appointment.UpdatedAt,
	}

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": appointment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointment.ID))
	}

	return nil
}

// Delete removes an appointment row, used only by booking compensation
func (a *AppointmentAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// ListByPatient retrieves all appointments of a patient
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error) {
	return a.list(ctx, goqu.Ex{"patient_id": patientID})
}

// ListByProfessional retrieves all appointments of a professional
func (a *AppointmentAdapter) ListByProfessional(ctx context.Context, professionalID string) ([]*entities.Appointment, error) {
	return a.list(ctx, goqu.Ex{"professional_id": professionalID})
}

// ListByDateRange retrieves scheduled appointments inside [from, to)
func (a *AppointmentAdapter) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(
			goqu.C("scheduled_at").IsNotNull(),
			goqu.C("scheduled_at").Gte(from),
			goqu.C("scheduled_at").Lt(to),
		).
		Order(goqu.I("scheduled_at").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryAppointments(ctx, query, args)
}

func (a *AppointmentAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(where).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryAppointments(ctx, query, args)
}

func (a *AppointmentAdapter) queryAppointments(ctx context.Context, query string, args []interface{}) ([]*entities.Appointment, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var scheduledAt sql.NullTime
	var promotionIDs []byte

	err := row.Scan(
		&appointment.ID,
		&appointment.PatientID,
		&appointment.ProfessionalID,
		&scheduledAt,
		&appointment.Status,
		&appointment.BasePrice,
		&appointment.FinalPrice,
		&appointment.DiscountPercent,
		&appointment.DurationMin,
		&promotionIDs,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		at := scheduledAt.Time.UTC()
		appointment.ScheduledAt = &at
	}
	if len(promotionIDs) > 0 {
		if err := json.Unmarshal(promotionIDs, &appointment.AppliedPromotionIDs); err != nil {
			return nil, err
		}
	}

	return appointment, nil
}
