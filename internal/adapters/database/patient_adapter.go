package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

var patientColumns = []interface{}{
	"id", "user_id", "name", "used_codes", "status",
	"registered_at", "created_at", "updated_at",
}

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new patient
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	usedCodes, err := json.Marshal(patient.UsedCodes)
	if err != nil {
		return apperrors.NewInternalError("failed to encode used codes", err)
	}

	record := goqu.Record{
		"id":            patient.ID,
		"user_id":       patient.UserID,
		"name":          patient.Name,
		"used_codes":    usedCodes,
		"status":        patient.Status,
		"registered_at": patient.RegisteredAt,
		"created_at":    patient.CreatedAt,
		"updated_at":    patient.UpdatedAt,
	}

	query, args, err := a.db.Insert("patients").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create patient", err)
	}

	return nil
}

// Update replaces a patient
func (a *PatientAdapter) Update(ctx context.Context, patient *entities.Patient) error {
	usedCodes, err := json.Marshal(patient.UsedCodes)
	if err != nil {
		return apperrors.NewInternalError("failed to encode used codes", err)
	}

	record := goqu.Record{
		"name":       patient.Name,
		"used_codes": usedCodes,
		"status":     patient.Status,
		"updated_at": patient.UpdatedAt,
	}

	query, args, err := a.db.Update("patients").
		Set(record).
		Where(goqu.Ex{"id": patient.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update patient", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", patient.ID))
	}

	return nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	return a.getBy(ctx, goqu.Ex{"id": id}, fmt.Sprintf("patient with id %s not found", id))
}

// GetByUserID retrieves a patient by the owning user id
func (a *PatientAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Patient, error) {
	return a.getBy(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("patient for user %s not found", userID))
}

// ListAll retrieves every patient
func (a *PatientAdapter) ListAll(ctx context.Context) ([]*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}

	return patients, nil
}

func (a *PatientAdapter) getBy(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	patient := &entities.Patient{}
	var usedCodes []byte

	err := row.Scan(
		&patient.ID,
		&patient.UserID,
		&patient.Name,
		&usedCodes,
		&patient.Status,
		&patient.RegisteredAt,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(usedCodes) > 0 {
		if err := json.Unmarshal(usedCodes, &patient.UsedCodes); err != nil {
			return nil, err
		}
	}

	return patient, nil
}
