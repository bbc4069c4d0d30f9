package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/providers"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
)

// Notification kinds written to the outbox
const (
	KindPatientInactive      = "patient_marked_inactive"
	KindAppointmentCancelled = "appointment_cancelled"
)

// OutboxDispatcher implements the NotificationDispatcher port by writing
// notification rows to an outbox table. A separate delivery process drains the
// table; dispatch here never blocks on an external messaging provider.
type OutboxDispatcher struct {
	db *sqlx.DB
}

// NewOutboxDispatcher creates a new outbox-backed dispatcher
func NewOutboxDispatcher(client *postgres.Client) providers.NotificationDispatcher {
	return &OutboxDispatcher{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

type outboxRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	RecipientID string    `db:"recipient_id"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

// PatientMarkedInactive enqueues an inactivity notice for the patient
func (d *OutboxDispatcher) PatientMarkedInactive(ctx context.Context, patient *entities.Patient) error {
	payload, err := json.Marshal(map[string]string{
		"patient_id":   patient.ID,
		"patient_name": patient.Name,
	})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, KindPatientInactive, patient.ID, payload)
}

// AppointmentCancelled enqueues a cancellation notice for the appointment's patient
func (d *OutboxDispatcher) AppointmentCancelled(ctx context.Context, appointment *entities.Appointment) error {
	body := map[string]string{
		"appointment_id":  appointment.ID,
		"professional_id": appointment.ProfessionalID,
	}
	if appointment.ScheduledAt != nil {
		body["scheduled_at"] = appointment.ScheduledAt.Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, KindAppointmentCancelled, appointment.PatientID, payload)
}

func (d *OutboxDispatcher) enqueue(ctx context.Context, kind, recipientID string, payload []byte) error {
	row := outboxRow{
		ID:          uuid.New().String(),
		Kind:        kind,
		RecipientID: recipientID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO notification_outbox (id, kind, recipient_id, payload, created_at)
		VALUES (:id, :kind, :recipient_id, :payload, :created_at)`, row)
	return err
}
