package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

func TestFinalPrice(t *testing.T) {
	assert.InDelta(t, 85.0, entities.FinalPrice(100, 15), 1e-9)
	assert.InDelta(t, 100.0, entities.FinalPrice(100, 0), 1e-9)
	assert.InDelta(t, 0.0, entities.FinalPrice(100, 100), 1e-9)
}

func TestAppointment_TerminalStatesAreImmutable(t *testing.T) {
	now := time.Now().UTC()
	at := now.Add(24 * time.Hour)

	ap := &entities.Appointment{Status: entities.AppointmentStatusScheduled, ScheduledAt: &at, DurationMin: 30}
	require.NoError(t, ap.Cancel(now))
	assert.Equal(t, entities.AppointmentStatusCancelled, ap.Status)

	err := ap.Schedule(at, now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	err = ap.Finalize(entities.AppointmentStatusCompleted, now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	err = ap.Cancel(now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestAppointment_FinalizeTransitions(t *testing.T) {
	now := time.Now().UTC()
	at := now.Add(-time.Hour)

	ap := &entities.Appointment{Status: entities.AppointmentStatusScheduled, ScheduledAt: &at, DurationMin: 30}
	require.NoError(t, ap.Finalize(entities.AppointmentStatusNoShow, now))
	assert.Equal(t, entities.AppointmentStatusNoShow, ap.Status)

	ap = &entities.Appointment{Status: entities.AppointmentStatusScheduled, ScheduledAt: &at, DurationMin: 30}
	err := ap.Finalize(entities.AppointmentStatusCancelled, now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestAppointment_ScheduleCredit(t *testing.T) {
	now := time.Now().UTC()
	at := now.Add(48 * time.Hour)

	credit := &entities.Appointment{Status: entities.AppointmentStatusPending}
	assert.True(t, credit.IsCredit())

	require.NoError(t, credit.Schedule(at, now))
	assert.Equal(t, entities.AppointmentStatusScheduled, credit.Status)
	require.NotNil(t, credit.ScheduledAt)
	assert.Equal(t, at, *credit.ScheduledAt)
	assert.False(t, credit.IsCredit())
}

func TestAppointment_OverlapsWith(t *testing.T) {
	start := mondayAt(10, 0)
	ap := &entities.Appointment{
		Status:      entities.AppointmentStatusScheduled,
		ScheduledAt: &start,
		DurationMin: 60,
	}

	assert.True(t, ap.OverlapsWith(mondayAt(10, 30), 60*time.Minute))
	assert.False(t, ap.OverlapsWith(mondayAt(11, 0), 60*time.Minute))
	assert.False(t, ap.OverlapsWith(mondayAt(9, 0), 60*time.Minute))

	ap.Status = entities.AppointmentStatusCancelled
	assert.False(t, ap.OverlapsWith(mondayAt(10, 30), 60*time.Minute))
}

func TestPatient_CodeRedemption(t *testing.T) {
	p := &entities.Patient{UsedCodes: []string{"welcome10"}}
	assert.True(t, p.HasUsedCode("  WELCOME10 "))
	assert.False(t, p.HasUsedCode("other"))

	p.RecordCodeUse("OTHER ")
	assert.True(t, p.HasUsedCode("other"))
	p.RecordCodeUse("other")
	assert.Len(t, p.UsedCodes, 2)
}

func TestWorkRule_Covers(t *testing.T) {
	rule := entities.WorkRule{Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00", LocationID: "loc-1"}

	assert.True(t, rule.Covers(mondayAt(10, 0), mondayAt(11, 0)))
	assert.True(t, rule.Covers(mondayAt(9, 0), mondayAt(12, 0)))
	assert.False(t, rule.Covers(mondayAt(11, 30), mondayAt(12, 30)))

	// wrong weekday
	tuesday := mondayAt(10, 0).AddDate(0, 0, 1)
	assert.False(t, rule.Covers(tuesday, tuesday.Add(time.Hour)))

	_, _, ok := rule.WindowOn(mondayAt(0, 0))
	assert.True(t, ok)
	_, _, ok = entities.WorkRule{Weekday: time.Monday, StartTime: "bad", EndTime: "12:00"}.WindowOn(mondayAt(0, 0))
	assert.False(t, ok)
}
