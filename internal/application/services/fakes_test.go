package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

// In-memory fakes of the repository and provider ports. They mirror the real
// adapters' semantics where it matters: entities are stored as copies, and the
// professional store enforces the agenda version check.

type apptStore struct {
	mu      sync.Mutex
	items   map[string]*entities.Appointment
	creates int

	// failCreateAt fails the nth Create call (1-based); 0 disables
	failCreateAt int
	failUpdate   bool
	failDelete   bool
}

func newApptStore() *apptStore {
	return &apptStore{items: make(map[string]*entities.Appointment)}
}

func cloneAppt(ap *entities.Appointment) *entities.Appointment {
	cp := *ap
	if ap.ScheduledAt != nil {
		at := *ap.ScheduledAt
		cp.ScheduledAt = &at
	}
	cp.AppliedPromotionIDs = append([]string(nil), ap.AppliedPromotionIDs...)
	return &cp
}

func (s *apptStore) Create(ctx context.Context, ap *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.failCreateAt > 0 && s.creates == s.failCreateAt {
		return apperrors.NewInternalError("simulated create failure", nil)
	}
	s.items[ap.ID] = cloneAppt(ap)
	return nil
}

func (s *apptStore) Update(ctx context.Context, ap *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return apperrors.NewInternalError("simulated update failure", nil)
	}
	if _, ok := s.items[ap.ID]; !ok {
		return apperrors.NewNotFoundError("appointment not found")
	}
	s.items[ap.ID] = cloneAppt(ap)
	return nil
}

func (s *apptStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return apperrors.NewInternalError("simulated delete failure", nil)
	}
	delete(s.items, id)
	return nil
}

func (s *apptStore) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	return cloneAppt(ap), nil
}

func (s *apptStore) ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range s.items {
		if ap.PatientID == patientID {
			out = append(out, cloneAppt(ap))
		}
	}
	return out, nil
}

func (s *apptStore) ListByProfessional(ctx context.Context, professionalID string) ([]*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range s.items {
		if ap.ProfessionalID == professionalID {
			out = append(out, cloneAppt(ap))
		}
	}
	return out, nil
}

func (s *apptStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range s.items {
		if ap.ScheduledAt != nil && !ap.ScheduledAt.Before(from) && ap.ScheduledAt.Before(to) {
			out = append(out, cloneAppt(ap))
		}
	}
	return out, nil
}

func (s *apptStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type profStore struct {
	mu         sync.Mutex
	items      map[string]*entities.Professional
	failUpdate bool
}

func newProfStore() *profStore {
	return &profStore{items: make(map[string]*entities.Professional)}
}

func cloneProf(p *entities.Professional) *entities.Professional {
	cp := *p
	cp.WorkRules = append([]entities.WorkRule(nil), p.WorkRules...)
	cp.ActivatedPromotionIDs = append([]string(nil), p.ActivatedPromotionIDs...)
	if p.Agenda != nil {
		agenda := entities.NewAgenda()
		agenda.SetSlots(p.Agenda.AvailableSlots(), p.Agenda.BlockedSlots())
		agenda.Version = p.Agenda.Version
		cp.Agenda = agenda
	}
	return &cp
}

func (s *profStore) Create(ctx context.Context, p *entities.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = cloneProf(p)
	return nil
}

// Update mirrors the SQL adapter: the write only lands when the stored agenda
// version matches, and bumps the version on success.
func (s *profStore) Update(ctx context.Context, p *entities.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return apperrors.NewInternalError("simulated update failure", nil)
	}
	stored, ok := s.items[p.ID]
	if !ok {
		return apperrors.NewNotFoundError("professional not found")
	}
	if stored.Agenda.Version != p.Agenda.Version {
		return apperrors.NewConflictError("professional was modified concurrently")
	}
	p.Agenda.Version++
	s.items[p.ID] = cloneProf(p)
	return nil
}

func (s *profStore) GetByID(ctx context.Context, id string) (*entities.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("professional not found")
	}
	return cloneProf(p), nil
}

func (s *profStore) GetByUserID(ctx context.Context, userID string) (*entities.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.items {
		if p.UserID == userID {
			return cloneProf(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError("professional not found")
}

func (s *profStore) ListAll(ctx context.Context) ([]*entities.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Professional
	for _, p := range s.items {
		out = append(out, cloneProf(p))
	}
	return out, nil
}

func (s *profStore) ListActive(ctx context.Context) ([]*entities.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Professional
	for _, p := range s.items {
		if p.IsBookable() {
			out = append(out, cloneProf(p))
		}
	}
	return out, nil
}

type patientStore struct {
	mu    sync.Mutex
	items map[string]*entities.Patient
}

func newPatientStore() *patientStore {
	return &patientStore{items: make(map[string]*entities.Patient)}
}

func clonePatient(p *entities.Patient) *entities.Patient {
	cp := *p
	cp.UsedCodes = append([]string(nil), p.UsedCodes...)
	return &cp
}

func (s *patientStore) Create(ctx context.Context, p *entities.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = clonePatient(p)
	return nil
}

func (s *patientStore) Update(ctx context.Context, p *entities.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return apperrors.NewNotFoundError("patient not found")
	}
	s.items[p.ID] = clonePatient(p)
	return nil
}

func (s *patientStore) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return clonePatient(p), nil
}

func (s *patientStore) GetByUserID(ctx context.Context, userID string) (*entities.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.items {
		if p.UserID == userID {
			return clonePatient(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError("patient not found")
}

func (s *patientStore) ListAll(ctx context.Context) ([]*entities.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Patient
	for _, p := range s.items {
		out = append(out, clonePatient(p))
	}
	return out, nil
}

type promoStore struct {
	mu    sync.Mutex
	items map[string]*entities.Promotion
}

func newPromoStore() *promoStore {
	return &promoStore{items: make(map[string]*entities.Promotion)}
}

func (s *promoStore) Create(ctx context.Context, p *entities.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *promoStore) Update(ctx context.Context, p *entities.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return apperrors.NewNotFoundError("promotion not found")
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *promoStore) GetByID(ctx context.Context, id string) (*entities.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("promotion not found")
	}
	cp := *p
	return &cp, nil
}

func (s *promoStore) ListAll(ctx context.Context, includeDeleted bool) ([]*entities.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Promotion
	for _, p := range s.items {
		if p.Deleted && !includeDeleted {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *promoStore) ListActive(ctx context.Context) ([]*entities.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Promotion
	for _, p := range s.items {
		if p.Active && !p.Deleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *promoStore) FindActiveByCode(ctx context.Context, code string) (*entities.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.items {
		if p.Active && !p.Deleted && p.MatchesCode(code) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("promotion not found")
}

func (s *promoStore) ListActiveByKind(ctx context.Context, kind entities.PromotionKind) ([]*entities.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Promotion
	for _, p := range s.items {
		if p.Active && !p.Deleted && p.Kind == kind {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeLocker serializes callers per professional id with an in-process mutex
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) WithProfessionalLock(ctx context.Context, professionalID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	lock, ok := l.locks[professionalID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[professionalID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// recordingNotifier captures dispatched notifications
type recordingNotifier struct {
	mu        sync.Mutex
	inactive  []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) PatientMarkedInactive(ctx context.Context, patient *entities.Patient) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inactive = append(n.inactive, patient.ID)
	return n.err
}

func (n *recordingNotifier) AppointmentCancelled(ctx context.Context, ap *entities.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, ap.ID)
	return n.err
}
