package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendaplus/scheduling-backend/internal/application/services"
	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

var resolverNow = time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)

type resolverFixture struct {
	resolver *services.PromotionResolver
	promos   *promoStore
	appts    *apptStore
	patient  *entities.Patient
	prof     *entities.Professional
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	promos := newPromoStore()
	appts := newApptStore()
	return &resolverFixture{
		resolver: services.NewPromotionResolver(promos, appts, 90, func() time.Time { return resolverNow }),
		promos:   promos,
		appts:    appts,
		patient:  &entities.Patient{ID: "pat-1", UserID: "user-pat", Status: entities.PatientStatusActive},
		prof: &entities.Professional{
			ID:     "prof-1",
			UserID: "user-prof",
			Status: entities.ProfessionalStatusActive,
		},
	}
}

// addPromo stores an active promotion valid one month around resolverNow,
// activates it on the professional, and returns it
func (f *resolverFixture) addPromo(t *testing.T, p entities.Promotion) *entities.Promotion {
	t.Helper()
	if p.StartsAt.IsZero() {
		p.StartsAt = resolverNow.AddDate(0, -1, 0)
	}
	if p.EndsAt.IsZero() {
		p.EndsAt = resolverNow.AddDate(0, 1, 0)
	}
	if p.Scope == "" {
		p.Scope = entities.PromotionScopeGlobal
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = resolverNow.AddDate(0, -2, 0)
	}
	p.Active = true
	require.NoError(t, f.promos.Create(context.Background(), &p))
	if p.Scope == entities.PromotionScopeGlobal {
		f.prof.ActivatePromotion(p.ID)
	}
	return &p
}

func (f *resolverFixture) input() services.PromotionInput {
	return services.PromotionInput{
		Patient:           f.patient,
		Professional:      f.prof,
		ScheduledAt:       resolverNow.AddDate(0, 0, 3),
		SimultaneousCount: 1,
	}
}

func (f *resolverFixture) addCompleted(t *testing.T, at time.Time) {
	t.Helper()
	scheduled := at
	require.NoError(t, f.appts.Create(context.Background(), &entities.Appointment{
		ID:             "appt-" + at.Format("20060102150405"),
		PatientID:      f.patient.ID,
		ProfessionalID: f.prof.ID,
		ScheduledAt:    &scheduled,
		Status:         entities.AppointmentStatusCompleted,
		DurationMin:    30,
	}))
}

func TestResolve_StackingCumulativeOverExclusives(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "excl-10", Kind: entities.PromotionKindPeriod, DiscountPercent: 10})
	f.addPromo(t, entities.Promotion{ID: "excl-15", Kind: entities.PromotionKindPeriod, DiscountPercent: 15})
	f.addPromo(t, entities.Promotion{ID: "cum-5", Kind: entities.PromotionKindPeriod, DiscountPercent: 5, Cumulative: true})

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.InDelta(t, 20.0, res.DiscountPercent, 1e-9)
	assert.ElementsMatch(t, []string{"excl-15", "cum-5"}, res.PromotionIDs)
}

func TestResolve_DiscountCappedAtHundred(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "cum-60", Kind: entities.PromotionKindPeriod, DiscountPercent: 60, Cumulative: true})
	f.addPromo(t, entities.Promotion{ID: "cum-70", Kind: entities.PromotionKindPeriod, DiscountPercent: 70, Cumulative: true})

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.DiscountPercent, 1e-9)
}

func TestResolve_TieBreakByCreationThenID(t *testing.T) {
	f := newResolverFixture(t)
	older := resolverNow.AddDate(0, -3, 0)
	newer := resolverNow.AddDate(0, -2, 0)
	f.addPromo(t, entities.Promotion{ID: "b-newer", Kind: entities.PromotionKindPeriod, DiscountPercent: 10, CreatedAt: newer})
	f.addPromo(t, entities.Promotion{ID: "a-older", Kind: entities.PromotionKindPeriod, DiscountPercent: 10, CreatedAt: older})

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-older"}, res.PromotionIDs)

	// equal creation instants fall back to lexicographic id
	f2 := newResolverFixture(t)
	f2.addPromo(t, entities.Promotion{ID: "z-promo", Kind: entities.PromotionKindPeriod, DiscountPercent: 10, CreatedAt: older})
	f2.addPromo(t, entities.Promotion{ID: "a-promo", Kind: entities.PromotionKindPeriod, DiscountPercent: 10, CreatedAt: older})

	res, err = f2.resolver.Resolve(context.Background(), f2.input())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-promo"}, res.PromotionIDs)
}

func TestResolve_GlobalRequiresActivation(t *testing.T) {
	f := newResolverFixture(t)
	promo := entities.Promotion{
		ID:              "global-10",
		Kind:            entities.PromotionKindPeriod,
		DiscountPercent: 10,
		Scope:           entities.PromotionScopeGlobal,
		StartsAt:        resolverNow.AddDate(0, -1, 0),
		EndsAt:          resolverNow.AddDate(0, 1, 0),
		CreatedAt:       resolverNow.AddDate(0, -2, 0),
		Active:          true,
	}
	require.NoError(t, f.promos.Create(context.Background(), &promo))

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)

	f.prof.ActivatePromotion("global-10")
	res, err = f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Equal(t, []string{"global-10"}, res.PromotionIDs)
}

func TestResolve_ProfessionalScopeTargetsOnlyThatProfessional(t *testing.T) {
	f := newResolverFixture(t)
	other := "prof-2"
	f.addPromo(t, entities.Promotion{
		ID: "other-prof", Kind: entities.PromotionKindPeriod, DiscountPercent: 10,
		Scope: entities.PromotionScopeProfessional, ApplicableProfessionalID: &other,
	})
	mine := f.prof.ID
	f.addPromo(t, entities.Promotion{
		ID: "my-prof", Kind: entities.PromotionKindPeriod, DiscountPercent: 15,
		Scope: entities.PromotionScopeProfessional, ApplicableProfessionalID: &mine,
	})

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Equal(t, []string{"my-prof"}, res.PromotionIDs)
}

func TestResolve_FirstDoubleRequiresEmptyHistoryAndTwoVisits(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "fd", Kind: entities.PromotionKindFirstDouble, DiscountPercent: 20})

	in := f.input()
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs, "single booking never qualifies")

	in.SimultaneousCount = 2
	res, err = f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"fd"}, res.PromotionIDs)

	// any prior non-cancelled appointment disqualifies
	f.addCompleted(t, resolverNow.AddDate(0, -1, 0))
	res, err = f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)
}

func TestResolve_CancelledHistoryDoesNotBlockFirstDouble(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "fd", Kind: entities.PromotionKindFirstDouble, DiscountPercent: 20})

	at := resolverNow.AddDate(0, -1, 0)
	require.NoError(t, f.appts.Create(context.Background(), &entities.Appointment{
		ID: "cancelled-1", PatientID: f.patient.ID, ProfessionalID: f.prof.ID,
		ScheduledAt: &at, Status: entities.AppointmentStatusCancelled, DurationMin: 30,
	}))

	in := f.input()
	in.SimultaneousCount = 2
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"fd"}, res.PromotionIDs)
}

func TestResolve_LoyalClientWindow(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "loyal", Kind: entities.PromotionKindLoyalClient, DiscountPercent: 10})

	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs, "no completed history")

	f.addCompleted(t, resolverNow.AddDate(0, 0, -30))
	res, err = f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Equal(t, []string{"loyal"}, res.PromotionIDs)

	// outside the trailing 90 days
	f2 := newResolverFixture(t)
	f2.addPromo(t, entities.Promotion{ID: "loyal", Kind: entities.PromotionKindLoyalClient, DiscountPercent: 10})
	f2.addCompleted(t, resolverNow.AddDate(0, 0, -120))
	res, err = f2.resolver.Resolve(context.Background(), f2.input())
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)
}

func TestResolve_PackageMinQuantity(t *testing.T) {
	f := newResolverFixture(t)
	f.addPromo(t, entities.Promotion{ID: "pkg", Kind: entities.PromotionKindPackage, DiscountPercent: 25, MinQuantity: 4})

	in := f.input()
	in.SimultaneousCount = 3
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)

	in.SimultaneousCount = 4
	res, err = f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg"}, res.PromotionIDs)
}

func TestResolve_CodeMatching(t *testing.T) {
	f := newResolverFixture(t)
	code := "SUMMER25"
	f.addPromo(t, entities.Promotion{ID: "code-promo", Kind: entities.PromotionKindCode, DiscountPercent: 25, Code: &code})

	// code promotions never apply without the code
	res, err := f.resolver.Resolve(context.Background(), f.input())
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)

	// matching is case-insensitive
	in := f.input()
	in.Code = "summer25"
	res, err = f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"code-promo"}, res.PromotionIDs)
	assert.Equal(t, "code-promo", res.CodePromotionID)

	// an already-used code is not redeemable again
	f.patient.RecordCodeUse("SUMMER25")
	res, err = f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.PromotionIDs)
	assert.Empty(t, res.CodePromotionID)
}

func TestResolve_ExclusiveCodeReplacesBestExclusive(t *testing.T) {
	f := newResolverFixture(t)
	code := "VIP5"
	f.addPromo(t, entities.Promotion{ID: "excl-30", Kind: entities.PromotionKindPeriod, DiscountPercent: 30})
	f.addPromo(t, entities.Promotion{ID: "cum-5", Kind: entities.PromotionKindPeriod, DiscountPercent: 5, Cumulative: true})
	f.addPromo(t, entities.Promotion{ID: "code-5", Kind: entities.PromotionKindCode, DiscountPercent: 5, Code: &code})

	in := f.input()
	in.Code = "vip5"
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"code-5", "cum-5"}, res.PromotionIDs)
	assert.InDelta(t, 10.0, res.DiscountPercent, 1e-9)
}

func TestResolve_CumulativeCodeStacks(t *testing.T) {
	f := newResolverFixture(t)
	code := "EXTRA10"
	f.addPromo(t, entities.Promotion{ID: "excl-30", Kind: entities.PromotionKindPeriod, DiscountPercent: 30})
	f.addPromo(t, entities.Promotion{ID: "code-10", Kind: entities.PromotionKindCode, DiscountPercent: 10, Code: &code, Cumulative: true})

	in := f.input()
	in.Code = "EXTRA10"
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"excl-30", "code-10"}, res.PromotionIDs)
	assert.InDelta(t, 40.0, res.DiscountPercent, 1e-9)
}

func TestResolve_ValidityAgainstAppointmentDate(t *testing.T) {
	f := newResolverFixture(t)

	// expires before the appointment but is valid now: the default checks now
	f.addPromo(t, entities.Promotion{
		ID: "now-valid", Kind: entities.PromotionKindPeriod, DiscountPercent: 10,
		StartsAt: resolverNow.AddDate(0, -1, 0), EndsAt: resolverNow.AddDate(0, 0, 1),
	})
	// same window but evaluated at the appointment instant
	f.addPromo(t, entities.Promotion{
		ID: "appt-checked", Kind: entities.PromotionKindPeriod, DiscountPercent: 15,
		StartsAt: resolverNow.AddDate(0, -1, 0), EndsAt: resolverNow.AddDate(0, 0, 1),
		CheckAgainstAppointmentDate: true,
	})

	in := f.input()
	in.ScheduledAt = resolverNow.AddDate(0, 0, 3)
	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"now-valid"}, res.PromotionIDs)
}
