package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicsuite/hospital-portal/internal/consultations"
	"github.com/clinicsuite/hospital-portal/internal/labs"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
)

func TestNoShowRate(t *testing.T) {
	assert.Equal(t, 0.0, NoShowRate(0, 0))
	assert.Equal(t, 0.0, NoShowRate(5, 0))
	assert.Equal(t, 50.0, NoShowRate(1, 2))
	assert.Equal(t, 33.33, NoShowRate(1, 3))
	assert.Equal(t, 66.67, NoShowRate(2, 3))
	assert.Equal(t, 100.0, NoShowRate(7, 7))
}

func apptAt(hour int, physician uuid.UUID, status scheduling.Status) scheduling.Appointment {
	return scheduling.Appointment{
		ID:          uuid.New(),
		PhysicianID: physician,
		StartsAt:    time.Date(2025, 3, 3, hour, 0, 0, 0, time.UTC),
		Status:      status,
	}
}

func TestSummarize(t *testing.T) {
	drA := uuid.New()
	drB := uuid.New()
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	appts := []scheduling.Appointment{
		apptAt(8, drA, scheduling.StatusCompleted),
		apptAt(8, drA, scheduling.StatusNoShow),
		apptAt(9, drA, scheduling.StatusCancelled),
		apptAt(10, drB, scheduling.StatusCompleted),
	}

	r := Summarize(from, to, appts)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.ByStatus[scheduling.StatusCompleted])
	assert.Equal(t, 1, r.ByStatus[scheduling.StatusNoShow])
	assert.Equal(t, 2, r.ByHour[8])
	assert.Equal(t, 1, r.ByHour[9])
	assert.Equal(t, 1, r.ByHour[10])
	assert.Equal(t, 3, r.ByPhysician[drA])
	assert.Equal(t, 1, r.ByPhysician[drB])
	assert.Equal(t, 25.0, r.NoShowRate)
}

func TestSummarizeEmpty(t *testing.T) {
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	r := Summarize(from, from.Add(24*time.Hour), nil)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 0.0, r.NoShowRate)
	assert.Empty(t, r.ByStatus)
}

type fakeApptSource struct {
	appts []scheduling.Appointment
}

func (f *fakeApptSource) ListRange(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]scheduling.Appointment, error) {
	return f.appts, nil
}

type fakeConsultSource struct {
	consults []consultations.Consultation
}

func (f *fakeConsultSource) CountInRange(ctx context.Context, from, to time.Time) (int, error) {
	return len(f.consults), nil
}

func (f *fakeConsultSource) ListInRange(ctx context.Context, from, to time.Time) ([]consultations.Consultation, error) {
	return f.consults, nil
}

type fakePatientSource struct {
	patients []patients.Patient
}

func (f *fakePatientSource) CountRegisteredSince(ctx context.Context, cutoff time.Time) (int, error) {
	return 3, nil
}

func (f *fakePatientSource) ListAll(ctx context.Context) ([]patients.Patient, error) {
	return f.patients, nil
}

type fakeLabSource struct {
	orders []labs.LabOrder
	panels map[string]int
}

func (f *fakeLabSource) CountByStatusInRange(ctx context.Context, from, to time.Time) (map[labs.Status]int, error) {
	return map[labs.Status]int{labs.StatusPending: 2, labs.StatusCompleted: 5}, nil
}

func (f *fakeLabSource) ListInRange(ctx context.Context, from, to time.Time) ([]labs.LabOrder, error) {
	return f.orders, nil
}

func (f *fakeLabSource) TopPanelsInRange(ctx context.Context, from, to time.Time) (map[string]int, error) {
	return f.panels, nil
}

func newFakeService(appts *fakeApptSource, consults *fakeConsultSource, pats *fakePatientSource, labSrc *fakeLabSource) *Service {
	if appts == nil {
		appts = &fakeApptSource{}
	}
	if consults == nil {
		consults = &fakeConsultSource{}
	}
	if pats == nil {
		pats = &fakePatientSource{}
	}
	if labSrc == nil {
		labSrc = &fakeLabSource{}
	}
	return NewService(appts, consults, pats, labSrc)
}

func TestActivityReport(t *testing.T) {
	appts := &fakeApptSource{appts: []scheduling.Appointment{
		apptAt(8, uuid.New(), scheduling.StatusCompleted),
		apptAt(9, uuid.New(), scheduling.StatusNoShow),
	}}
	consults := &fakeConsultSource{consults: make([]consultations.Consultation, 12)}
	svc := newFakeService(appts, consults, nil, nil)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Activity(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Appointments.Total)
	assert.Equal(t, 50.0, report.Appointments.NoShowRate)
	assert.Equal(t, 12, report.Consultations)
	assert.Equal(t, 3, report.NewPatients)
	assert.Equal(t, 5, report.LabOrders[labs.StatusCompleted])
}

func TestConsultationReport(t *testing.T) {
	drA := uuid.New()
	drB := uuid.New()
	day1 := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	consults := &fakeConsultSource{consults: []consultations.Consultation{
		{PhysicianID: drA, Diagnosis: "influenza", CreatedAt: day1},
		{PhysicianID: drA, Diagnosis: "influenza", CreatedAt: day1},
		{PhysicianID: drB, Diagnosis: "migraine", CreatedAt: day2},
	}}
	svc := newFakeService(nil, consults, nil, nil)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Consultations(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.ByPhysician[drA])
	assert.Equal(t, 1, report.ByPhysician[drB])
	assert.Equal(t, 2, report.ByDay["2025-03-03"])
	assert.Equal(t, 1, report.ByDay["2025-03-04"])
	require.Len(t, report.TopDiagnoses, 2)
	assert.Equal(t, NamedCount{Name: "influenza", Count: 2}, report.TopDiagnoses[0])
	assert.Equal(t, NamedCount{Name: "migraine", Count: 1}, report.TopDiagnoses[1])
}

func TestDemographicsReportSkipsInactive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pats := &fakePatientSource{patients: []patients.Patient{
		{Sex: "F", BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
			CreatedAt: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
		{Sex: "M", BirthDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
			CreatedAt: time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)},
		{Sex: "", BirthDate: time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
			CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Sex: "F", BirthDate: time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC), Active: false,
			CreatedAt: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newFakeService(nil, nil, pats, nil)

	report, err := svc.Demographics(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalActive)
	assert.Equal(t, 1, report.BySex["F"])
	assert.Equal(t, 1, report.BySex["M"])
	assert.Equal(t, 1, report.BySex["unspecified"])
	assert.Equal(t, 1, report.ByAgeGroup["0-17"])
	assert.Equal(t, 1, report.ByAgeGroup["35-49"])
	assert.Equal(t, 1, report.ByAgeGroup["65+"])
	assert.Equal(t, 2, report.NewPerMonth["2025-02"])
	assert.Equal(t, 1, report.NewPerMonth["2025-03"])
}

func TestLabReport(t *testing.T) {
	labSrc := &fakeLabSource{
		orders: []labs.LabOrder{
			{Priority: labs.PriorityStat, Status: labs.StatusCompleted},
			{Priority: labs.PriorityRoutine, Status: labs.StatusCompleted},
			{Priority: labs.PriorityRoutine, Status: labs.StatusPending},
		},
		panels: map[string]int{"hemoglobin": 4, "glucose": 2},
	}
	svc := newFakeService(nil, nil, nil, labSrc)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Labs(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.ByPriority[labs.PriorityRoutine])
	assert.Equal(t, 1, report.ByPriority[labs.PriorityStat])
	assert.Equal(t, 66.67, report.CompletionRate)
	require.Len(t, report.TopPanels, 2)
	assert.Equal(t, NamedCount{Name: "hemoglobin", Count: 4}, report.TopPanels[0])
}

func TestTopNTruncatesAndBreaksTies(t *testing.T) {
	got := topN(map[string]int{"a": 1, "b": 3, "c": 3, "d": 2}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, NamedCount{Name: "b", Count: 3}, got[0])
	assert.Equal(t, NamedCount{Name: "c", Count: 3}, got[1])
	assert.Equal(t, NamedCount{Name: "d", Count: 2}, got[2])
}
