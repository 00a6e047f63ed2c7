package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/internal/consultations"
	"github.com/clinicsuite/hospital-portal/internal/labs"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
)

// AppointmentSource supplies the ledger rows a report aggregates.
type AppointmentSource interface {
	ListRange(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]scheduling.Appointment, error)
}

// ConsultationSource supplies consultation rows and counts.
type ConsultationSource interface {
	CountInRange(ctx context.Context, from, to time.Time) (int, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]consultations.Consultation, error)
}

// PatientSource supplies the patient register.
type PatientSource interface {
	CountRegisteredSince(ctx context.Context, cutoff time.Time) (int, error)
	ListAll(ctx context.Context) ([]patients.Patient, error)
}

// LabSource supplies lab order tallies.
type LabSource interface {
	CountByStatusInRange(ctx context.Context, from, to time.Time) (map[labs.Status]int, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]labs.LabOrder, error)
	TopPanelsInRange(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// AppointmentReport summarizes ledger activity over a date range.
type AppointmentReport struct {
	From        time.Time                 `json:"from"`
	To          time.Time                 `json:"to"`
	Total       int                       `json:"total"`
	ByStatus    map[scheduling.Status]int `json:"by_status"`
	ByHour      map[int]int               `json:"by_hour"`
	ByPhysician map[uuid.UUID]int         `json:"by_physician"`
	NoShowRate  float64                   `json:"no_show_rate"`
}

// ActivityReport is the portal-wide rollup for a date range.
type ActivityReport struct {
	Appointments  AppointmentReport   `json:"appointments"`
	Consultations int                 `json:"consultations"`
	NewPatients   int                 `json:"new_patients"`
	LabOrders     map[labs.Status]int `json:"lab_orders"`
}

// NamedCount is one row of a top-N tally.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ConsultationReport summarizes consultation activity over a date range.
type ConsultationReport struct {
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Total        int               `json:"total"`
	ByPhysician  map[uuid.UUID]int `json:"by_physician"`
	ByDay        map[string]int    `json:"by_day"`
	TopDiagnoses []NamedCount      `json:"top_diagnoses"`
}

// DemographicsReport describes the active patient register.
type DemographicsReport struct {
	TotalActive int            `json:"total_active"`
	BySex       map[string]int `json:"by_sex"`
	ByAgeGroup  map[string]int `json:"by_age_group"`
	NewPerMonth map[string]int `json:"new_per_month"`
}

// LabReport summarizes lab order activity over a date range.
type LabReport struct {
	From           time.Time             `json:"from"`
	To             time.Time             `json:"to"`
	Total          int                   `json:"total"`
	ByPriority     map[labs.Priority]int `json:"by_priority"`
	ByStatus       map[labs.Status]int   `json:"by_status"`
	CompletionRate float64               `json:"completion_rate"`
	TopPanels      []NamedCount          `json:"top_panels"`
}

// NoShowRate returns noShow/total as a percentage rounded to two decimals.
// A zero total reports 0, not NaN.
func NoShowRate(noShow, total int) float64 {
	return percentage(noShow, total)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}

// topN converts a tally map to its N largest entries, largest first, ties
// broken by name so the order is stable.
func topN(tally map[string]int, n int) []NamedCount {
	out := make([]NamedCount, 0, len(tally))
	for name, count := range tally {
		out = append(out, NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func ageGroup(age int) string {
	switch {
	case age < 18:
		return "0-17"
	case age < 35:
		return "18-34"
	case age < 50:
		return "35-49"
	case age < 65:
		return "50-64"
	default:
		return "65+"
	}
}

// Summarize folds appointments into an AppointmentReport.
func Summarize(from, to time.Time, appts []scheduling.Appointment) AppointmentReport {
	r := AppointmentReport{
		From:        from,
		To:          to,
		Total:       len(appts),
		ByStatus:    map[scheduling.Status]int{},
		ByHour:      map[int]int{},
		ByPhysician: map[uuid.UUID]int{},
	}
	for _, a := range appts {
		r.ByStatus[a.Status]++
		r.ByHour[a.StartsAt.UTC().Hour()]++
		r.ByPhysician[a.PhysicianID]++
	}
	r.NoShowRate = NoShowRate(r.ByStatus[scheduling.StatusNoShow], r.Total)
	return r
}

// Service builds reports from the portal's stores.
type Service struct {
	appts    AppointmentSource
	consults ConsultationSource
	patients PatientSource
	labs     LabSource
}

func NewService(appts AppointmentSource, consults ConsultationSource, patients PatientSource, labSource LabSource) *Service {
	return &Service{appts: appts, consults: consults, patients: patients, labs: labSource}
}

// Appointments reports ledger activity within [from, to), optionally for one
// physician.
func (s *Service) Appointments(ctx context.Context, from, to time.Time, physicianID uuid.UUID) (*AppointmentReport, error) {
	appts, err := s.appts.ListRange(ctx, from, to, physicianID)
	if err != nil {
		return nil, fmt.Errorf("reports: load appointments: %w", err)
	}
	r := Summarize(from, to, appts)
	return &r, nil
}

// Activity builds the portal-wide rollup for [from, to).
func (s *Service) Activity(ctx context.Context, from, to time.Time) (*ActivityReport, error) {
	apptReport, err := s.Appointments(ctx, from, to, uuid.Nil)
	if err != nil {
		return nil, err
	}
	consults, err := s.consults.CountInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: count consultations: %w", err)
	}
	newPatients, err := s.patients.CountRegisteredSince(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("reports: count patients: %w", err)
	}
	labCounts, err := s.labs.CountByStatusInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: count lab orders: %w", err)
	}
	return &ActivityReport{
		Appointments:  *apptReport,
		Consultations: consults,
		NewPatients:   newPatients,
		LabOrders:     labCounts,
	}, nil
}

// Consultations reports encounter activity within [from, to).
func (s *Service) Consultations(ctx context.Context, from, to time.Time) (*ConsultationReport, error) {
	rows, err := s.consults.ListInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: load consultations: %w", err)
	}
	r := ConsultationReport{
		From:        from,
		To:          to,
		Total:       len(rows),
		ByPhysician: map[uuid.UUID]int{},
		ByDay:       map[string]int{},
	}
	diagnoses := map[string]int{}
	for _, c := range rows {
		r.ByPhysician[c.PhysicianID]++
		r.ByDay[c.CreatedAt.UTC().Format("2006-01-02")]++
		if c.Diagnosis != "" {
			diagnoses[c.Diagnosis]++
		}
	}
	r.TopDiagnoses = topN(diagnoses, 5)
	return &r, nil
}

// Demographics describes the active patient register as of now.
func (s *Service) Demographics(ctx context.Context, now time.Time) (*DemographicsReport, error) {
	all, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reports: load patients: %w", err)
	}
	r := DemographicsReport{
		BySex:       map[string]int{},
		ByAgeGroup:  map[string]int{},
		NewPerMonth: map[string]int{},
	}
	for i := range all {
		p := &all[i]
		if !p.Active {
			continue
		}
		r.TotalActive++
		sex := p.Sex
		if sex == "" {
			sex = "unspecified"
		}
		r.BySex[sex]++
		r.ByAgeGroup[ageGroup(p.Age(now))]++
		r.NewPerMonth[p.CreatedAt.UTC().Format("2006-01")]++
	}
	return &r, nil
}

// Labs reports order activity within [from, to).
func (s *Service) Labs(ctx context.Context, from, to time.Time) (*LabReport, error) {
	orders, err := s.labs.ListInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: load lab orders: %w", err)
	}
	panels, err := s.labs.TopPanelsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: load panel tallies: %w", err)
	}
	r := LabReport{
		From:       from,
		To:         to,
		Total:      len(orders),
		ByPriority: map[labs.Priority]int{},
		ByStatus:   map[labs.Status]int{},
	}
	for _, o := range orders {
		r.ByPriority[o.Priority]++
		r.ByStatus[o.Status]++
	}
	r.CompletionRate = percentage(r.ByStatus[labs.StatusCompleted], r.Total)
	r.TopPanels = topN(panels, 5)
	return &r, nil
}
