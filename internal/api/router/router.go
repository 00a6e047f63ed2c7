package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicsuite/hospital-portal/internal/backup"
	"github.com/clinicsuite/hospital-portal/internal/consultations"
	httpmiddleware "github.com/clinicsuite/hospital-portal/internal/http/middleware"
	"github.com/clinicsuite/hospital-portal/internal/labs"
	"github.com/clinicsuite/hospital-portal/internal/mobile"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/reports"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/internal/users"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	JWTSecret string

	UsersHandler         *users.Handler
	PatientsHandler      *patients.Handler
	SchedulingHandler    *scheduling.Handler
	ConsultationsHandler *consultations.Handler
	LabsHandler          *labs.Handler
	ReportsHandler       *reports.Handler
	BackupHandler        *backup.Handler
	MobileHandler        *mobile.Handler

	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.UsersHandler != nil {
		r.Post("/auth/login", cfg.UsersHandler.Login)
	}

	r.Route("/api", func(api chi.Router) {
		// Mobile surface, own login plus physician-only routes
		if cfg.MobileHandler != nil {
			api.Route("/mobile", func(m chi.Router) {
				m.Post("/login", cfg.MobileHandler.Login)
				m.Group(func(m chi.Router) {
					m.Use(httpmiddleware.Auth(cfg.JWTSecret))
					m.Use(httpmiddleware.RequireRoles(users.RolePhysician))
					m.Get("/agenda", cfg.MobileHandler.Agenda)
					m.Get("/patients/{patientID}", cfg.MobileHandler.PatientSummary)
					m.Post("/consultations", cfg.MobileHandler.NewConsultation)
				})
			})
		}

		// Staff API, bearer token required
		api.Group(func(staff chi.Router) {
			staff.Use(httpmiddleware.Auth(cfg.JWTSecret))

			if cfg.UsersHandler != nil {
				staff.Route("/users", func(r chi.Router) {
					r.Use(httpmiddleware.RequireRoles(users.RoleAdmin))
					r.Post("/", cfg.UsersHandler.Create)
					r.Get("/", cfg.UsersHandler.List)
					r.Put("/{userID}", cfg.UsersHandler.Update)
					r.Delete("/{userID}", cfg.UsersHandler.Deactivate)
				})
			}

			if cfg.PatientsHandler != nil {
				staff.Route("/patients", func(r chi.Router) {
					r.Post("/", cfg.PatientsHandler.Create)
					r.Get("/", cfg.PatientsHandler.Search)
					r.Get("/{patientID}", cfg.PatientsHandler.Get)
					r.Put("/{patientID}", cfg.PatientsHandler.Update)
					r.With(httpmiddleware.RequireRoles(users.RoleAdmin)).
						Delete("/{patientID}", cfg.PatientsHandler.Deactivate)
					if cfg.ConsultationsHandler != nil {
						r.Get("/{patientID}/consultations", cfg.ConsultationsHandler.History)
					}
					if cfg.LabsHandler != nil {
						r.Get("/{patientID}/lab-orders", cfg.LabsHandler.ByPatient)
					}
				})
			}

			if cfg.SchedulingHandler != nil {
				staff.Route("/templates", func(r chi.Router) {
					r.Use(httpmiddleware.RequireRoles(users.RoleAdmin))
					r.Post("/", cfg.SchedulingHandler.CreateTemplate)
					r.Get("/", cfg.SchedulingHandler.ListTemplates)
					r.Put("/{templateID}", cfg.SchedulingHandler.UpdateTemplate)
				})
				staff.Get("/physicians/{physicianID}/availability", cfg.SchedulingHandler.Availability)
				staff.Get("/physicians/{physicianID}/appointments", cfg.SchedulingHandler.DaySchedule)
				staff.Route("/appointments", func(r chi.Router) {
					r.Post("/", cfg.SchedulingHandler.Book)
					r.Get("/calendar", cfg.SchedulingHandler.Calendar)
					r.Get("/{appointmentID}", cfg.SchedulingHandler.Get)
					r.Post("/{appointmentID}/confirm", cfg.SchedulingHandler.Confirm)
					r.Post("/{appointmentID}/start", cfg.SchedulingHandler.Start)
					r.Post("/{appointmentID}/complete", cfg.SchedulingHandler.Complete)
					r.Post("/{appointmentID}/no-show", cfg.SchedulingHandler.MarkNoShow)
					r.Post("/{appointmentID}/cancel", cfg.SchedulingHandler.Cancel)
				})
			}

			if cfg.ConsultationsHandler != nil {
				staff.Route("/consultations", func(r chi.Router) {
					r.With(httpmiddleware.RequireRoles(users.RoleAdmin, users.RolePhysician)).
						Post("/", cfg.ConsultationsHandler.Create)
					r.Get("/{consultationID}", cfg.ConsultationsHandler.Get)
				})
			}

			if cfg.LabsHandler != nil {
				staff.Route("/lab-orders", func(r chi.Router) {
					r.With(httpmiddleware.RequireRoles(users.RoleAdmin, users.RolePhysician)).
						Post("/", cfg.LabsHandler.Create)
					r.Get("/queue", cfg.LabsHandler.Queue)
					r.Get("/{orderID}", cfg.LabsHandler.Get)
					r.Group(func(lab chi.Router) {
						lab.Use(httpmiddleware.RequireRoles(users.RoleAdmin, users.RoleLab))
						lab.Post("/{orderID}/start", cfg.LabsHandler.StartProcessing)
						lab.Post("/{orderID}/results", cfg.LabsHandler.RecordResults)
						lab.Post("/{orderID}/cancel", cfg.LabsHandler.Cancel)
					})
				})
			}

			if cfg.ReportsHandler != nil {
				staff.Route("/reports", func(r chi.Router) {
					r.Use(httpmiddleware.RequireRoles(users.RoleAdmin))
					r.Get("/appointments", cfg.ReportsHandler.Appointments)
					r.Get("/activity", cfg.ReportsHandler.Activity)
					r.Get("/consultations", cfg.ReportsHandler.Consultations)
					r.Get("/demographics", cfg.ReportsHandler.Demographics)
					r.Get("/labs", cfg.ReportsHandler.Labs)
				})
			}

			if cfg.BackupHandler != nil {
				staff.Route("/backups", func(r chi.Router) {
					r.Use(httpmiddleware.RequireRoles(users.RoleAdmin))
					r.Post("/", cfg.BackupHandler.Run)
					r.Get("/", cfg.BackupHandler.List)
					r.Post("/prune", cfg.BackupHandler.Prune)
				})
			}
		})
	})

	return r
}
