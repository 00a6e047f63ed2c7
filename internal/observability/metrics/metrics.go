package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the appointment ledger.
type SchedulingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	cacheHitsTotal      *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Appointment state transitions by target state and outcome",
		}, []string{"to", "outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "availability_seconds",
			Help:      "Latency of availability computations",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.availabilityLatency, m.cacheHitsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHitsTotal.WithLabelValues(result).Inc()
}

// NotifyMetrics counts notification deliveries.
type NotifyMetrics struct {
	sentTotal *prometheus.CounterVec
}

func NewNotifyMetrics(reg prometheus.Registerer) *NotifyMetrics {
	m := &NotifyMetrics{
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notification sends by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sentTotal)
	return m
}

func (m *NotifyMetrics) ObserveSend(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sentTotal.WithLabelValues(kind, outcome).Inc()
}

// BackupMetrics tracks the backup job.
type BackupMetrics struct {
	runsTotal    *prometheus.CounterVec
	archiveBytes prometheus.Gauge
}

func NewBackupMetrics(reg prometheus.Registerer) *BackupMetrics {
	m := &BackupMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Backup runs by outcome",
		}, []string{"outcome"}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hospital",
			Subsystem: "backup",
			Name:      "last_archive_bytes",
			Help:      "Size of the most recent backup archive",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.archiveBytes)
	return m
}

func (m *BackupMetrics) ObserveRun(err error, archiveBytes int64) {
	if m == nil {
		return
	}
	if err != nil {
		m.runsTotal.WithLabelValues("error").Inc()
		return
	}
	m.runsTotal.WithLabelValues("ok").Inc()
	m.archiveBytes.Set(float64(archiveBytes))
}
