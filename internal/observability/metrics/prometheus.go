// Package metrics provides Prometheus metrics for the care scheduling engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	RemindersGenerated  prometheus.Counter
	RemindersDispatched prometheus.Counter
	MedicationsTaken    prometheus.Counter
	MedicationsSkipped  prometheus.Counter
	LowStockAlerts      prometheus.Counter
	PainEscalations     *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	ScanDuration        *prometheus.HistogramVec
	ScanFailures        *prometheus.CounterVec
	EventsPublished     prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		RemindersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_generated_total",
			Help: "Total reminder occurrences generated by recurrence expansion",
		}),
		RemindersDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Total due reminders pushed to users",
		}),
		MedicationsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_taken_total",
			Help: "Total recorded take actions",
		}),
		MedicationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_skipped_total",
			Help: "Total recorded skip actions",
		}),
		LowStockAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "low_stock_alerts_total",
			Help: "Total low stock signals raised",
		}),
		PainEscalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pain_escalations_total",
			Help: "Total pain episode escalations by stage",
		}, []string{"stage"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total push notifications sent",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total push notification send failures",
		}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scan_pass_duration_seconds",
			Help:    "Scheduler scan pass duration by poller",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"poller"}),
		ScanFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_pass_failures_total",
			Help: "Scheduler scan pass failures by poller",
		}, []string{"poller"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total domain events published to the broker",
		}),
	}

	prometheus.MustRegister(
		m.RemindersGenerated,
		m.RemindersDispatched,
		m.MedicationsTaken,
		m.MedicationsSkipped,
		m.LowStockAlerts,
		m.PainEscalations,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.ScanDuration,
		m.ScanFailures,
		m.EventsPublished,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
