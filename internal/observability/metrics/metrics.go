package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
)

const namespace = "rehab"

// BookingMetrics exposes counters/histograms for the booking flow. It
// implements booking.Observer.
type BookingMetrics struct {
	transitions       *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	submissionLatency *prometheus.HistogramVec
	sessions          *prometheus.CounterVec
}

// NewBookingMetrics registers the booking collectors on reg.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Step transitions in the booking flow",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "rejections_total",
			Help:      "Booking operations rejected by a step guard",
		}, []string{"operation"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Submit calls by outcome",
		}, []string{"status"}),
		submissionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of submission gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "sessions_total",
			Help:      "Booking session lifecycle events",
		}, []string{"event"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.rejections, m.submissions, m.submissionLatency, m.sessions)
	return m
}

func (m *BookingMetrics) ObserveTransition(from, to booking.Step) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *BookingMetrics) ObserveRejection(operation string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation).Inc()
}

// ObserveSubmission counts every Submit call; latency is only recorded when
// the gateway was actually called.
func (m *BookingMetrics) ObserveSubmission(status booking.SubmitStatus, latency time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
	if status != booking.SubmitIgnored {
		m.submissionLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
	}
}

// ObserveSession records a session lifecycle event (created, deleted).
func (m *BookingMetrics) ObserveSession(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}
