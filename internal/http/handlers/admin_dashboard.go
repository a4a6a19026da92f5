package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/rehab-clinic-platform/internal/observability/metrics"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

// AdminDashboardHandler handles the clinic dashboard overview endpoint.
type AdminDashboardHandler struct {
	db       *sql.DB
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	now      func() time.Time
}

// NewAdminDashboardHandler creates a new admin dashboard handler. db may be
// nil when the service runs without Postgres; only the funnel is reported then.
func NewAdminDashboardHandler(db *sql.DB, gatherer prometheus.Gatherer, logger *logging.Logger) *AdminDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDashboardHandler{
		db:       db,
		gatherer: gatherer,
		logger:   logger,
		now:      time.Now,
	}
}

// DashboardOverviewResponse contains the main dashboard metrics.
type DashboardOverviewResponse struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Appointments AppointmentMetrics `json:"appointments"`
	Contacts     ContactMetrics     `json:"contacts"`
	Subscribers  int                `json:"subscribers"`
	AuditToday   int                `json:"audit_events_today"`
	Funnel       metrics.Funnel     `json:"funnel"`
}

// AppointmentMetrics contains appointment-related dashboard metrics.
type AppointmentMetrics struct {
	Total            int            `json:"total"`
	AwaitingConfirm  int            `json:"awaiting_confirmation"`
	Upcoming         int            `json:"upcoming"`
	NextSevenDays    int            `json:"next_seven_days"`
	CancelledCount   int            `json:"cancelled_count"`
	UpcomingByDoctor map[string]int `json:"upcoming_by_doctor"`
}

// ContactMetrics contains contact-form dashboard metrics.
type ContactMetrics struct {
	Total       int `json:"total"`
	NewThisWeek int `json:"new_this_week"`
}

// GetDashboardOverview returns the main dashboard overview.
// GET /admin/dashboard
func (h *AdminDashboardHandler) GetDashboardOverview(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	dashboard := DashboardOverviewResponse{
		GeneratedAt: now,
		Appointments: AppointmentMetrics{
			UpcomingByDoctor: map[string]int{},
		},
		Funnel: metrics.SnapshotFunnel(h.gatherer),
	}

	if h.db != nil {
		ctx := r.Context()
		weekAgo := now.AddDate(0, 0, -7)
		weekAhead := now.AddDate(0, 0, 7)
		today := now.Truncate(24 * time.Hour)

		// Appointment metrics
		h.count(ctx, &dashboard.Appointments.Total,
			`SELECT COUNT(*) FROM appointments`)
		h.count(ctx, &dashboard.Appointments.AwaitingConfirm,
			`SELECT COUNT(*) FROM appointments WHERE status = 'requested' AND scheduled_for > $1`, now)
		h.count(ctx, &dashboard.Appointments.Upcoming,
			`SELECT COUNT(*) FROM appointments WHERE status <> 'cancelled' AND scheduled_for > $1`, now)
		h.count(ctx, &dashboard.Appointments.NextSevenDays,
			`SELECT COUNT(*) FROM appointments WHERE status <> 'cancelled' AND scheduled_for > $1 AND scheduled_for <= $2`, now, weekAhead)
		h.count(ctx, &dashboard.Appointments.CancelledCount,
			`SELECT COUNT(*) FROM appointments WHERE status = 'cancelled'`)
		h.upcomingByDoctor(ctx, now, dashboard.Appointments.UpcomingByDoctor)

		// Contact and newsletter metrics
		h.count(ctx, &dashboard.Contacts.Total,
			`SELECT COUNT(*) FROM contact_messages`)
		h.count(ctx, &dashboard.Contacts.NewThisWeek,
			`SELECT COUNT(*) FROM contact_messages WHERE created_at >= $1`, weekAgo)
		h.count(ctx, &dashboard.Subscribers,
			`SELECT COUNT(*) FROM newsletter_subscriptions`)

		h.count(ctx, &dashboard.AuditToday,
			`SELECT COUNT(*) FROM audit_events WHERE created_at >= $1`, today)
	}

	writeJSON(w, http.StatusOK, dashboard)
}

func (h *AdminDashboardHandler) count(ctx context.Context, dst *int, query string, args ...any) {
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(dst); err != nil {
		h.logger.Warn("dashboard query failed", "query", query, "error", err)
	}
}

func (h *AdminDashboardHandler) upcomingByDoctor(ctx context.Context, now time.Time, into map[string]int) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT doctor, COUNT(*) FROM appointments
		 WHERE status <> 'cancelled' AND scheduled_for > $1
		 GROUP BY doctor ORDER BY doctor`, now)
	if err != nil {
		h.logger.Warn("dashboard per-doctor query failed", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var doctor string
		var n int
		if err := rows.Scan(&doctor, &n); err != nil {
			h.logger.Warn("dashboard per-doctor scan failed", "error", err)
			return
		}
		into[doctor] = n
	}
}
