package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
	"github.com/wolfman30/rehab-clinic-platform/internal/notify"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("rehab.internal.appointments")

// Notifier sends the emails that follow a new appointment request.
type Notifier interface {
	NotifyAppointmentRequested(ctx context.Context, n notify.AppointmentNotice) error
}

// Auditor records booking outcomes.
type Auditor interface {
	LogBookingSubmitted(ctx context.Context, appointmentID, email, department, doctor string, scheduledFor time.Time) error
	LogBookingFailed(ctx context.Context, email, doctor, reason string) error
}

// Service stores appointment requests. It is the in-process booking.Gateway.
type Service struct {
	repo     Repository
	catalog  *catalog.Catalog
	notifier Notifier
	auditor  Auditor
	logger   *logging.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sends the patient and clinic emails after each request.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithAuditor records submitted and failed bookings.
func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) { s.auditor = a }
}

// WithClock overrides the clock used to reject past appointment times.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs an appointments service.
func NewService(repo Repository, c *catalog.Catalog, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if c == nil {
		c = catalog.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, catalog: c, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ booking.Gateway = (*Service)(nil)

// Submit validates and stores a booking. Invalid payloads and taken slots are
// answered with Success=false; only storage failures return an error.
// Notification failures are logged and do not fail the booking.
func (s *Service) Submit(ctx context.Context, p booking.Payload) (booking.Result, error) {
	appt, err := s.Create(ctx, p)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return booking.Result{Success: false, Message: verr.Error()}, nil
		case errors.Is(err, ErrSlotTaken):
			return booking.Result{Success: false, Message: ErrSlotTaken.Error()}, nil
		}
		return booking.Result{}, err
	}
	return booking.Result{
		Success: true,
		Message: fmt.Sprintf("Appointment requested with %s. Reference %s.", appt.Doctor, appt.ID),
	}, nil
}

// Create validates p, stores the appointment and sends notifications.
func (s *Service) Create(ctx context.Context, p booking.Payload) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("rehab.department", p.Department),
		attribute.String("rehab.doctor", p.Doctor),
	)

	appt, err := fromPayload(p, s.catalog, s.now())
	if err != nil {
		span.SetStatus(codes.Error, "invalid payload")
		s.auditFailure(ctx, p, err.Error())
		return nil, err
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.auditFailure(ctx, p, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("rehab.appointment_id", appt.ID))
	s.logger.Info("appointment requested", "appointment_id", appt.ID, "doctor", appt.Doctor, "scheduled_for", appt.ScheduledFor)

	if s.auditor != nil {
		if err := s.auditor.LogBookingSubmitted(ctx, appt.ID, appt.Email, appt.Department, appt.Doctor, appt.ScheduledFor); err != nil {
			s.logger.Warn("failed to audit appointment", "appointment_id", appt.ID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyAppointmentRequested(ctx, notify.AppointmentNotice{
			ID:           appt.ID,
			Name:         appt.Name,
			Email:        appt.Email,
			Phone:        appt.Phone,
			Department:   appt.Department,
			Doctor:       appt.Doctor,
			ScheduledFor: appt.ScheduledFor,
			Message:      appt.Message,
		}); err != nil {
			s.logger.Warn("appointment notifications failed", "appointment_id", appt.ID, "error", err)
		}
	}
	return appt, nil
}

// List returns appointments matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus confirms or cancels an appointment.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	appt, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment status updated", "appointment_id", id, "status", status)
	return appt, nil
}

func (s *Service) auditFailure(ctx context.Context, p booking.Payload, reason string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogBookingFailed(ctx, p.Email, p.Doctor, reason); err != nil {
		s.logger.Warn("failed to audit booking failure", "error", err)
	}
}
