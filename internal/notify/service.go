package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const (
	scheduleLayout = "Monday, January 2 at 3:04 PM (MST)"
	rowStyle       = `padding: 8px; border-bottom: 1px solid #e5e7eb;`
)

// Config holds clinic-level notification settings.
type Config struct {
	ClinicName string
	// Recipients are the clinic staff addresses that receive new-request
	// and contact-form notices.
	Recipients []string
	// Location renders appointment times for humans. Defaults to UTC.
	Location *time.Location
}

// AppointmentNotice carries what the emails need about a requested appointment.
type AppointmentNotice struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Department   string
	Doctor       string
	ScheduledFor time.Time
	Message      string
}

// ContactNotice carries a contact-form submission.
type ContactNotice struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// Service sends patient and clinic emails.
type Service struct {
	email      EmailSender
	clinicName string
	recipients []string
	loc        *time.Location
	logger     *logging.Logger
}

// NewService creates a notification service. A nil sender disables sending.
func NewService(email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.ClinicName) == "" {
		cfg.ClinicName = DefaultFromName
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	var recipients []string
	for _, r := range cfg.Recipients {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return &Service{
		email:      email,
		clinicName: cfg.ClinicName,
		recipients: recipients,
		loc:        cfg.Location,
		logger:     logger,
	}
}

// NotifyAppointmentRequested emails the patient a confirmation of the request
// and every clinic recipient a new-request notice.
func (s *Service) NotifyAppointmentRequested(ctx context.Context, n AppointmentNotice) error {
	if s == nil || s.email == nil {
		return nil
	}
	when := n.ScheduledFor.In(s.loc).Format(scheduleLayout)

	var messages []EmailMessage
	if n.Email != "" {
		messages = append(messages, EmailMessage{
			To:      n.Email,
			ToName:  n.Name,
			Subject: fmt.Sprintf("Your appointment request with %s", n.Doctor),
			Body: fmt.Sprintf(`Hi %s,

We received your request to see %s (%s) on %s.

Our team will call you at %s to confirm. If you need to change anything, just reply to this email.

%s`, n.Name, n.Doctor, n.Department, when, n.Phone, s.clinicName),
			HTML: fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #2563eb;">Appointment request received</h2>
<p>Hi %s,</p>
<p>We received your request to see <strong>%s</strong> (%s) on <strong>%s</strong>.</p>
<p>Our team will call you at %s to confirm.</p>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">%s</p>
</div>`, esc(n.Name), esc(n.Doctor), esc(n.Department), esc(when), esc(n.Phone), esc(s.clinicName)),
		})
	}

	for _, recipient := range s.recipients {
		messages = append(messages, EmailMessage{
			To:      recipient,
			ReplyTo: n.Email,
			Subject: fmt.Sprintf("New appointment request - %s with %s", n.Name, n.Doctor),
			Body: fmt.Sprintf(`New appointment request

Patient: %s
Email: %s
Phone: %s
Department: %s
Doctor: %s
Requested: %s%s
Reference: %s`, n.Name, n.Email, n.Phone, n.Department, n.Doctor, when, optionalLine("Message", n.Message), n.ID),
			HTML: fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #10b981;">New appointment request</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
%s%s%s%s%s%s%s
</table>
<p style="color: #6b7280; font-size: 12px;">Reference %s</p>
</div>`,
				row("Patient", n.Name),
				row("Email", n.Email),
				row("Phone", n.Phone),
				row("Department", n.Department),
				row("Doctor", n.Doctor),
				row("Requested", when),
				row("Message", n.Message),
				esc(n.ID)),
		})
	}

	return s.sendAll(ctx, "appointment", messages)
}

// NotifyContactReceived forwards a contact-form submission to the clinic.
func (s *Service) NotifyContactReceived(ctx context.Context, n ContactNotice) error {
	if s == nil || s.email == nil {
		return nil
	}
	subject := strings.TrimSpace(n.Subject)
	if subject == "" {
		subject = "General enquiry"
	}

	var messages []EmailMessage
	for _, recipient := range s.recipients {
		messages = append(messages, EmailMessage{
			To:      recipient,
			ReplyTo: n.Email,
			Subject: fmt.Sprintf("Contact form: %s", subject),
			Body: fmt.Sprintf(`From: %s <%s>%s

%s`, n.Name, n.Email, optionalLine("Phone", n.Phone), n.Message),
			HTML: fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>%s</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
%s%s%s
</table>
<p style="white-space: pre-wrap;">%s</p>
</div>`, esc(subject), row("Name", n.Name), row("Email", n.Email), row("Phone", n.Phone), esc(n.Message)),
		})
	}
	return s.sendAll(ctx, "contact", messages)
}

// NotifySubscribed sends a newsletter welcome.
func (s *Service) NotifySubscribed(ctx context.Context, email string) error {
	if s == nil || s.email == nil || strings.TrimSpace(email) == "" {
		return nil
	}
	return s.sendAll(ctx, "newsletter", []EmailMessage{{
		To:      email,
		Subject: fmt.Sprintf("Welcome to the %s newsletter", s.clinicName),
		Body:    fmt.Sprintf("Thanks for subscribing. You'll hear from %s about rehabilitation tips and clinic news.", s.clinicName),
	}})
}

// NotifyPatientAccess emails a patient the sign-in link for their
// appointments.
func (s *Service) NotifyPatientAccess(ctx context.Context, email, link string) error {
	if s == nil || s.email == nil || strings.TrimSpace(email) == "" {
		return nil
	}
	return s.sendAll(ctx, "access", []EmailMessage{{
		To:      email,
		Subject: fmt.Sprintf("Your %s appointments", s.clinicName),
		Body: fmt.Sprintf(`Use this link to see your appointment requests:

%s

The link expires in a day. If you did not ask for it you can ignore this email.

%s`, link, s.clinicName),
		HTML: fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<p>Use the button below to see your appointment requests.</p>
<p><a href="%s" style="background: #2563eb; color: #fff; padding: 10px 16px; border-radius: 6px; text-decoration: none;">View my appointments</a></p>
<p style="color: #6b7280; font-size: 12px;">The link expires in a day. If you did not ask for it you can ignore this email.</p>
<p style="color: #6b7280; font-size: 12px;">%s</p>
</div>`, esc(link), esc(s.clinicName)),
	}})
}

func (s *Service) sendAll(ctx context.Context, kind string, messages []EmailMessage) error {
	var failed int
	for _, msg := range messages {
		if msg.Category == "" {
			msg.Category = kind
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send email", "kind", kind, "error", err, "to", msg.To)
			failed++
			continue
		}
		s.logger.Info("notify: email sent", "kind", kind, "to", msg.To)
	}
	if failed > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", failed)
	}
	return nil
}

func row(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return fmt.Sprintf(`<tr><td style="%s"><strong>%s:</strong></td><td style="%s">%s</td></tr>`,
		rowStyle, label, rowStyle, esc(value))
}

func optionalLine(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return fmt.Sprintf("\n%s: %s", label, value)
}

func esc(s string) string {
	return html.EscapeString(s)
}
