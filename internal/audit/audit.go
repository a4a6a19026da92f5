// Package audit records an append-only trail of booking and patient-contact
// events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventType names an audited event.
type EventType string

const (
	// EventBookingSubmitted is logged when an appointment request is accepted.
	EventBookingSubmitted EventType = "booking.submitted"
	// EventBookingFailed is logged when a submission could not be stored.
	EventBookingFailed EventType = "booking.submission_failed"
	// EventContactReceived is logged for every contact-form message.
	EventContactReceived EventType = "contact.received"
	// EventNewsletterSubscribed is logged for new newsletter subscriptions.
	EventNewsletterSubscribed EventType = "newsletter.subscribed"
)

// Event is an immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	SubjectID string          `json:"subject_id,omitempty"`
	Email     string          `json:"email,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Details holds event-specific fields.
type Details struct {
	Department   string `json:"department,omitempty"`
	Doctor       string `json:"doctor,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Service writes and reads audit events.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// LogEvent records an audit event. A nil service or database is a no-op so
// callers can run without an audit store.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO audit_events (id, event_type, subject_id, email, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.SubjectID),
		nullString(event.Email),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// LogBookingSubmitted records an accepted appointment request.
func (s *Service) LogBookingSubmitted(ctx context.Context, appointmentID, email, department, doctor string, scheduledFor time.Time) error {
	return s.logWithDetails(ctx, EventBookingSubmitted, appointmentID, email, Details{
		Department:   department,
		Doctor:       doctor,
		ScheduledFor: scheduledFor.UTC().Format(time.RFC3339),
	})
}

// LogBookingFailed records a submission that could not be stored.
func (s *Service) LogBookingFailed(ctx context.Context, email, doctor, reason string) error {
	return s.logWithDetails(ctx, EventBookingFailed, "", email, Details{Doctor: doctor, Reason: reason})
}

// LogContactReceived records a contact-form message.
func (s *Service) LogContactReceived(ctx context.Context, contactID, email, subject string) error {
	return s.logWithDetails(ctx, EventContactReceived, contactID, email, Details{Subject: subject})
}

// LogNewsletterSubscribed records a new subscription.
func (s *Service) LogNewsletterSubscribed(ctx context.Context, email string) error {
	return s.LogEvent(ctx, Event{EventType: EventNewsletterSubscribed, Email: email})
}

func (s *Service) logWithDetails(ctx context.Context, eventType EventType, subjectID, email string, details Details) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	return s.LogEvent(ctx, Event{
		EventType: eventType,
		SubjectID: subjectID,
		Email:     email,
		Details:   detailsJSON,
	})
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	EventTypes []EventType
	SubjectID  string
	Email      string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit events, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `
		SELECT id, event_type, subject_id, email, details, created_at
		FROM audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND event_type = ANY($%d)", argIdx)
		args = append(args, pq.Array(types))
		argIdx++
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", argIdx)
		args = append(args, filter.SubjectID)
		argIdx++
	}
	if filter.Email != "" {
		query += fmt.Sprintf(" AND email = $%d", argIdx)
		args = append(args, filter.Email)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var subjectID, email sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &subjectID, &email, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.SubjectID = subjectID.String
		e.Email = email.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
