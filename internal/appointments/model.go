package appointments

import (
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when the doctor already has an active
	// appointment at the requested time.
	ErrSlotTaken = errors.New("that time is no longer available")
	// ErrInvalidStatus is returned for unknown status transitions.
	ErrInvalidStatus = errors.New("invalid appointment status")
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Appointment is a stored appointment request.
type Appointment struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Department   string    `json:"department"`
	Doctor       string    `json:"doctor"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Message      string    `json:"message,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Doctor string
	Email  string
	Limit  int
	Offset int
}

// ValidationError explains why a payload cannot become an appointment.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// fromPayload validates a submitted booking and converts it. now bounds the
// requested time from below.
func fromPayload(p booking.Payload, c *catalog.Catalog, now time.Time) (*Appointment, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if !booking.ValidEmail(email) {
		return nil, &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	phone := strings.TrimSpace(p.Phone)
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Reason: "is required"}
	}

	dept, ok := c.Department(p.Department)
	if !ok {
		return nil, &ValidationError{Field: "department", Reason: "is not offered"}
	}
	doc, ok := c.Doctor(p.Doctor)
	if !ok || !c.BelongsTo(doc.Name, dept.Name) {
		return nil, &ValidationError{Field: "doctor", Reason: "does not practise in " + dept.Name}
	}

	when, err := time.Parse(time.RFC3339, strings.TrimSpace(p.DateTime))
	if err != nil {
		return nil, &ValidationError{Field: "datetime", Reason: "must be an RFC 3339 timestamp"}
	}
	if !when.After(now) {
		return nil, &ValidationError{Field: "datetime", Reason: "must be in the future"}
	}

	return &Appointment{
		Name:         name,
		Email:        email,
		Phone:        phone,
		Department:   dept.Name,
		Doctor:       doc.Name,
		ScheduledFor: when.UTC(),
		Message:      strings.TrimSpace(p.Message),
		Status:       StatusRequested,
	}, nil
}
