package leads

import (
	"strings"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
)

// MaxMessageLength bounds free-text contact messages.
const MaxMessageLength = 5000

// ContactMessage is a submission of the public contact form
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateContactRequest represents the request body for the contact form
type CreateContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Normalize trims every field and lowercases the email
func (r *CreateContactRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Message = strings.TrimSpace(r.Message)
}

// Validate validates the contact request
func (r *CreateContactRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if !booking.ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Subscription is a newsletter signup
type Subscription struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter pages admin listings
type ListFilter struct {
	Limit  int
	Offset int
}
