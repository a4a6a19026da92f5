// Package sessions keeps booking state between HTTP requests. Each session
// holds one booking.State; a Manager rebuilds a booking.Machine around it for
// every request and writes the result back.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("sessions: session not found")
	// ErrInvalidSessionID is returned when an id is blank.
	ErrInvalidSessionID = errors.New("sessions: session id required")
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// Record is what a Store persists for one session.
type Record struct {
	ID        string        `json:"id"`
	State     booking.State `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store persists session records and serialises writes to one session across
// requests.
type Store interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error

	// Lock takes the session lock for id. Submissions and mutations both
	// hold it. ok is false when another request already does.
	Lock(ctx context.Context, id string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases the lock only if token still owns it.
	Unlock(ctx context.Context, id, token string) error
	// Locked reports whether the session lock for id is held.
	Locked(ctx context.Context, id string) (bool, error)
}
