package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for appointment storage.
type Repository interface {
	// Create stores a and fills in its ID and CreatedAt. It returns
	// ErrSlotTaken if the doctor already has an active appointment then.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error)
}

// InMemoryRepository keeps appointments in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*Appointment)}
}

func (r *InMemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Status != StatusCancelled &&
			existing.Doctor == a.Doctor &&
			existing.ScheduledFor.Equal(a.ScheduledFor) {
			return ErrSlotTaken
		}
	}
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	stored := *a
	r.items[a.ID] = &stored
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Appointment, error) {
	r.mu.RLock()
	var out []*Appointment
	for _, a := range r.items {
		if filter.Doctor != "" && !strings.EqualFold(a.Doctor, filter.Doctor) {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(a.Email, filter.Email) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Status = status
	out := *a
	return &out, nil
}
