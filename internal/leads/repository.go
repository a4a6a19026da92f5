package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for contact and newsletter storage
type Repository interface {
	CreateContact(ctx context.Context, req *CreateContactRequest) (*ContactMessage, error)
	GetContact(ctx context.Context, id string) (*ContactMessage, error)
	ListContacts(ctx context.Context, filter ListFilter) ([]*ContactMessage, error)
	// Subscribe stores email; created is false if it was already subscribed.
	Subscribe(ctx context.Context, email string) (sub *Subscription, created bool, err error)
}

// InMemoryRepository is an in-memory implementation of Repository
type InMemoryRepository struct {
	mu       sync.RWMutex
	contacts map[string]*ContactMessage
	subs     map[string]*Subscription
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		contacts: make(map[string]*ContactMessage),
		subs:     make(map[string]*Subscription),
	}
}

// CreateContact stores a contact message in memory
func (r *InMemoryRepository) CreateContact(ctx context.Context, req *CreateContactRequest) (*ContactMessage, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	msg := &ContactMessage{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.contacts[msg.ID] = msg
	r.mu.Unlock()

	return msg, nil
}

// GetContact retrieves a contact message by ID
func (r *InMemoryRepository) GetContact(ctx context.Context, id string) (*ContactMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	return msg, nil
}

// ListContacts returns contact messages, newest first
func (r *InMemoryRepository) ListContacts(ctx context.Context, filter ListFilter) ([]*ContactMessage, error) {
	r.mu.RLock()
	out := make([]*ContactMessage, 0, len(r.contacts))
	for _, msg := range r.contacts {
		out = append(out, msg)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset >= len(out) {
		return []*ContactMessage{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Subscribe adds email to the newsletter list
func (r *InMemoryRepository) Subscribe(ctx context.Context, email string) (*Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[email]; ok {
		return sub, false, nil
	}
	sub := &Subscription{Email: email, CreatedAt: time.Now().UTC()}
	r.subs[email] = sub
	return sub, true, nil
}
