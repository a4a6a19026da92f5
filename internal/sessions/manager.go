package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
	"github.com/wolfman30/rehab-clinic-platform/internal/observability/metrics"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const (
	defaultSubmitLockTTL = 30 * time.Second

	// Apply waits briefly for another Apply to finish before giving up.
	applyLockTTL      = 5 * time.Second
	applyLockAttempts = 5
	applyLockBackoff  = 20 * time.Millisecond
)

// Manager runs booking operations against stored sessions.
type Manager struct {
	store         Store
	catalog       *catalog.Catalog
	gateway       booking.Gateway
	machineOpts   []booking.Option
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	now           func() time.Time
	submitLockTTL time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMachineOptions passes opts to every booking.Machine the manager builds.
func WithMachineOptions(opts ...booking.Option) ManagerOption {
	return func(m *Manager) { m.machineOpts = append(m.machineOpts, opts...) }
}

// WithMetrics records session and booking flow metrics.
func WithMetrics(bm *metrics.BookingMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = bm }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSubmitLockTTL bounds how long a crashed submission can block retries.
// It should exceed the gateway timeout.
func WithSubmitLockTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.submitLockTTL = ttl
		}
	}
}

func withClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager wires a manager. A nil catalog uses catalog.Default().
func NewManager(store Store, c *catalog.Catalog, gateway booking.Gateway, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("sessions: store required")
	}
	if c == nil {
		c = catalog.Default()
	}
	m := &Manager{
		store:         store,
		catalog:       c,
		gateway:       gateway,
		logger:        logging.Default(),
		now:           time.Now,
		submitLockTTL: defaultSubmitLockTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the catalog sessions are validated against.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Create starts a new session at the department step.
func (m *Manager) Create(ctx context.Context) (string, booking.Snapshot, error) {
	machine := m.machine()
	now := m.now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		State:     machine.State(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return "", booking.Snapshot{}, err
	}
	m.metrics.ObserveSession("created")
	m.logger.Debug("booking session created", "session_id", rec.ID)
	return rec.ID, machine.Snapshot(), nil
}

// Snapshot returns the current view of a session.
func (m *Manager) Snapshot(ctx context.Context, id string) (booking.Snapshot, error) {
	_, machine, err := m.load(ctx, id)
	if err != nil {
		return booking.Snapshot{}, err
	}
	snap := machine.Snapshot()
	if locked, err := m.store.Locked(ctx, id); err == nil && locked {
		markSubmitting(&snap)
	}
	return snap, nil
}

// Apply runs op against the session and persists the result when op accepts.
// The session lock is held from load to save, so a submission that finishes
// meanwhile is never overwritten. While a submission is in flight every
// operation is rejected.
func (m *Manager) Apply(ctx context.Context, id string, op func(*booking.Machine) bool) (bool, booking.Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return false, booking.Snapshot{}, ErrInvalidSessionID
	}

	token, ok, err := m.lockForApply(ctx, id)
	if err != nil {
		return false, booking.Snapshot{}, err
	}
	if !ok {
		_, machine, err := m.load(ctx, id)
		if err != nil {
			return false, booking.Snapshot{}, err
		}
		m.metrics.ObserveRejection("submit_in_flight")
		snap := machine.Snapshot()
		markSubmitting(&snap)
		return false, snap, nil
	}
	defer m.unlock(ctx, id, token)

	rec, machine, err := m.load(ctx, id)
	if err != nil {
		return false, booking.Snapshot{}, err
	}
	if !op(machine) {
		return false, machine.Snapshot(), nil
	}
	if err := m.save(ctx, rec, machine); err != nil {
		return false, booking.Snapshot{}, err
	}
	return true, machine.Snapshot(), nil
}

// Submit sends the session's draft to the gateway. Concurrent submits of the
// same session result in a single gateway call; the others are ignored.
func (m *Manager) Submit(ctx context.Context, id string) (booking.SubmitResult, booking.Snapshot, error) {
	rec, machine, err := m.load(ctx, id)
	if err != nil {
		return booking.SubmitResult{}, booking.Snapshot{}, err
	}

	token, ok, err := m.store.Lock(ctx, id, m.submitLockTTL)
	if err != nil {
		return booking.SubmitResult{}, booking.Snapshot{}, err
	}
	if !ok {
		m.metrics.ObserveSubmission(booking.SubmitIgnored, 0)
		snap := machine.Snapshot()
		markSubmitting(&snap)
		return booking.SubmitResult{Status: booking.SubmitIgnored}, snap, nil
	}
	defer m.unlock(ctx, id, token)

	// Reload under the lock: a submit that finished between load and Lock
	// has already moved the session on.
	rec, machine, err = m.load(ctx, id)
	if err != nil {
		return booking.SubmitResult{}, booking.Snapshot{}, err
	}

	res, submitErr := machine.Submit(ctx)
	if res.Status == booking.SubmitIgnored {
		return res, machine.Snapshot(), nil
	}
	if err := m.save(context.WithoutCancel(ctx), rec, machine); err != nil {
		return res, booking.Snapshot{}, err
	}
	if submitErr != nil {
		m.logger.Warn("booking submission failed", "session_id", id, "error", submitErr)
		return res, machine.Snapshot(), submitErr
	}
	m.logger.Info("booking submitted", "session_id", id, "doctor", res.Payload.Doctor, "datetime", res.Payload.DateTime)
	return res, machine.Snapshot(), nil
}

// Delete discards a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidSessionID
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.metrics.ObserveSession("deleted")
	return nil
}

func (m *Manager) machine() *booking.Machine {
	opts := append([]booking.Option{}, m.machineOpts...)
	if m.metrics != nil {
		opts = append(opts, booking.WithObserver(m.metrics))
	}
	return booking.New(m.catalog, m.gateway, opts...)
}

func (m *Manager) load(ctx context.Context, id string) (Record, *booking.Machine, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, nil, ErrInvalidSessionID
	}
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Record{}, nil, err
		}
		return Record{}, nil, fmt.Errorf("sessions: load: %w", err)
	}
	machine := m.machine()
	machine.Restore(rec.State)
	return rec, machine, nil
}

// lockForApply takes the session lock, retrying while a short operation holds
// it. A lock still held after the last attempt is an in-flight submission.
func (m *Manager) lockForApply(ctx context.Context, id string) (string, bool, error) {
	for attempt := 1; ; attempt++ {
		token, ok, err := m.store.Lock(ctx, id, applyLockTTL)
		if err != nil {
			return "", false, fmt.Errorf("sessions: lock: %w", err)
		}
		if ok || attempt == applyLockAttempts {
			return token, ok, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(applyLockBackoff):
		}
	}
}

func (m *Manager) unlock(ctx context.Context, id, token string) {
	if err := m.store.Unlock(context.WithoutCancel(ctx), id, token); err != nil {
		m.logger.Warn("failed to release session lock", "session_id", id, "error", err)
	}
}

func (m *Manager) save(ctx context.Context, rec Record, machine *booking.Machine) error {
	rec.State = machine.State()
	rec.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("sessions: save: %w", err)
	}
	return nil
}

func markSubmitting(snap *booking.Snapshot) {
	snap.Submitting = true
	snap.CanAdvance = false
	snap.CanGoBack = false
}
