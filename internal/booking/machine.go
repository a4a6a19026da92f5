// Package booking implements the appointment booking flow: a linear,
// cancellable state machine that walks a patient from department to doctor to
// contact details and a time slot, then hands the request to a Gateway.
//
// Forward motion is gated by the validators in validate.go. Rejected calls
// are no-ops that report false; only gateway failures surface as errors.
package booking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

// Step is a position in the booking flow.
type Step string

const (
	StepDepartment   Step = "department"
	StepDoctor       Step = "doctor"
	StepDetails      Step = "details"
	StepConfirmation Step = "confirmation"
	StepSubmitted    Step = "submitted"
)

var stepOrder = []Step{StepDepartment, StepDoctor, StepDetails, StepConfirmation, StepSubmitted}

func (s Step) index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return s.index() >= 0
}

func (s Step) next() Step {
	i := s.index()
	if i < 0 || i+1 >= len(stepOrder) {
		return s
	}
	return stepOrder[i+1]
}

func (s Step) prev() Step {
	i := s.index()
	if i <= 0 {
		return s
	}
	return stepOrder[i-1]
}

// Draft is the in-progress appointment request of one session.
type Draft struct {
	ContactName  string     `json:"contact_name"`
	ContactEmail string     `json:"contact_email"`
	ContactPhone string     `json:"contact_phone"`
	Department   string     `json:"department"`
	Doctor       string     `json:"doctor"`
	SelectedSlot *time.Time `json:"selected_slot,omitempty"`
	Message      string     `json:"message"`
}

func (d Draft) clone() Draft {
	if d.SelectedSlot != nil {
		t := *d.SelectedSlot
		d.SelectedSlot = &t
	}
	return d
}

// ContactField names a free-form field editable on the details step.
type ContactField string

const (
	FieldName    ContactField = "name"
	FieldEmail   ContactField = "email"
	FieldPhone   ContactField = "phone"
	FieldMessage ContactField = "message"
)

// SubmitStatus is the outcome of Submit.
type SubmitStatus string

const (
	// SubmitIgnored means the call was not legal (wrong step or a submission
	// already in flight) and the gateway was not called.
	SubmitIgnored   SubmitStatus = "ignored"
	SubmitSucceeded SubmitStatus = "submitted"
	SubmitFailed    SubmitStatus = "failed"
)

// SubmitResult describes what Submit did.
type SubmitResult struct {
	Status  SubmitStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Payload *Payload     `json:"payload,omitempty"`
}

// Observer receives flow events, typically for metrics.
type Observer interface {
	ObserveTransition(from, to Step)
	ObserveRejection(operation string)
	ObserveSubmission(status SubmitStatus, latency time.Duration)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source used for slot generation.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLocation evaluates slot anchor hours in loc.
func WithLocation(loc *time.Location) Option {
	return func(m *Machine) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithSlotPolicy replaces DefaultSlotPolicy.
func WithSlotPolicy(p SlotPolicy) Option {
	return func(m *Machine) { m.policy = p }
}

// WithAutoAdvance controls whether selecting a department or doctor moves to
// the next step immediately. It is on by default.
func WithAutoAdvance(enabled bool) Option {
	return func(m *Machine) { m.autoAdvance = enabled }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// Machine owns one session's Draft and drives its transitions.
// It is safe for concurrent use.
type Machine struct {
	mu          sync.Mutex
	catalog     *catalog.Catalog
	gateway     Gateway
	now         func() time.Time
	loc         *time.Location
	policy      SlotPolicy
	autoAdvance bool
	observer    Observer

	step       Step
	draft      Draft
	slots      []time.Time
	submitting bool
}

// New creates a machine at StepDepartment with an empty draft.
func New(c *catalog.Catalog, gateway Gateway, opts ...Option) *Machine {
	if c == nil {
		c = catalog.Default()
	}
	m := &Machine{
		catalog:     c,
		gateway:     gateway,
		now:         time.Now,
		loc:         time.Local,
		policy:      DefaultSlotPolicy,
		autoAdvance: true,
		step:        StepDepartment,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Step returns the current step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Draft returns a copy of the current draft.
func (m *Machine) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.clone()
}

// Slots returns a copy of the currently offered slots.
func (m *Machine) Slots() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.slots...)
}

// SelectDepartment sets the department. A doctor outside the new department
// is cleared together with the slots offered for them.
func (m *Machine) SelectDepartment(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || m.step != StepDepartment {
		return m.reject("select_department")
	}
	dept, ok := m.catalog.Department(name)
	if !ok {
		return m.reject("select_department")
	}

	m.draft.Department = dept.Name
	if m.draft.Doctor != "" && !m.catalog.BelongsTo(m.draft.Doctor, dept.Name) {
		m.draft.Doctor = ""
		m.slots = nil
		m.draft.SelectedSlot = nil
	}
	if m.autoAdvance {
		m.moveTo(StepDoctor)
	}
	return true
}

// SelectDoctor sets the doctor and regenerates the slot set. A previously
// selected slot survives only if it is still offered.
func (m *Machine) SelectDoctor(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || m.step != StepDoctor {
		return m.reject("select_doctor")
	}
	doc, ok := m.catalog.Doctor(name)
	if !ok || !m.catalog.BelongsTo(doc.Name, m.draft.Department) {
		return m.reject("select_doctor")
	}

	m.draft.Doctor = doc.Name
	m.slots = m.policy.Generate(m.now().In(m.loc))
	if m.draft.SelectedSlot != nil && !containsSlot(m.slots, *m.draft.SelectedSlot) {
		m.draft.SelectedSlot = nil
	}
	if m.autoAdvance {
		m.moveTo(StepDetails)
	}
	return true
}

// SetContactField updates one contact field on the details step.
func (m *Machine) SetContactField(field ContactField, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || m.step != StepDetails {
		return m.reject("set_contact_field")
	}
	switch field {
	case FieldName:
		m.draft.ContactName = value
	case FieldEmail:
		m.draft.ContactEmail = strings.TrimSpace(value)
	case FieldPhone:
		m.draft.ContactPhone = value
	case FieldMessage:
		m.draft.Message = value
	default:
		return m.reject("set_contact_field")
	}
	return true
}

// SelectSlot picks one of the offered slots. Any other datetime is rejected
// and leaves the current selection untouched.
func (m *Machine) SelectSlot(t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || m.step != StepDetails {
		return m.reject("select_slot")
	}
	for _, s := range m.slots {
		if s.Equal(t) {
			slot := s
			m.draft.SelectedSlot = &slot
			return true
		}
	}
	return m.reject("select_slot")
}

// Advance moves to the next step if the current step's requirements are met.
func (m *Machine) Advance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || !canAdvance(m.step, m.draft, m.catalog) {
		return m.reject("advance")
	}
	m.moveTo(m.step.next())
	return true
}

// Back moves to the previous step without clearing anything.
func (m *Machine) Back() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.step {
	case StepDoctor, StepDetails, StepConfirmation:
	default:
		return m.reject("back")
	}
	if m.submitting {
		return m.reject("back")
	}
	m.moveTo(m.step.prev())
	return true
}

// Reset discards the draft and starts over at StepDepartment.
func (m *Machine) Reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting {
		return m.reject("reset")
	}
	m.draft = Draft{}
	m.slots = nil
	m.moveTo(StepDepartment)
	return true
}

// Submit sends the draft to the gateway. It is legal only on the confirmation
// step with no other submission in flight; otherwise it returns SubmitIgnored
// without calling the gateway. On failure the machine stays on the
// confirmation step with the draft intact.
func (m *Machine) Submit(ctx context.Context) (SubmitResult, error) {
	m.mu.Lock()
	if m.submitting || m.step != StepConfirmation || !CanAdvanceFromDetails(m.draft) {
		m.observeSubmission(SubmitIgnored, 0)
		m.mu.Unlock()
		return SubmitResult{Status: SubmitIgnored}, nil
	}
	payload := m.payload()
	m.submitting = true
	gateway := m.gateway
	m.mu.Unlock()

	start := time.Now()
	var (
		res Result
		err error
	)
	if gateway == nil {
		err = ErrNoGateway
	} else {
		res, err = gateway.Submit(ctx, payload)
	}
	latency := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false

	if err != nil {
		m.observeSubmission(SubmitFailed, latency)
		return SubmitResult{Status: SubmitFailed}, &SubmissionError{Err: err}
	}
	if !res.Success {
		m.observeSubmission(SubmitFailed, latency)
		return SubmitResult{Status: SubmitFailed, Message: res.Message},
			&SubmissionError{Message: res.Message, Err: ErrSubmissionRejected}
	}

	m.draft = Draft{}
	m.slots = nil
	m.moveTo(StepSubmitted)
	m.observeSubmission(SubmitSucceeded, latency)
	return SubmitResult{Status: SubmitSucceeded, Message: res.Message, Payload: &payload}, nil
}

// Submitting reports whether a submission is in flight.
func (m *Machine) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

func (m *Machine) payload() Payload {
	var when string
	if m.draft.SelectedSlot != nil {
		when = m.draft.SelectedSlot.In(m.loc).Format(time.RFC3339)
	}
	return Payload{
		Name:       strings.TrimSpace(m.draft.ContactName),
		Email:      strings.TrimSpace(m.draft.ContactEmail),
		Phone:      strings.TrimSpace(m.draft.ContactPhone),
		DateTime:   when,
		Department: m.draft.Department,
		Doctor:     m.draft.Doctor,
		Message:    m.draft.Message,
	}
}

func (m *Machine) moveTo(step Step) {
	if step == m.step {
		return
	}
	from := m.step
	m.step = step
	if m.observer != nil {
		m.observer.ObserveTransition(from, step)
	}
}

func (m *Machine) reject(operation string) bool {
	if m.observer != nil {
		m.observer.ObserveRejection(operation)
	}
	return false
}

func (m *Machine) observeSubmission(status SubmitStatus, latency time.Duration) {
	if m.observer != nil {
		m.observer.ObserveSubmission(status, latency)
	}
}
