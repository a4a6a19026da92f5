package booking

import (
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

// Snapshot is the read model a presentation layer renders from.
type Snapshot struct {
	Step       Step             `json:"step"`
	Draft      Draft            `json:"draft"`
	Slots      []time.Time      `json:"slots"`
	Doctors    []catalog.Doctor `json:"doctors,omitempty"`
	CanAdvance bool             `json:"can_advance"`
	CanGoBack  bool             `json:"can_go_back"`
	Submitting bool             `json:"submitting"`
}

// Snapshot returns the current step, draft, slots and gate results.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Step:       m.step,
		Draft:      m.draft.clone(),
		Slots:      append([]time.Time{}, m.slots...),
		Submitting: m.submitting,
	}
	switch m.step {
	case StepConfirmation:
		snap.CanAdvance = !m.submitting && CanAdvanceFromDetails(m.draft)
	default:
		snap.CanAdvance = !m.submitting && canAdvance(m.step, m.draft, m.catalog)
	}
	snap.CanGoBack = !m.submitting && m.step.index() > 0 && m.step != StepSubmitted
	if m.draft.Department != "" {
		snap.Doctors = m.catalog.DoctorsIn(m.draft.Department)
	}
	return snap
}

// State is the serialisable part of a machine, used to carry a session
// between requests.
type State struct {
	Step  Step        `json:"step"`
	Draft Draft       `json:"draft"`
	Slots []time.Time `json:"slots,omitempty"`
}

// State exports the machine's step, draft and slots.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Step:  m.step,
		Draft: m.draft.clone(),
		Slots: append([]time.Time(nil), m.slots...),
	}
}

// Restore loads a previously exported State. Values that break the draft
// invariants are dropped and the step is pulled back to the furthest step
// the restored draft actually qualifies for.
func (m *Machine) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := s.Draft.clone()
	slots := append([]time.Time(nil), s.Slots...)

	if d.Department != "" {
		if dept, ok := m.catalog.Department(d.Department); ok {
			d.Department = dept.Name
		} else {
			d.Department = ""
		}
	}
	if d.Doctor != "" && !m.catalog.BelongsTo(d.Doctor, d.Department) {
		d.Doctor = ""
	}
	if d.Doctor == "" {
		slots = nil
	}
	if d.SelectedSlot != nil && !containsSlot(slots, *d.SelectedSlot) {
		d.SelectedSlot = nil
	}

	m.draft = d
	m.slots = slots
	m.submitting = false
	m.step = clampStep(s.Step, d, m.catalog)
}

func clampStep(target Step, d Draft, c *catalog.Catalog) Step {
	if target == StepSubmitted {
		return StepSubmitted
	}
	if !target.Valid() {
		return StepDepartment
	}
	step := StepDepartment
	for step != target && canAdvance(step, d, c) {
		step = step.next()
	}
	return step
}
