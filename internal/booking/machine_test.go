package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

var testNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type recordingGateway struct {
	mu       sync.Mutex
	payloads []Payload
	replies  []gatewayReply
}

type gatewayReply struct {
	result Result
	err    error
}

func (g *recordingGateway) Submit(_ context.Context, p Payload) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads = append(g.payloads, p)
	if len(g.replies) == 0 {
		return Result{Success: true}, nil
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply.result, reply.err
}

func (g *recordingGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.payloads)
}

type countingObserver struct {
	transitions []Step
	rejections  map[string]int
	submissions map[SubmitStatus]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{rejections: map[string]int{}, submissions: map[SubmitStatus]int{}}
}

func (o *countingObserver) ObserveTransition(_, to Step) { o.transitions = append(o.transitions, to) }
func (o *countingObserver) ObserveRejection(op string)   { o.rejections[op]++ }
func (o *countingObserver) ObserveSubmission(status SubmitStatus, _ time.Duration) {
	o.submissions[status]++
}

func newTestMachine(gw Gateway, opts ...Option) *Machine {
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
	}
	return New(catalog.Default(), gw, append(base, opts...)...)
}

func fillDetails(t *testing.T, m *Machine) {
	t.Helper()
	require.True(t, m.SelectDepartment("Physical Therapy"))
	require.True(t, m.SelectDoctor("Dr. Sarah Wilson"))
	require.Equal(t, StepDetails, m.Step())
	require.True(t, m.SetContactField(FieldName, "Jane Patient"))
	require.True(t, m.SetContactField(FieldEmail, "jane@example.com"))
	require.True(t, m.SetContactField(FieldPhone, "+15551234567"))
	require.True(t, m.SetContactField(FieldMessage, "Left knee pain after surgery"))
	slots := m.Slots()
	require.NotEmpty(t, slots)
	require.True(t, m.SelectSlot(slots[0]))
}

func toConfirmation(t *testing.T, m *Machine) {
	t.Helper()
	fillDetails(t, m)
	require.True(t, m.Advance())
	require.Equal(t, StepConfirmation, m.Step())
}

func TestSelectDepartment_FiltersDoctorList(t *testing.T) {
	m := newTestMachine(&recordingGateway{})

	require.True(t, m.SelectDepartment("Physical Therapy"))

	snap := m.Snapshot()
	require.NotEmpty(t, snap.Doctors)
	names := map[string]bool{}
	for _, d := range snap.Doctors {
		assert.Equal(t, "Physical Therapy", d.Department)
		names[d.Name] = true
	}
	assert.True(t, names["Dr. Sarah Wilson"])
	assert.False(t, names["Dr. Michael Chen"])
	assert.False(t, names["Dr. Emily Rodriguez"])
}

func TestSelectDepartment_AutoAdvancesAndNormalizesName(t *testing.T) {
	m := newTestMachine(&recordingGateway{})

	require.True(t, m.SelectDepartment("physical therapy"))

	assert.Equal(t, StepDoctor, m.Step())
	assert.Equal(t, "Physical Therapy", m.Draft().Department)
}

func TestSelectDepartment_UnknownIsRejected(t *testing.T) {
	m := newTestMachine(&recordingGateway{})

	assert.False(t, m.SelectDepartment("Dermatology"))
	assert.Equal(t, StepDepartment, m.Step())
	assert.Empty(t, m.Draft().Department)
}

func TestSelectDepartment_ClearsMismatchedDoctor(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)

	require.True(t, m.Back())
	require.True(t, m.Back())
	require.Equal(t, StepDepartment, m.Step())

	require.True(t, m.SelectDepartment("Speech Therapy"))

	d := m.Draft()
	assert.Equal(t, "Speech Therapy", d.Department)
	assert.Empty(t, d.Doctor)
	assert.Nil(t, d.SelectedSlot)
	assert.Empty(t, m.Slots())
	assert.Equal(t, "Jane Patient", d.ContactName, "contact details survive a department change")
}

func TestSelectDepartment_SameDepartmentKeepsDoctor(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)
	selected := m.Draft().SelectedSlot

	require.True(t, m.Back())
	require.True(t, m.Back())
	require.True(t, m.SelectDepartment("Physical Therapy"))

	d := m.Draft()
	assert.Equal(t, "Dr. Sarah Wilson", d.Doctor)
	require.NotNil(t, d.SelectedSlot)
	assert.True(t, selected.Equal(*d.SelectedSlot))
}

func TestDepartmentDoctorConsistency(t *testing.T) {
	c := catalog.Default()
	for _, first := range c.Departments() {
		for _, second := range c.Departments() {
			m := newTestMachine(&recordingGateway{})
			require.True(t, m.SelectDepartment(first.Name))
			doctors := c.DoctorsIn(first.Name)
			require.NotEmpty(t, doctors)
			require.True(t, m.SelectDoctor(doctors[0].Name))
			require.True(t, m.Back())
			require.True(t, m.Back())

			require.True(t, m.SelectDepartment(second.Name))

			d := m.Draft()
			if d.Doctor != "" {
				doc, ok := c.Doctor(d.Doctor)
				require.True(t, ok)
				assert.Equal(t, second.Name, doc.Department)
			}
		}
	}
}

func TestSelectDoctor_RejectsDoctorFromOtherDepartment(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	require.True(t, m.SelectDepartment("Physical Therapy"))

	assert.False(t, m.SelectDoctor("Dr. Michael Chen"))
	assert.False(t, m.SelectDoctor("Dr. Nobody"))
	assert.Equal(t, StepDoctor, m.Step())
	assert.Empty(t, m.Draft().Doctor)
	assert.Empty(t, m.Slots())
}

func TestSelectDoctor_GeneratesSlots(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	require.True(t, m.SelectDepartment("Physical Therapy"))
	require.True(t, m.SelectDoctor("Dr. Sarah Wilson"))

	assert.Equal(t, GenerateSlots(testNow), m.Slots())
}

func TestSelectDoctor_RegeneratesAndDropsStaleSlot(t *testing.T) {
	now := testNow
	m := newTestMachine(&recordingGateway{}, WithClock(func() time.Time { return now }))
	fillDetails(t, m)
	first := m.Slots()[0]

	require.True(t, m.Back())
	now = testNow.Add(26 * time.Hour)
	require.True(t, m.SelectDoctor("Dr. James Miller"))

	assert.NotContains(t, m.Slots(), first)
	assert.Nil(t, m.Draft().SelectedSlot)
	assert.Equal(t, "Dr. James Miller", m.Draft().Doctor)
}

func TestAdvance_FromDepartmentRequiresDepartment(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	before := m.Snapshot()

	assert.False(t, m.Advance())

	assert.Equal(t, StepDepartment, m.Step())
	assert.Equal(t, before, m.Snapshot())
}

func TestAdvance_WithoutAutoAdvance(t *testing.T) {
	m := newTestMachine(&recordingGateway{}, WithAutoAdvance(false))

	require.True(t, m.SelectDepartment("Physical Therapy"))
	assert.Equal(t, StepDepartment, m.Step())
	require.True(t, m.Advance())
	assert.Equal(t, StepDoctor, m.Step())

	assert.False(t, m.Advance(), "doctor not chosen yet")
	require.True(t, m.SelectDoctor("Dr. Sarah Wilson"))
	assert.Equal(t, StepDoctor, m.Step())
	require.True(t, m.Advance())
	assert.Equal(t, StepDetails, m.Step())
}

func TestAdvance_FromDetailsRequiresValidEmail(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)

	require.True(t, m.SetContactField(FieldEmail, "not-an-email"))
	assert.False(t, m.Advance())
	assert.Equal(t, StepDetails, m.Step())
	assert.False(t, m.Snapshot().CanAdvance)

	require.True(t, m.SetContactField(FieldEmail, "a@b.com"))
	assert.True(t, m.Snapshot().CanAdvance)
	assert.True(t, m.Advance())
	assert.Equal(t, StepConfirmation, m.Step())
}

func TestAdvance_FromConfirmationIsNoop(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	toConfirmation(t, m)

	assert.False(t, m.Advance())
	assert.Equal(t, StepConfirmation, m.Step())
}

func TestSelectSlot_RejectsUnofferedTime(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)
	before := m.Draft()

	assert.False(t, m.SelectSlot(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.False(t, m.SelectSlot(testNow))

	assert.Equal(t, before, m.Draft())
}

func TestSelectSlot_AcceptsSameInstantInOtherZone(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)
	target := m.Slots()[3]

	zone := time.FixedZone("UTC+2", 2*60*60)
	require.True(t, m.SelectSlot(target.In(zone)))
	assert.True(t, target.Equal(*m.Draft().SelectedSlot))
}

func TestOperationsOutsideTheirStepAreRejected(t *testing.T) {
	obs := newCountingObserver()
	m := newTestMachine(&recordingGateway{}, WithObserver(obs))

	assert.False(t, m.SelectDoctor("Dr. Sarah Wilson"))
	assert.False(t, m.SetContactField(FieldName, "Jane"))
	assert.False(t, m.SelectSlot(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
	assert.False(t, m.Back())

	require.True(t, m.SelectDepartment("Physical Therapy"))
	require.True(t, m.SelectDoctor("Dr. Sarah Wilson"))
	assert.False(t, m.SelectDepartment("Speech Therapy"))
	assert.False(t, m.SetContactField(ContactField("address"), "1 Main St"))

	assert.Equal(t, 1, obs.rejections["select_doctor"])
	assert.Equal(t, 1, obs.rejections["select_department"])
	assert.Equal(t, 2, obs.rejections["set_contact_field"])
	assert.Equal(t, []Step{StepDoctor, StepDetails}, obs.transitions)
}

func TestBack_PreservesContactDetails(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	fillDetails(t, m)
	before := m.Draft()

	require.True(t, m.Back())
	assert.Equal(t, StepDoctor, m.Step())
	require.True(t, m.Advance())
	assert.Equal(t, StepDetails, m.Step())

	after := m.Draft()
	assert.Equal(t, before.ContactName, after.ContactName)
	assert.Equal(t, before.ContactEmail, after.ContactEmail)
	assert.Equal(t, before.ContactPhone, after.ContactPhone)
	assert.Equal(t, before, after)
}

func TestBack_FromDepartmentIsNoop(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	assert.False(t, m.Back())
	assert.Equal(t, StepDepartment, m.Step())
}

func TestSubmit_Success(t *testing.T) {
	gw := &recordingGateway{}
	m := newTestMachine(gw)
	toConfirmation(t, m)

	res, err := m.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SubmitSucceeded, res.Status)
	require.NotNil(t, res.Payload)
	assert.Equal(t, Payload{
		Name:       "Jane Patient",
		Email:      "jane@example.com",
		Phone:      "+15551234567",
		DateTime:   "2024-01-02T09:00:00Z",
		Department: "Physical Therapy",
		Doctor:     "Dr. Sarah Wilson",
		Message:    "Left knee pain after surgery",
	}, *res.Payload)
	assert.Equal(t, StepSubmitted, m.Step())
	assert.Equal(t, Draft{}, m.Draft())
	assert.Empty(t, m.Slots())
	assert.Equal(t, 1, gw.calls())
}

func TestSubmit_DateTimeUsesClinicLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	gw := &recordingGateway{}
	m := newTestMachine(gw, WithLocation(ny))
	toConfirmation(t, m)

	_, err = m.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, gw.payloads, 1)
	assert.Equal(t, "2024-01-02T09:00:00-05:00", gw.payloads[0].DateTime)
}

func TestSubmit_OnlyFromConfirmation(t *testing.T) {
	gw := &recordingGateway{}
	obs := newCountingObserver()
	m := newTestMachine(gw, WithObserver(obs))
	fillDetails(t, m)

	res, err := m.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SubmitIgnored, res.Status)
	assert.Zero(t, gw.calls())
	assert.Equal(t, StepDetails, m.Step())
	assert.Equal(t, 1, obs.submissions[SubmitIgnored])
	assert.Zero(t, obs.rejections["submit"], "an ignored submit is counted once, as a submission")
}

func TestSubmit_RetryAfterFailure(t *testing.T) {
	gw := &recordingGateway{replies: []gatewayReply{
		{err: errors.New("connection reset")},
		{result: Result{Success: true, Message: "Appointment requested"}},
	}}
	m := newTestMachine(gw)
	toConfirmation(t, m)
	draftBefore := m.Draft()

	res, err := m.Submit(context.Background())
	require.Error(t, err)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, SubmitFailed, res.Status)
	assert.Equal(t, StepConfirmation, m.Step())
	assert.Equal(t, draftBefore, m.Draft())

	res, err = m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SubmitSucceeded, res.Status)
	assert.Equal(t, "Appointment requested", res.Message)

	require.Len(t, gw.payloads, 2)
	assert.Equal(t, gw.payloads[0], gw.payloads[1])
	assert.Equal(t, StepSubmitted, m.Step())
}

func TestSubmit_GatewayRejection(t *testing.T) {
	gw := &recordingGateway{replies: []gatewayReply{
		{result: Result{Success: false, Message: "slot no longer available"}},
	}}
	m := newTestMachine(gw)
	toConfirmation(t, m)

	res, err := m.Submit(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "slot no longer available")
	assert.Equal(t, SubmitFailed, res.Status)
	assert.Equal(t, "slot no longer available", res.Message)
	assert.Equal(t, StepConfirmation, m.Step())
	assert.Equal(t, "Jane Patient", m.Draft().ContactName)
}

func TestSubmit_NoGateway(t *testing.T) {
	m := newTestMachine(nil)
	toConfirmation(t, m)

	res, err := m.Submit(context.Background())

	assert.ErrorIs(t, err, ErrNoGateway)
	assert.Equal(t, SubmitFailed, res.Status)
	assert.Equal(t, StepConfirmation, m.Step())
}

func TestSubmit_ConcurrentCallIsIgnored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	gw := GatewayFunc(func(ctx context.Context, p Payload) (Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return Result{Success: true}, nil
	})
	m := newTestMachine(gw)
	toConfirmation(t, m)

	type outcome struct {
		res SubmitResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := m.Submit(context.Background())
		done <- outcome{res, err}
	}()

	<-started
	assert.True(t, m.Submitting())
	assert.True(t, m.Snapshot().Submitting)

	res, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SubmitIgnored, res.Status)
	assert.False(t, m.Back(), "navigation is frozen while submitting")

	close(release)
	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, SubmitSucceeded, first.res.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestReset_StartsFreshDraftAfterSubmission(t *testing.T) {
	m := newTestMachine(&recordingGateway{})
	toConfirmation(t, m)
	_, err := m.Submit(context.Background())
	require.NoError(t, err)

	assert.False(t, m.Back())
	require.True(t, m.Reset())

	assert.Equal(t, StepDepartment, m.Step())
	assert.Equal(t, Draft{}, m.Draft())
}

func TestObserverSeesSubmissions(t *testing.T) {
	obs := newCountingObserver()
	gw := &recordingGateway{replies: []gatewayReply{{err: errors.New("boom")}}}
	m := newTestMachine(gw, WithObserver(obs))
	toConfirmation(t, m)

	_, _ = m.Submit(context.Background())
	_, _ = m.Submit(context.Background())

	assert.Equal(t, 1, obs.submissions[SubmitFailed])
	assert.Equal(t, 1, obs.submissions[SubmitSucceeded])
	assert.Equal(t, StepSubmitted, obs.transitions[len(obs.transitions)-1])
}
