package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

type mockEmailSender struct {
	sent   []EmailMessage
	failOn string
}

func (m *mockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if m.failOn != "" && msg.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func sampleAppointment() AppointmentNotice {
	return AppointmentNotice{
		ID:           "appt-1",
		Name:         "Jane <Patient>",
		Email:        "jane@example.com",
		Phone:        "555-0100",
		Department:   "Physical Therapy",
		Doctor:       "Dr. Sarah Wilson",
		ScheduledFor: time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		Message:      "Knee pain",
	}
}

func TestNotifyAppointmentRequested_PatientAndClinic(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, Config{
		ClinicName: "Test Rehab",
		Recipients: []string{"front@clinic.test", " ", "dr@clinic.test"},
	}, logging.New("error"))

	require.NoError(t, svc.NotifyAppointmentRequested(context.Background(), sampleAppointment()))

	require.Len(t, sender.sent, 3)
	patient := sender.sent[0]
	assert.Equal(t, "jane@example.com", patient.To)
	assert.Contains(t, patient.Subject, "Dr. Sarah Wilson")
	assert.Contains(t, patient.Body, "Tuesday, January 2 at 2:00 PM (UTC)")
	assert.Contains(t, patient.HTML, "Jane &lt;Patient&gt;")
	assert.NotContains(t, patient.HTML, "<Patient>")

	clinic := sender.sent[1]
	assert.Equal(t, "front@clinic.test", clinic.To)
	assert.Equal(t, "jane@example.com", clinic.ReplyTo)
	assert.Contains(t, clinic.Body, "Message: Knee pain")
	assert.Contains(t, clinic.Body, "Reference: appt-1")
	assert.Equal(t, "dr@clinic.test", sender.sent[2].To)
	for _, msg := range sender.sent {
		assert.Equal(t, "appointment", msg.Category)
	}
}

func TestNotifyAppointmentRequested_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	sender := &mockEmailSender{}
	svc := NewService(sender, Config{Location: ny}, logging.New("error"))

	require.NoError(t, svc.NotifyAppointmentRequested(context.Background(), sampleAppointment()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "9:00 AM (EST)")
	assert.Contains(t, sender.sent[0].Body, DefaultFromName)
}

func TestNotifyAppointmentRequested_PartialFailure(t *testing.T) {
	sender := &mockEmailSender{failOn: "front@clinic.test"}
	svc := NewService(sender, Config{Recipients: []string{"front@clinic.test", "dr@clinic.test"}}, logging.New("error"))

	err := svc.NotifyAppointmentRequested(context.Background(), sampleAppointment())

	assert.EqualError(t, err, "notify: 1 notification(s) failed")
	assert.Len(t, sender.sent, 2)
}

func TestNotifyContactReceived(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, Config{Recipients: []string{"front@clinic.test"}}, logging.New("error"))

	err := svc.NotifyContactReceived(context.Background(), ContactNotice{
		Name:    "Sam",
		Email:   "sam@example.com",
		Message: "Do you take walk-ins?",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Contact form: General enquiry", sender.sent[0].Subject)
	assert.Equal(t, "sam@example.com", sender.sent[0].ReplyTo)
	assert.NotContains(t, sender.sent[0].Body, "Phone:")
}

func TestNotifySubscribed(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, Config{ClinicName: "Test Rehab"}, logging.New("error"))

	require.NoError(t, svc.NotifySubscribed(context.Background(), "sub@example.com"))
	require.NoError(t, svc.NotifySubscribed(context.Background(), ""))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Welcome to the Test Rehab newsletter", sender.sent[0].Subject)
	assert.Equal(t, "newsletter", sender.sent[0].Category)
}

func TestNotifyPatientAccess(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, Config{ClinicName: "Test Rehab", Recipients: []string{"front@clinic.test"}}, logging.New("error"))

	link := "https://clinic.test/my-appointments?token=a.b.c"
	require.NoError(t, svc.NotifyPatientAccess(context.Background(), "jane@example.com", link))

	require.Len(t, sender.sent, 1, "only the patient gets the link")
	msg := sender.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "access", msg.Category)
	assert.Contains(t, msg.Body, link)
	assert.Contains(t, msg.HTML, `href="https://clinic.test/my-appointments?token=a.b.c"`)
}

func TestNilServiceAndSenderAreNoops(t *testing.T) {
	var svc *Service
	assert.NoError(t, svc.NotifyAppointmentRequested(context.Background(), sampleAppointment()))

	svc = NewService(nil, Config{Recipients: []string{"front@clinic.test"}}, nil)
	assert.NoError(t, svc.NotifyContactReceived(context.Background(), ContactNotice{Name: "x"}))
}
