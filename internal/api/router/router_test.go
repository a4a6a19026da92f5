package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/appointments"
	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
	"github.com/wolfman30/rehab-clinic-platform/internal/chat"
	"github.com/wolfman30/rehab-clinic-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rehab-clinic-platform/internal/http/middleware"
	"github.com/wolfman30/rehab-clinic-platform/internal/leads"
	"github.com/wolfman30/rehab-clinic-platform/internal/sessions"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const testSecret = "router-test-secret"

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	logger := logging.Default()
	c := catalog.Default()
	apptSvc := appointments.NewService(appointments.NewInMemoryRepository(), c, logger)
	manager := sessions.NewManager(sessions.NewMemoryStore(time.Hour), c, apptSvc, sessions.WithLogger(logger))

	return &Config{
		Logger:          logger,
		BookingSessions: handlers.NewBookingSessionHandler(manager, logger),
		Catalog:         handlers.NewCatalogHandler(c),
		Appointments:    appointments.NewHandler(apptSvc, logger),
		LeadsHandler:    leads.NewHandler(leads.NewInMemoryRepository(), nil, nil, logger),
		Chat:            chat.NewHandler(chat.NewMemoryTranscript(), nil, logger),
		Dashboard:       handlers.NewAdminDashboardHandler(nil, nil, logger),
		AdminAuthSecret: testSecret,
	}
}

func serve(h http.Handler, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func bearer(t *testing.T, role string) http.Header {
	t.Helper()
	token, err := httpmiddleware.IssueStaffToken(testSecret, "Dr. Sarah Wilson", role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRouterCatalogEndpoints(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodGet, "/api/catalog/departments", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("departments: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Physical Therapy") {
		t.Errorf("expected Physical Therapy in %s", rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/api/catalog/departments/Physical%20Therapy/doctors", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("doctors: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Dr. Sarah Wilson") {
		t.Errorf("expected Dr. Sarah Wilson in %s", rr.Body.String())
	}
}

func TestRouterBookingSessionFlow(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodPost, "/api/booking/sessions", []byte(`{}`), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created handlers.CreateSessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("expected a session id")
	}

	rr = serve(router, http.MethodPut, "/api/booking/sessions/"+created.SessionID+"/department",
		[]byte(`{"name":"Physical Therapy"}`), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("department: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var mut handlers.MutationResponse
	if err := json.NewDecoder(rr.Body).Decode(&mut); err != nil {
		t.Fatalf("decode mutation: %v", err)
	}
	if !mut.Accepted || mut.Snapshot.Step != "doctor" {
		t.Fatalf("expected accepted move to doctor, got %+v", mut)
	}

	rr = serve(router, http.MethodGet, "/api/booking/sessions/"+created.SessionID, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	rr = serve(router, http.MethodDelete, "/api/booking/sessions/"+created.SessionID, nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
}

func TestRouterContactEndpoint(t *testing.T) {
	router := New(newTestConfig(t))

	body := []byte(`{"name":"Jane Doe","email":"jane@example.com","message":"Knee pain after running"}`)
	rr := serve(router, http.MethodPost, "/api/contact", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterChatMessage(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodPost, "/api/chat/message", []byte(`{"text":"hello"}`), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out chat.OutboundMessage
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Intent != chat.IntentGreeting {
		t.Errorf("expected greeting intent, got %q", out.Intent)
	}
	if out.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := New(newTestConfig(t))

	for _, path := range []string{"/admin/appointments", "/admin/contacts", "/admin/dashboard"} {
		rr := serve(router, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}
}

func TestRouterAdminRoles(t *testing.T) {
	router := New(newTestConfig(t))

	rr := serve(router, http.MethodGet, "/admin/appointments", nil, bearer(t, httpmiddleware.RoleDoctor))
	if rr.Code != http.StatusOK {
		t.Fatalf("doctor appointments: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/admin/contacts", nil, bearer(t, httpmiddleware.RoleDoctor))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("doctor contacts: expected 403, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/admin/contacts", nil, bearer(t, httpmiddleware.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin contacts: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/admin/dashboard", nil, bearer(t, httpmiddleware.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin dashboard: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterPatientAppointmentsNeedPatientToken(t *testing.T) {
	router := New(newTestConfig(t))

	when := time.Now().Add(48 * time.Hour).Truncate(time.Hour).UTC().Format(time.RFC3339)
	for _, p := range []map[string]string{
		{"name": "Jane Patient", "email": "jane@example.com", "phone": "555-0100", "datetime": when, "department": "Physical Therapy", "doctor": "Dr. Sarah Wilson"},
		{"name": "Sam Patient", "email": "sam@example.com", "phone": "555-0101", "datetime": when, "department": "Speech Therapy", "doctor": "Dr. Emily Rodriguez"},
	} {
		body, _ := json.Marshal(p)
		if rr := serve(router, http.MethodPost, "/api/appointments", body, nil); rr.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := serve(router, http.MethodGet, "/api/appointments?email=jane@example.com", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: expected 401, got %d", rr.Code)
	}
	rr = serve(router, http.MethodGet, "/api/appointments?email=jane@example.com", nil, bearer(t, httpmiddleware.RoleDoctor))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("doctor token: expected 403, got %d", rr.Code)
	}

	token, err := httpmiddleware.IssueStaffToken(testSecret, "jane@example.com", httpmiddleware.RolePatient, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rr = serve(router, http.MethodGet, "/api/appointments?email=sam@example.com", nil,
		http.Header{"Authorization": []string{"Bearer " + token}})
	if rr.Code != http.StatusOK {
		t.Fatalf("patient list: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var list appointments.ListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Appointments[0].Email != "jane@example.com" {
		t.Fatalf("expected only the token holder's appointment, got %+v", list.Appointments)
	}

	rr = serve(router, http.MethodGet, "/admin/appointments", nil, http.Header{"Authorization": []string{"Bearer " + token}})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("patient token on staff routes: expected 403, got %d", rr.Code)
	}
}

func TestRouterPatientListRateLimited(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.FormLimiter = httpmiddleware.NewRateLimiter(0.001, 1)
	t.Cleanup(cfg.FormLimiter.Stop)
	router := New(cfg)

	token, err := httpmiddleware.IssueStaffToken(testSecret, "jane@example.com", httpmiddleware.RolePatient, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	if rr := serve(router, http.MethodGet, "/api/appointments", nil, header); rr.Code != http.StatusOK {
		t.Fatalf("first list: expected 200, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/api/appointments", nil, header); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second list: expected 429, got %d", rr.Code)
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AdminAuthSecret = ""
	router := New(cfg)

	rr := serve(router, http.MethodGet, "/admin/contacts", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/api/appointments?email=jane@example.com", nil, nil)
	if rr.Code == http.StatusOK {
		t.Fatalf("patient list must not be served without a signing secret")
	}
}

func TestRouterRateLimitsForms(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.FormLimiter = httpmiddleware.NewRateLimiter(1, 1)
	t.Cleanup(cfg.FormLimiter.Stop)
	router := New(cfg)

	body := []byte(`{"email":"runner@example.com"}`)
	if rr := serve(router, http.MethodPost, "/api/newsletter", body, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first subscribe: expected 201, got %d", rr.Code)
	}
	rr := serve(router, http.MethodPost, "/api/newsletter", body, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second subscribe: expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
