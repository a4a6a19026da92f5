package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/http/middleware"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const accessRequestedMessage = "If we have appointments for that address, a sign-in link is on its way."

// AccessMailer emails a patient the sign-in link for their appointments.
type AccessMailer interface {
	NotifyPatientAccess(ctx context.Context, email, link string) error
}

// Handler serves the appointments REST API.
type Handler struct {
	svc    *Service
	logger *logging.Logger
	access patientAccess
}

type patientAccess struct {
	secret    string
	portalURL string
	ttl       time.Duration
	mailer    AccessMailer
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPatientAccess enables emailed sign-in links for the patient dashboard.
// Links point at portalURL with a patient token signed by secret in ?token=.
func WithPatientAccess(secret, portalURL string, ttl time.Duration, mailer AccessMailer) HandlerOption {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(h *Handler) {
		h.access = patientAccess{secret: secret, portalURL: portalURL, ttl: ttl, mailer: mailer}
	}
}

// NewHandler returns a handler backed by svc.
func NewHandler(svc *Service, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create handles POST /api/appointments. The body is a booking payload and the
// reply is always a {success, message} result.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var p booking.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, booking.Result{Success: false, Message: "invalid request body"})
		return
	}

	res, err := h.svc.Submit(r.Context(), p)
	if err != nil {
		h.logger.Error("failed to create appointment", "error", err)
		writeJSON(w, http.StatusInternalServerError, booking.Result{Success: false, Message: "could not save the appointment, please try again"})
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListResponse is the response for listing appointments.
type ListResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
	Offset       int            `json:"offset"`
	Limit        int            `json:"limit"`
}

// List handles GET /admin/appointments, the doctor dashboard. Doctors only
// ever see their own appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListForPatient handles GET /api/appointments, the patient dashboard. It
// needs a patient token and lists only the appointments booked under the
// token's email.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, patient bool) {
	q := r.URL.Query()
	filter := ListFilter{
		Doctor: strings.TrimSpace(q.Get("doctor")),
		Email:  strings.ToLower(strings.TrimSpace(q.Get("email"))),
		Limit:  50,
	}
	claims, ok := middleware.StaffClaimsFromContext(r.Context())
	if ok && claims.Role == middleware.RoleDoctor {
		filter.Doctor = claims.Subject
	}
	if patient {
		if !ok || claims.Role != middleware.RolePatient || !booking.ValidEmail(claims.Subject) {
			http.Error(w, `{"error":"patient token required"}`, http.StatusUnauthorized)
			return
		}
		filter.Doctor = ""
		filter.Email = strings.ToLower(claims.Subject)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 100 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		filter.Offset = offset
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		http.Error(w, `{"error":"failed to list appointments"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Appointments: items,
		Count:        len(items),
		Offset:       filter.Offset,
		Limit:        filter.Limit,
	})
}

// RequestAccess handles POST /api/appointments/access. An address with
// appointments on file is emailed a sign-in link; the reply never says whether
// one was sent.
func (h *Handler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, booking.Result{Success: false, Message: "invalid request body"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if !booking.ValidEmail(email) {
		writeJSON(w, http.StatusBadRequest, booking.Result{Success: false, Message: "a valid email is required"})
		return
	}
	if h.access.secret == "" || h.access.mailer == nil {
		writeJSON(w, http.StatusServiceUnavailable, booking.Result{Success: false, Message: "patient sign-in is not available"})
		return
	}

	items, err := h.svc.List(r.Context(), ListFilter{Email: email, Limit: 1})
	if err != nil {
		h.logger.Error("failed to look up patient appointments", "error", err)
		writeJSON(w, http.StatusInternalServerError, booking.Result{Success: false, Message: "please try again"})
		return
	}
	if len(items) > 0 {
		if err := h.sendAccessLink(r.Context(), email); err != nil {
			h.logger.Error("failed to send patient access link", "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, booking.Result{Success: true, Message: accessRequestedMessage})
}

func (h *Handler) sendAccessLink(ctx context.Context, email string) error {
	token, err := middleware.IssueStaffToken(h.access.secret, email, middleware.RolePatient, h.access.ttl)
	if err != nil {
		return err
	}
	link := h.access.portalURL + "?token=" + url.QueryEscape(token)
	return h.access.mailer.NotifyPatientAccess(ctx, email, link)
}

// Get handles GET /admin/appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// UpdateStatus handles PATCH /admin/appointments/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error":"appointment not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidStatus):
		http.Error(w, `{"error":"status must be requested, confirmed or cancelled"}`, http.StatusBadRequest)
	case errors.Is(err, ErrSlotTaken):
		http.Error(w, `{"error":"`+ErrSlotTaken.Error()+`"}`, http.StatusConflict)
	default:
		h.logger.Error("appointment request failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
