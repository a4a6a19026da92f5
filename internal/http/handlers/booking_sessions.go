package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/sessions"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const maxBookingBody = 16 << 10

// BookingSessionHandler exposes the booking flow of stored sessions over HTTP.
type BookingSessionHandler struct {
	manager *sessions.Manager
	logger  *logging.Logger
}

// NewBookingSessionHandler creates a new booking session handler.
func NewBookingSessionHandler(manager *sessions.Manager, logger *logging.Logger) *BookingSessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingSessionHandler{manager: manager, logger: logger}
}

// Routes mounts the session endpoints on r.
func (h *BookingSessionHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{sessionID}", h.SessionRoutes)
}

// SessionRoutes mounts the per-session endpoints under /{sessionID}.
func (h *BookingSessionHandler) SessionRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Delete)
	r.Put("/department", h.SelectDepartment)
	r.Put("/doctor", h.SelectDoctor)
	r.Patch("/contact", h.UpdateContact)
	r.Put("/slot", h.SelectSlot)
	r.Post("/advance", h.Advance)
	r.Post("/back", h.Back)
	r.Post("/reset", h.Reset)
	r.Post("/submit", h.Submit)
}

// CreateSessionResponse is returned when a session starts.
type CreateSessionResponse struct {
	SessionID string           `json:"session_id"`
	Snapshot  booking.Snapshot `json:"snapshot"`
}

// MutationResponse is returned by every flow operation. Accepted is false
// when the operation was not legal in the current state.
type MutationResponse struct {
	Accepted bool             `json:"accepted"`
	Snapshot booking.Snapshot `json:"snapshot"`
}

// SubmitResponse is returned by Submit.
type SubmitResponse struct {
	Status   booking.SubmitStatus `json:"status"`
	Message  string               `json:"message,omitempty"`
	Snapshot booking.Snapshot     `json:"snapshot"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type contactRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Message *string `json:"message"`
}

type slotRequest struct {
	DateTime string `json:"datetime"`
}

// Create handles POST /api/booking/sessions.
func (h *BookingSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, snap, err := h.manager.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create booking session", "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: id, Snapshot: snap})
}

// Get handles GET /api/booking/sessions/{sessionID}.
func (h *BookingSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/booking/sessions/{sessionID}.
func (h *BookingSessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectDepartment handles PUT .../department.
func (h *BookingSessionHandler) SelectDepartment(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.apply(w, r, func(m *booking.Machine) bool { return m.SelectDepartment(req.Name) })
}

// SelectDoctor handles PUT .../doctor.
func (h *BookingSessionHandler) SelectDoctor(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.apply(w, r, func(m *booking.Machine) bool { return m.SelectDoctor(req.Name) })
}

// UpdateContact handles PATCH .../contact. Only the fields present in the
// body are changed; the update is accepted only if every one of them is.
func (h *BookingSessionHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fields := map[booking.ContactField]*string{
		booking.FieldName:    req.Name,
		booking.FieldEmail:   req.Email,
		booking.FieldPhone:   req.Phone,
		booking.FieldMessage: req.Message,
	}
	h.apply(w, r, func(m *booking.Machine) bool {
		applied := 0
		for field, value := range fields {
			if value == nil {
				continue
			}
			if !m.SetContactField(field, *value) {
				return false
			}
			applied++
		}
		return applied > 0
	})
}

// SelectSlot handles PUT .../slot.
func (h *BookingSessionHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slot, err := time.Parse(time.RFC3339, req.DateTime)
	if err != nil {
		http.Error(w, "datetime must be RFC3339", http.StatusBadRequest)
		return
	}
	h.apply(w, r, func(m *booking.Machine) bool { return m.SelectSlot(slot) })
}

// Advance handles POST .../advance.
func (h *BookingSessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*booking.Machine).Advance)
}

// Back handles POST .../back.
func (h *BookingSessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*booking.Machine).Back)
}

// Reset handles POST .../reset.
func (h *BookingSessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*booking.Machine).Reset)
}

// Submit handles POST .../submit. 200 means submitted, 202 means the call
// was ignored (wrong step or another submission in flight) and 502 means
// the gateway failed and the draft is kept for a retry.
func (h *BookingSessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	res, snap, err := h.manager.Submit(r.Context(), id)

	var subErr *booking.SubmissionError
	switch {
	case errors.As(err, &subErr):
		writeJSON(w, http.StatusBadGateway, SubmitResponse{
			Status:   booking.SubmitFailed,
			Message:  submitFailureMessage(res, subErr),
			Snapshot: snap,
		})
		return
	case err != nil:
		h.writeSessionError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == booking.SubmitIgnored {
		status = http.StatusAccepted
	}
	writeJSON(w, status, SubmitResponse{Status: res.Status, Message: res.Message, Snapshot: snap})
}

func submitFailureMessage(res booking.SubmitResult, err *booking.SubmissionError) string {
	if res.Message != "" {
		return res.Message
	}
	if err.Message != "" {
		return err.Message
	}
	return "We could not send your request. Please try again."
}

func (h *BookingSessionHandler) apply(w http.ResponseWriter, r *http.Request, op func(*booking.Machine) bool) {
	accepted, snap, err := h.manager.Apply(r.Context(), chi.URLParam(r, "sessionID"), op)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Accepted: accepted, Snapshot: snap})
}

func (h *BookingSessionHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, sessions.ErrInvalidSessionID):
		http.Error(w, "invalid session id", http.StatusBadRequest)
	default:
		h.logger.Error("booking session operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookingBody)).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
