package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/notify"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

// Notifier emails the clinic and subscribers.
type Notifier interface {
	NotifyContactReceived(ctx context.Context, n notify.ContactNotice) error
	NotifySubscribed(ctx context.Context, email string) error
}

// Auditor records form submissions.
type Auditor interface {
	LogContactReceived(ctx context.Context, contactID, email, subject string) error
	LogNewsletterSubscribed(ctx context.Context, email string) error
}

// Handler handles HTTP requests for the contact and newsletter forms
type Handler struct {
	repo     Repository
	notifier Notifier
	auditor  Auditor
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. notifier and auditor may be nil.
func NewHandler(repo Repository, notifier Notifier, auditor Auditor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:     repo,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
	}
}

// CreateContact handles POST /api/contact requests
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode contact request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.repo.CreateContact(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to store contact message", "error", err)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		return
	}

	h.logger.Info("contact message received", "id", msg.ID)

	if h.auditor != nil {
		if err := h.auditor.LogContactReceived(r.Context(), msg.ID, msg.Email, msg.Subject); err != nil {
			h.logger.Warn("failed to audit contact message", "id", msg.ID, "error", err)
		}
	}
	if h.notifier != nil {
		if err := h.notifier.NotifyContactReceived(r.Context(), notify.ContactNotice{
			Name:    msg.Name,
			Email:   msg.Email,
			Phone:   msg.Phone,
			Subject: msg.Subject,
			Message: msg.Message,
		}); err != nil {
			h.logger.Warn("contact notification failed", "id", msg.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// Subscribe handles POST /api/newsletter requests. Repeat subscriptions are
// answered with 200 and no second welcome email.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !booking.ValidEmail(email) {
		http.Error(w, ErrInvalidEmail.Error(), http.StatusBadRequest)
		return
	}

	sub, created, err := h.repo.Subscribe(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to subscribe", "error", err)
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		if h.auditor != nil {
			if err := h.auditor.LogNewsletterSubscribed(r.Context(), email); err != nil {
				h.logger.Warn("failed to audit subscription", "error", err)
			}
		}
		if h.notifier != nil {
			if err := h.notifier.NotifySubscribed(r.Context(), email); err != nil {
				h.logger.Warn("welcome email failed", "error", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(sub)
}

// ListContactsResponse is the response for listing contact messages
type ListContactsResponse struct {
	Messages []*ContactMessage `json:"messages"`
	Count    int               `json:"count"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

// ListContacts handles GET /admin/contacts requests
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	msgs, err := h.repo.ListContacts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list contact messages", "error", err)
		http.Error(w, "failed to list contact messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListContactsResponse{
		Messages: msgs,
		Count:    len(msgs),
		Offset:   filter.Offset,
		Limit:    filter.Limit,
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrMessageTooLong)
}
