package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const (
	maxMessageBytes = 4 << 10
	historyLimit    = 50
	readTimeout     = 5 * time.Minute
)

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string    `json:"type"` // "message", "history", "session", "pong", "error"
	Text      string    `json:"text,omitempty"`
	Role      string    `json:"role,omitempty"`
	Intent    Intent    `json:"intent,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}

// Handler serves the assistant over HTTP and WebSocket.
type Handler struct {
	transcript TranscriptStore
	logger     *logging.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a chat handler. transcript may be nil. allowedOrigins
// restricts WebSocket upgrades; empty or "*" allows any origin.
func NewHandler(transcript TranscriptStore, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		transcript: transcript,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// respond classifies text, records both sides of the exchange and returns
// the assistant's reply.
func (h *Handler) respond(ctx context.Context, sessionID, text string) Message {
	intent := Classify(text)
	reply := Message{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Text:      Reply(intent),
		Intent:    intent,
		Timestamp: time.Now().UTC(),
	}
	if h.transcript != nil {
		if err := h.transcript.Append(ctx, sessionID, Message{Role: "user", Text: text, Intent: intent}); err != nil {
			h.logger.Warn("chat: failed to store inbound message", "session_id", sessionID, "error", err)
		}
		if err := h.transcript.Append(ctx, sessionID, reply); err != nil {
			h.logger.Warn("chat: failed to store reply", "session_id", sessionID, "error", err)
		}
	}
	h.logger.Debug("chat: replied", "session_id", sessionID, "intent", intent)
	return reply
}

// HandleMessage handles POST /api/chat/message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req InboundMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	reply := h.respond(r.Context(), req.SessionID, req.Text)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(OutboundMessage{
		Type:      "message",
		Role:      reply.Role,
		Text:      reply.Text,
		Intent:    reply.Intent,
		SessionID: req.SessionID,
		Timestamp: reply.Timestamp.Format(time.RFC3339),
	})
}

// HandleHistory handles GET /api/chat/history?session=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	msgs := []Message{}
	if h.transcript != nil {
		var err error
		msgs, err = h.transcript.List(r.Context(), sessionID, historyLimit)
		if err != nil {
			h.logger.Error("chat: failed to load history", "error", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"messages": msgs})
}

// HandleWebSocket handles GET /api/chat/ws. The socket answers each
// "message" frame with one assistant reply.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("chat: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	ctx := r.Context()

	if err := conn.WriteJSON(OutboundMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}
	if h.transcript != nil {
		if msgs, err := h.transcript.List(ctx, sessionID, historyLimit); err == nil && len(msgs) > 0 {
			if err := conn.WriteJSON(OutboundMessage{Type: "history", Messages: msgs}); err != nil {
				return
			}
		}
	}

	conn.SetReadLimit(maxMessageBytes)
	h.logger.Info("chat: connection opened", "session_id", sessionID)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("chat: connection closed", "session_id", sessionID, "error", err)
			}
			return
		}

		var out OutboundMessage
		switch {
		case msg.Type == "ping":
			out = OutboundMessage{Type: "pong"}
		case msg.Type == "message" && strings.TrimSpace(msg.Text) != "":
			reply := h.respond(ctx, sessionID, msg.Text)
			out = OutboundMessage{
				Type:      "message",
				Role:      reply.Role,
				Text:      reply.Text,
				Intent:    reply.Intent,
				SessionID: sessionID,
				Timestamp: reply.Timestamp.Format(time.RFC3339),
			}
		default:
			continue
		}
		if err := conn.WriteJSON(out); err != nil {
			h.logger.Debug("chat: write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}
