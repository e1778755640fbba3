package wa

import "time"

// Webhook event names emitted by the client, 1:1 with the outbound
// webhook contract.
const (
	EventMessageReceived    = "message_received"
	EventMessageSent        = "message_sent"
	EventClientConnected    = "client_connected"
	EventClientDisconnected = "client_disconnected"
	EventSessionQR          = "session_qr"
)

// Message is a normalized inbound text message.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	FromMe    bool      `json:"from_me"`
	IsStatus  bool      `json:"is_status"`
	PushName  string    `json:"push_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is a normalized client event delivered to subscribers.
// Message is non-nil only for EventMessageReceived.
type Event struct {
	Name    string
	Data    map[string]any
	Message *Message
}

// Status describes the current session state.
type Status struct {
	Connected bool      `json:"connected"`
	LoggedIn  bool      `json:"logged_in"`
	JID       string    `json:"jid,omitempty"`
	PushName  string    `json:"push_name,omitempty"`
	QRPending bool      `json:"qr_pending"`
	LastQRAt  time.Time `json:"last_qr_at,omitzero"`
}
