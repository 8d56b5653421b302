package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message types recorded in a conversation.
const (
	TypeText               = "text"
	TypeAppointmentCreated = "appointment_created"
	TypeEmailRequired      = "email_required"
	TypeValidationFailed   = "validation_failed"
	TypeBookingFailed      = "booking_failed"
)

// Message is a single entry of a conversation. It is never modified once appended.
type Message struct {
	Timestamp   time.Time         `json:"timestamp"`
	Role        Role              `json:"role"`
	Content     string            `json:"content"`
	MessageType string            `json:"message_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Session is the unit of persistence: a session id plus its ordered messages.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m
		if m.Metadata != nil {
			md := make(map[string]string, len(m.Metadata))
			for k, v := range m.Metadata {
				md[k] = v
			}
			out.Messages[i].Metadata = md
		}
	}
	return &out
}

// SessionInfo is the index entry kept for every stored session.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Info builds the index entry describing the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID:    s.SessionID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}

// ExtractedFacts is derived from a session's messages on demand and never stored.
type ExtractedFacts struct {
	UserName         string            `json:"user_name,omitempty"`
	UserEmail        string            `json:"user_email,omitempty"`
	ServiceTypes     []string          `json:"service_types"`
	AppointmentCount int               `json:"appointment_count"`
	LastAppointment  map[string]string `json:"last_appointment,omitempty"`
}

// SearchResult is a message matching a history search together with its neighbours.
type SearchResult struct {
	Message        Message   `json:"matching_message"`
	Context        []Message `json:"context"`
	RelevanceScore float64   `json:"relevance_score"`
	Position       int       `json:"position_in_conversation"`
	TotalMessages  int       `json:"total_messages"`
}
