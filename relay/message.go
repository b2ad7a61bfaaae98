package relay

import (
	"strings"
	"time"
)

// Role identifies who originated a message or owns a connection.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleSupervisor Role = "SUPERVISOR"
	RoleServer     Role = "SERVER"
)

// MessageType is the kind of a routed message.
type MessageType string

const (
	TypeConnect     MessageType = "CONNECT"
	TypeMessage     MessageType = "MESSAGE"
	TypeDisconnect  MessageType = "DISCONNECT"
	TypeError       MessageType = "ERROR"
	TypeQueueUpdate MessageType = "SESSION_QUEUE_UPDATE"
)

// Message is the transport-agnostic routing unit exchanged between the
// router and both transport handlers. Values are immutable once built;
// each transport serializes them to its own wire format.
type Message struct {
	SessionID string                 `json:"sessionId,omitempty"`
	From      Role                   `json:"from"`
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(sessionID string, from Role, typ MessageType, payload map[string]interface{}) Message {
	return Message{
		SessionID: sessionID,
		From:      from,
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// ErrorMessage builds a server-originated ERROR message for one connection.
func ErrorMessage(sessionID, text string) Message {
	return NewMessage(sessionID, RoleServer, TypeError, map[string]interface{}{
		"error": text,
	})
}

// ConnectResponseMessage builds the server acknowledgment sent after a
// session is created for a freshly connected client.
func ConnectResponseMessage(sessionID string) Message {
	return NewMessage(sessionID, RoleServer, TypeConnect, map[string]interface{}{
		"sessionId": sessionID,
	})
}

// DisconnectMessage notifies the counterpart that the other party left.
func DisconnectMessage(sessionID string, who Role) Message {
	return NewMessage(sessionID, RoleServer, TypeDisconnect, map[string]interface{}{
		"disconnected": string(who),
	})
}

// HasValidSessionID reports whether the message carries a usable session id.
func (m Message) HasValidSessionID() bool {
	return nonBlank(m.SessionID)
}

func nonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// HasValidFrom reports whether the sender is an end-user role. Server-built
// messages (ERROR, SESSION_QUEUE_UPDATE, CONNECT responses) carry
// RoleServer and are deliberately invalid under this predicate: it guards
// end-user-originated traffic only. The comparison is case-sensitive.
func (m Message) HasValidFrom() bool {
	return m.From == RoleClient || m.From == RoleSupervisor
}
