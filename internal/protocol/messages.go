package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role identifies who authored a transcript turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is one transcript entry. Turns are never mutated after being appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemTurn(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }
func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// InitializeRequest is the optional body of POST /initialize.
type InitializeRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// InitializeResponse carries the opening assistant message.
type InitializeResponse struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse carries the assistant reply for one submitted message.
type ChatResponse struct {
	Response       string `json:"response"`
	SessionID      string `json:"session_id"`
	TurnCount      int    `json:"turn_count"`
	TurnsRemaining int    `json:"turns_remaining"`
}

// SessionSnapshot is the read-only view of one session.
type SessionSnapshot struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	TurnCount      int    `json:"turn_count"`
	TurnLimit      int    `json:"turn_limit"`
	TurnsRemaining int    `json:"turns_remaining"`
	Transcript     []Turn `json:"transcript"`
}

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeChatMessage    MessageType = "chat_message"
	TypeRestart        MessageType = "restart"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientChatMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type ClientRestart struct {
	Type MessageType `json:"type"`
}

type AssistantReply struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Response       string      `json:"response"`
	TurnCount      int         `json:"turn_count"`
	TurnsRemaining int         `json:"turns_remaining"`
	LimitReached   bool        `json:"limit_reached"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes one websocket text frame. A frame without a
// type but with a message field is treated as a chat message.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChatMessage, "":
		var msg ClientChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Message) == "" {
			if env.Type == "" {
				return nil, ErrUnsupportedType
			}
			return nil, errors.New("invalid chat_message")
		}
		msg.Type = TypeChatMessage
		return msg, nil
	case TypeRestart:
		return ClientRestart{Type: TypeRestart}, nil
	default:
		return nil, ErrUnsupportedType
	}
}
