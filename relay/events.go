package relay

import (
	"encoding/json"
	"fmt"
)

// Client -> server events.
const (
	EventJoinConversation  = "join_conversation"
	EventSendMessage       = "send_message"
	EventMarkRead          = "mark_read"
	EventLeaveConversation = "leave_conversation"
)

// Server -> client events.
const (
	EventNewMessage = "new_message"
	EventError      = "error"
)

type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type serverEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeServerEvent(event string, data any) ([]byte, error) {
	b, err := json.Marshal(serverEnvelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("json marshal %s event: %w", event, err)
	}
	return b, nil
}
