package types

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

type Message struct {
	ID             string      `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversationID"`
	SenderID       string      `db:"sender_id" json:"senderID"`
	Content        string      `db:"content" json:"content"`
	Type           MessageType `db:"type" json:"type"`
	IsRead         bool        `db:"is_read" json:"isRead"`
	ReadAt         *time.Time  `db:"read_at" json:"readAt"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

type CreateMessage struct {
	ConversationID string
	Content        string
	Type           MessageType

	loggedInUserID string
}

func (in *CreateMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateMessage) Validate() error {
	v := validator.New()

	in.Content = strings.TrimSpace(in.Content)

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if in.ConversationID != "" && !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	if in.Content == "" {
		v.AddError("Content", "Content is required")
	}
	if utf8.RuneCountInString(in.Content) > 1000 {
		v.AddError("Content", "Content must be at most 1000 characters")
	}

	if in.Type == "" {
		in.Type = MessageTypeText
	}
	switch in.Type {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
	default:
		v.AddError("Type", "Type is invalid")
	}

	return v.AsError()
}

type ListMessages struct {
	ConversationID string
	PageArgs       PageArgs

	loggedInUserID string
}

func (in *ListMessages) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListMessages) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListMessages) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if in.ConversationID != "" && !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
