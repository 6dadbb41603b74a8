package types

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

type Conversation struct {
	ID              string           `db:"id" json:"id"`
	Type            ConversationType `db:"type" json:"type"`
	LastMessage     *string          `db:"last_message" json:"lastMessage"`
	LastMessageTime *time.Time       `db:"last_message_time" json:"lastMessageTime"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updatedAt"`

	Participation *Participant `db:"participation,omitempty" json:"participation,omitempty"`
}

type Participant struct {
	ConversationID string     `db:"conversation_id" json:"conversationID"`
	UserID         string     `db:"user_id" json:"userID"`
	UnreadCount    int32      `db:"unread_count" json:"unreadCount"`
	LastReadAt     *time.Time `db:"last_read_at" json:"lastReadAt"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

type RetrieveConversation struct {
	ConversationID string

	loggedInUserID string
}

func (in *RetrieveConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RetrieveConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RetrieveConversation) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if in.ConversationID != "" && !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}

type CreateConversation struct {
	OtherUserID string
	Content     string

	loggedInUserID string
	conversationID string
}

func (in *CreateConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateConversation) SetConversationID(conversationID string) {
	in.conversationID = conversationID
}

func (in CreateConversation) ConversationID() string {
	return in.conversationID
}

func (in *CreateConversation) Validate() error {
	v := validator.New()

	in.Content = strings.TrimSpace(in.Content)

	if in.OtherUserID == "" {
		v.AddError("OtherUserID", "Other user ID is required")
	}
	if in.OtherUserID != "" && !id.Valid(in.OtherUserID) {
		v.AddError("OtherUserID", "Other user ID is invalid")
	}

	if in.Content == "" {
		v.AddError("Content", "Content is required")
	}
	if utf8.RuneCountInString(in.Content) > 1000 {
		v.AddError("Content", "Content must be at most 1000 characters")
	}

	return v.AsError()
}

type ListConversations struct {
	PageArgs PageArgs

	loggedInUserID string
}

func (in *ListConversations) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListConversations) LoggedInUserID() string {
	return in.loggedInUserID
}

type MarkConversationRead struct {
	ConversationID string

	loggedInUserID string
}

func (in *MarkConversationRead) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in MarkConversationRead) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *MarkConversationRead) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if in.ConversationID != "" && !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
