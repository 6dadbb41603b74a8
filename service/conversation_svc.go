package service

import (
	"context"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
)

// ConversationFromParticipants finds the caller's existing direct
// conversation with the other user.
func (svc *Service) ConversationFromParticipants(ctx context.Context, otherUserID string) (types.Conversation, error) {
	var out types.Conversation

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Cockroach.ConversationFromParticipants(ctx, loggedInUser.ID, otherUserID)
}

func (svc *Service) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Created, error) {
	var out types.Created

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	if in.OtherUserID == loggedInUser.ID {
		return out, errs.NewInvalidArgumentError("OtherUserID", "cannot start a conversation with yourself")
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.CreateConversation(ctx, in)
}

func (svc *Service) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.Conversation(ctx, in)
}

func (svc *Service) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	if err := in.PageArgs.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.Conversations(ctx, in)
}

func (svc *Service) MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error {
	if err := in.Validate(); err != nil {
		return err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.MarkConversationRead(ctx, in)
}
