package service

import (
	"context"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/event"
	"github.com/nebulahq/nebula/types"
)

// CreateMessage persists the message and fans the event out over the bus so
// every relay process can broadcast it to connected participants.
func (svc *Service) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Cockroach.CreateMessage(ctx, in)
	if err != nil {
		return out, err
	}

	if svc.Events != nil {
		msg := out
		svc.background(func(ctx context.Context) error {
			return svc.Events.PublishMessageCreated(ctx, event.MessageCreated{
				Origin:  svc.origin,
				Message: msg,
			})
		})
	}

	if svc.Metrics != nil {
		svc.Metrics.MessagesTotal.Inc()
	}

	return out, nil
}

func (svc *Service) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	if err := in.Validate(); err != nil {
		return out, err
	}

	if err := in.PageArgs.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	isParticipant, err := svc.Cockroach.IsParticipant(ctx, in.ConversationID, loggedInUser.ID)
	if err != nil {
		return out, err
	}

	if !isParticipant {
		return out, errs.NewPermissionDeniedError("you are not a participant of this conversation")
	}

	return svc.Cockroach.Messages(ctx, in)
}
