package service

import (
	"context"

	"github.com/nebulahq/nebula/types"
)

func (svc *Service) CreateUser(ctx context.Context, in types.CreateUser) (types.User, error) {
	var out types.User

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Cockroach.CreateUser(ctx, in)
}

// User is a plain profile lookup. The relay uses it to resolve
// handshake tokens, so it does not require a logged-in context.
func (svc *Service) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Cockroach.User(ctx, in)
}
