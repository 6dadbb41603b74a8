package service

import (
	"context"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
)

func (svc *Service) CreateProgram(ctx context.Context, in types.CreateProgram) (types.Created, error) {
	var out types.Created

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	if !loggedInUser.IsCoachOrAdmin() {
		return out, errs.NewPermissionDeniedError("only coaches can create programs")
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.CreateProgram(ctx, in)
}

func (svc *Service) Program(ctx context.Context, in types.RetrieveProgram) (types.Program, error) {
	var out types.Program

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Cockroach.ProgramBySlug(ctx, in.Slug)
}

func (svc *Service) Programs(ctx context.Context, in types.ListPrograms) (types.Page[types.Program], error) {
	var out types.Page[types.Program]

	if err := in.PageArgs.Validate(); err != nil {
		return out, err
	}

	return svc.Cockroach.Programs(ctx, in)
}

func (svc *Service) DeactivateProgram(ctx context.Context, in types.DeactivateProgram) error {
	if err := in.Validate(); err != nil {
		return err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	coachID, err := svc.Cockroach.ProgramCoachID(ctx, in.ProgramID)
	if err != nil {
		return err
	}

	if coachID != loggedInUser.ID && loggedInUser.Role != types.UserRoleAdmin {
		return errs.NewPermissionDeniedError("only the program's coach or an admin can deactivate it")
	}

	return svc.Cockroach.DeactivateProgram(ctx, in.ProgramID)
}

func (svc *Service) CreateCohort(ctx context.Context, in types.CreateCohort) (types.Created, error) {
	var out types.Created

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	coachID, err := svc.Cockroach.ProgramCoachID(ctx, in.ProgramID)
	if err != nil {
		return out, err
	}

	if coachID != loggedInUser.ID && loggedInUser.Role != types.UserRoleAdmin {
		return out, errs.NewPermissionDeniedError("only the program's coach or an admin can add cohorts")
	}

	return svc.Cockroach.CreateCohort(ctx, in)
}
