package service

import (
	"context"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/cockroach"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
)

// EnrollInProgram validates the student's attempt to join a program,
// picks the soonest upcoming cohort with a free seat (when the program has
// cohorts at all) and creates the enrollment atomically with the program's
// counter increment. The store re-asserts capacity inside the transaction,
// so the pre-checks here only exist to fail early with friendly messages.
func (svc *Service) EnrollInProgram(ctx context.Context, in types.EnrollInProgram) (types.EnrolledProgram, error) {
	var out types.EnrolledProgram

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	program, err := svc.Cockroach.ProgramBySlug(ctx, in.ProgramSlug)
	if err != nil {
		svc.countEnrollment("error")
		return out, err
	}

	in.SetProgramID(program.ID)

	if len(program.UpcomingCohorts) > 0 {
		cohort, ok := firstCohortWithSeat(program.UpcomingCohorts)
		if !ok {
			svc.countEnrollment("cohorts_full")
			return out, cockroach.ErrCohortsFull
		}
		in.SetCohortID(&cohort.ID)
	}

	exists, err := svc.Cockroach.EnrollmentExists(ctx, loggedInUser.ID, program.ID)
	if err != nil {
		svc.countEnrollment("error")
		return out, err
	}
	if exists {
		svc.countEnrollment("duplicate")
		return out, cockroach.ErrAlreadyEnrolled
	}

	if program.Full() {
		svc.countEnrollment("program_full")
		return out, cockroach.ErrProgramFull
	}

	created, err := svc.Cockroach.CreateEnrollment(ctx, in)
	if err != nil {
		svc.countEnrollment("error")
		return out, err
	}

	svc.countEnrollment("enrolled")

	out.EnrollmentID = created.ID
	out.ProgramID = program.ID
	return out, nil
}

func firstCohortWithSeat(cohorts []types.Cohort) (types.Cohort, bool) {
	for _, cohort := range cohorts {
		if cohort.HasSeat() {
			return cohort, true
		}
	}
	return types.Cohort{}, false
}

func (svc *Service) countEnrollment(outcome string) {
	if svc.Metrics != nil {
		svc.Metrics.EnrollmentsTotal.WithLabelValues(outcome).Inc()
	}
}

func (svc *Service) UpdateEnrollmentProgress(ctx context.Context, in types.UpdateEnrollmentProgress) (types.Enrollment, error) {
	var out types.Enrollment

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)
	in.Progress = clampProgress(in.Progress)

	return svc.Cockroach.UpdateEnrollmentProgress(ctx, in)
}

func clampProgress(progress int32) int32 {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// StudentEnrollments lists the logged-in student's enrollments with a
// per-module status projected from the stored progress percentage.
func (svc *Service) StudentEnrollments(ctx context.Context, in types.ListEnrollments) ([]types.Enrollment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	enrollments, err := svc.Cockroach.StudentEnrollments(ctx, in)
	if err != nil {
		return nil, err
	}

	for i := range enrollments {
		enrollments[i].Modules = moduleStatuses(enrollments[i].ProgramModules, enrollments[i].Progress)
	}

	return enrollments, nil
}

// moduleStatuses marks module k of n completed once
// progress >= k/n*100, keeping the rest upcoming.
func moduleStatuses(modules []string, progress int32) []types.EnrollmentModule {
	if len(modules) == 0 {
		return nil
	}

	out := make([]types.EnrollmentModule, len(modules))
	n := float64(len(modules))
	for i, title := range modules {
		threshold := float64(i+1) / n * 100
		status := types.ModuleStatusUpcoming
		if float64(progress) >= threshold {
			status = types.ModuleStatusCompleted
		}
		out[i] = types.EnrollmentModule{
			Title:  title,
			Status: status,
		}
	}

	return out
}
