package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-db"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

var (
	ErrAlreadyEnrolled = errs.NewAlreadyExistsError("Enrollment", "You are already enrolled in this program")
	ErrProgramFull     = errs.NewInvalidArgumentError("Program", "This program has reached its maximum enrollment capacity")
	ErrCohortsFull     = errs.NewInvalidArgumentError("Cohort", "All upcoming cohorts for this program are currently full")
)

func (c *Cockroach) EnrollmentExists(ctx context.Context, studentID, programID string) (bool, error) {
	var exists bool

	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM enrollments
			WHERE student_id = @student_id
				AND program_id = @program_id
		)
	`

	err := c.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"student_id": studentID,
		"program_id": programID,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sql check enrollment exists: %w", err)
	}

	return exists, nil
}

// CreateEnrollment inserts the enrollment row and bumps the program's
// denormalized counter in one transaction. Capacity is re-asserted here
// rather than trusted from the caller's pre-checks: two enrollments racing
// the last seat serialize at the database and the loser gets a capacity
// error instead of over-committing.
func (c *Cockroach) CreateEnrollment(ctx context.Context, in types.EnrollInProgram) (types.Created, error) {
	var out types.Created
	return out, c.db.RunTx(ctx, func(ctx context.Context) error {
		enrollment, err := c.createEnrollment(ctx, in)
		if err != nil {
			return err
		}

		if cohortID := in.CohortID(); cohortID != nil {
			if err := c.assertCohortSeat(ctx, *cohortID); err != nil {
				return err
			}
		}

		if err := c.incrementProgramEnrollments(ctx, in.ProgramID()); err != nil {
			return err
		}

		out = enrollment
		return nil
	})
}

func (c *Cockroach) createEnrollment(ctx context.Context, in types.EnrollInProgram) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO enrollments (id, student_id, program_id, coach_id, cohort_id, enrolled_at)
		VALUES (@enrollment_id, @student_id, @program_id, @coach_id, @cohort_id, COALESCE(@enrolled_at, now()))
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.NamedArgs{
		"enrollment_id": id.Generate(),
		"student_id":    in.LoggedInUserID(),
		"program_id":    in.ProgramID(),
		"coach_id":      in.CoachID,
		"cohort_id":     in.CohortID(),
		"enrolled_at":   in.Date,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert enrollment: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if isUniqueViolation(err) {
		return out, ErrAlreadyEnrolled
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted enrollment: %w", err)
	}

	return out, nil
}

// assertCohortSeat counts the cohort's enrollments inside the transaction,
// including the row just inserted, and fails when the cap is exceeded.
func (c *Cockroach) assertCohortSeat(ctx context.Context, cohortID string) error {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE cohort_id = @cohort_id) AS enrolled,
			cohorts.max_students
		FROM cohorts
		WHERE cohorts.id = @cohort_id
	`

	var enrolled int64
	var maxStudents *int32
	err := c.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"cohort_id": cohortID,
	}).Scan(&enrolled, &maxStudents)
	if db.IsNotFoundError(err) {
		return errs.NewNotFoundError("cohort not found")
	}

	if err != nil {
		return fmt.Errorf("sql count cohort enrollments: %w", err)
	}

	if maxStudents != nil && enrolled > int64(*maxStudents) {
		return ErrCohortsFull
	}

	return nil
}

func (c *Cockroach) incrementProgramEnrollments(ctx context.Context, programID string) error {
	const q = `
		UPDATE programs
		SET current_enrollments = current_enrollments + 1,
			updated_at = now()
		WHERE id = @program_id
			AND (max_students IS NULL OR current_enrollments < max_students)
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"program_id": programID,
	})
	if err != nil {
		return fmt.Errorf("sql increment program enrollments: %w", err)
	}

	_, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if db.IsNotFoundError(err) {
		return ErrProgramFull
	}

	if err != nil {
		return fmt.Errorf("sql collect incremented program: %w", err)
	}

	return nil
}

// UpdateEnrollmentProgress stores the clamped progress. COMPLETED is sticky:
// dropping below 100 clears the completion date but never reverts the status.
func (c *Cockroach) UpdateEnrollmentProgress(ctx context.Context, in types.UpdateEnrollmentProgress) (types.Enrollment, error) {
	var out types.Enrollment

	const q = `
		UPDATE enrollments
		SET progress = @progress,
			status = CASE WHEN @completed THEN @status_completed ELSE status END,
			completion_date = CASE WHEN @completed THEN COALESCE(completion_date, now()) ELSE NULL END,
			updated_at = now()
		WHERE id = @enrollment_id
			AND student_id = @student_id
		RETURNING enrollments.*
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"enrollment_id":    in.EnrollmentID,
		"student_id":       in.LoggedInUserID(),
		"progress":         in.Progress,
		"completed":        in.Progress >= 100,
		"status_completed": types.EnrollmentStatusCompleted,
	})
	if err != nil {
		return out, fmt.Errorf("sql update enrollment progress: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Enrollment])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("enrollment not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect updated enrollment: %w", err)
	}

	return out, nil
}

func (c *Cockroach) StudentEnrollments(ctx context.Context, in types.ListEnrollments) ([]types.Enrollment, error) {
	filters := []string{"enrollments.student_id = @student_id"}
	args := pgx.NamedArgs{
		"student_id": in.LoggedInUserID(),
	}

	if in.Status != nil {
		filters = append(filters, "enrollments.status = @status")
		args["status"] = *in.Status
	}

	query := fmt.Sprintf(`
		SELECT enrollments.*,
			programs.title AS program_title,
			programs.slug AS program_slug,
			programs.modules AS program_modules
		FROM enrollments
		INNER JOIN programs ON programs.id = enrollments.program_id
		%s
		ORDER BY enrollments.enrolled_at DESC, enrollments.id DESC`,
		where(filters),
	)

	enrollments, err := pgxutil.Select(ctx, c.db, query, []any{args}, pgx.RowToStructByNameLax[types.Enrollment])
	if err != nil {
		return nil, fmt.Errorf("sql select student enrollments: %w", err)
	}

	return enrollments, nil
}

// ProgramEnrollmentCount reads the denormalized counter.
func (c *Cockroach) ProgramEnrollmentCount(ctx context.Context, programID string) (int32, error) {
	const q = `
		SELECT current_enrollments
		FROM programs
		WHERE id = @program_id
	`

	args := pgx.StrictNamedArgs{"program_id": programID}
	count, err := pgxutil.SelectRow(ctx, c.db, q, []any{args}, pgx.RowTo[int32])
	if db.IsNotFoundError(err) {
		return count, errs.NewNotFoundError("program not found")
	}

	if err != nil {
		return count, fmt.Errorf("sql select program enrollment count: %w", err)
	}

	return count, nil
}
