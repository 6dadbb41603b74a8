package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-db"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

func (c *Cockroach) CreateProgram(ctx context.Context, in types.CreateProgram) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO programs (id, slug, title, description, coach_id, modules, max_students)
		VALUES (@program_id, @slug, @title, @description, @coach_id, @modules, @max_students)
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"program_id":   id.Generate(),
		"slug":         in.Slug,
		"title":        in.Title,
		"description":  in.Description,
		"coach_id":     in.LoggedInUserID(),
		"modules":      in.Modules,
		"max_students": in.MaxStudents,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert program: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if isUniqueViolation(err) {
		return out, errs.NewAlreadyExistsError("Slug", "A program with that slug already exists")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted program: %w", err)
	}

	return out, nil
}

// ProgramBySlug returns the active program for the slug together with its
// upcoming cohorts (soonest first) and their current enrollment counts.
func (c *Cockroach) ProgramBySlug(ctx context.Context, slug string) (types.Program, error) {
	var out types.Program

	const q = `
		SELECT programs.*
		FROM programs
		WHERE programs.slug = @slug
			AND programs.is_active
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"slug": slug,
	})
	if err != nil {
		return out, fmt.Errorf("sql select program: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Program])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("program not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect program: %w", err)
	}

	out.UpcomingCohorts, err = c.upcomingCohorts(ctx, out.ID)
	if err != nil {
		return out, err
	}

	return out, nil
}

func (c *Cockroach) upcomingCohorts(ctx context.Context, programID string) ([]types.Cohort, error) {
	const q = `
		SELECT cohorts.*,
			(
				SELECT COUNT(*)
				FROM enrollments
				WHERE enrollments.cohort_id = cohorts.id
			) AS enrolled_count
		FROM cohorts
		WHERE cohorts.program_id = @program_id
			AND cohorts.status = @status
			AND cohorts.start_date >= now()
		ORDER BY cohorts.start_date ASC
	`

	args := pgx.StrictNamedArgs{
		"program_id": programID,
		"status":     types.CohortStatusUpcoming,
	}

	cohorts, err := pgxutil.Select(ctx, c.db, q, []any{args}, pgx.RowToStructByNameLax[types.Cohort])
	if err != nil {
		return nil, fmt.Errorf("sql select upcoming cohorts: %w", err)
	}

	return cohorts, nil
}

func (c *Cockroach) Programs(ctx context.Context, in types.ListPrograms) (types.Page[types.Program], error) {
	var out types.Page[types.Program]

	pageArgs, err := ParsePageArgs[time.Time](in.PageArgs)
	if err != nil {
		return out, err
	}

	filters := []string{"programs.is_active"}
	args := pgx.NamedArgs{}

	if pageArgs.After != nil {
		filters = append(filters, "(programs.created_at, programs.id) < (@after_created_at, @after_id)")
		args["after_created_at"] = pageArgs.After.Value
		args["after_id"] = pageArgs.After.ID
	}
	if pageArgs.Before != nil {
		filters = append(filters, "(programs.created_at, programs.id) > (@before_created_at, @before_id)")
		args["before_created_at"] = pageArgs.Before.Value
		args["before_id"] = pageArgs.Before.ID
	}

	var order string
	var limit uint
	if pageArgs.IsBackwards() {
		order = "ORDER BY programs.created_at ASC, programs.id ASC"
		limit = or(pageArgs.Last, defaultPageSize) + 1
	} else {
		order = "ORDER BY programs.created_at DESC, programs.id DESC"
		limit = or(pageArgs.First, defaultPageSize) + 1
	}

	query := fmt.Sprintf(`
		SELECT programs.*
		FROM programs
		%s
		%s
		LIMIT %d`,
		where(filters),
		order,
		limit,
	)

	out.Items, err = pgxutil.Select(ctx, c.db, query, []any{args}, pgx.RowToStructByNameLax[types.Program])
	if err != nil {
		return out, fmt.Errorf("sql select programs: %w", err)
	}

	if err := applyPageInfo(&out, pageArgs, func(p types.Program) Cursor[time.Time] {
		return Cursor[time.Time]{ID: p.ID, Value: p.CreatedAt}
	}); err != nil {
		return out, err
	}

	return out, nil
}

// DeactivateProgram flips is_active off. Programs are never deleted.
func (c *Cockroach) DeactivateProgram(ctx context.Context, programID string) error {
	const q = `
		UPDATE programs
		SET is_active = false,
			updated_at = now()
		WHERE id = @program_id
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"program_id": programID,
	})
	if err != nil {
		return fmt.Errorf("sql deactivate program: %w", err)
	}

	_, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if db.IsNotFoundError(err) {
		return errs.NewNotFoundError("program not found")
	}

	if err != nil {
		return fmt.Errorf("sql collect deactivated program: %w", err)
	}

	return nil
}

// ProgramCoachID is used for ownership checks before mutating a program.
func (c *Cockroach) ProgramCoachID(ctx context.Context, programID string) (string, error) {
	const q = `
		SELECT coach_id
		FROM programs
		WHERE id = @program_id
	`

	args := pgx.StrictNamedArgs{"program_id": programID}
	coachID, err := pgxutil.SelectRow(ctx, c.db, q, []any{args}, pgx.RowTo[string])
	if db.IsNotFoundError(err) {
		return coachID, errs.NewNotFoundError("program not found")
	}

	if err != nil {
		return coachID, fmt.Errorf("sql select program coach_id: %w", err)
	}

	return coachID, nil
}

func (c *Cockroach) CreateCohort(ctx context.Context, in types.CreateCohort) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO cohorts (id, program_id, name, start_date, max_students)
		SELECT @cohort_id, programs.id, @name, @start_date, @max_students
		FROM programs
		WHERE programs.id = @program_id
			AND programs.is_active
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"cohort_id":    id.Generate(),
		"program_id":   in.ProgramID,
		"name":         in.Name,
		"start_date":   in.StartDate,
		"max_students": in.MaxStudents,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert cohort: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("program not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted cohort: %w", err)
	}

	return out, nil
}
