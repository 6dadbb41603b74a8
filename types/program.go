package types

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

var reSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Program struct {
	ID                 string    `db:"id" json:"id"`
	Slug               string    `db:"slug" json:"slug"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	CoachID            string    `db:"coach_id" json:"coachID"`
	Modules            []string  `db:"modules" json:"modules"`
	MaxStudents        *int32    `db:"max_students" json:"maxStudents"`
	CurrentEnrollments int32     `db:"current_enrollments" json:"currentEnrollments"`
	IsActive           bool      `db:"is_active" json:"isActive"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`

	UpcomingCohorts []Cohort `db:"-" json:"upcomingCohorts,omitempty"`
}

// Full reports whether the program itself is at its own enrollment cap,
// independently of any cohort seats.
func (p Program) Full() bool {
	return p.MaxStudents != nil && p.CurrentEnrollments >= *p.MaxStudents
}

type CohortStatus string

const (
	CohortStatusUpcoming  CohortStatus = "UPCOMING"
	CohortStatusActive    CohortStatus = "ACTIVE"
	CohortStatusCompleted CohortStatus = "COMPLETED"
	CohortStatusCancelled CohortStatus = "CANCELLED"
)

type Cohort struct {
	ID          string       `db:"id" json:"id"`
	ProgramID   string       `db:"program_id" json:"programID"`
	Name        string       `db:"name" json:"name"`
	Status      CohortStatus `db:"status" json:"status"`
	StartDate   time.Time    `db:"start_date" json:"startDate"`
	MaxStudents *int32       `db:"max_students" json:"maxStudents"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`

	EnrolledCount int64 `db:"enrolled_count" json:"enrolledCount"`
}

// HasSeat reports whether the cohort can take one more enrollment.
func (c Cohort) HasSeat() bool {
	return c.MaxStudents == nil || c.EnrolledCount < int64(*c.MaxStudents)
}

type CreateProgram struct {
	Slug        string
	Title       string
	Description string
	Modules     []string
	MaxStudents *int32

	loggedInUserID string
}

func (in *CreateProgram) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateProgram) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateProgram) Validate() error {
	v := validator.New()

	in.Slug = strings.TrimSpace(strings.ToLower(in.Slug))
	in.Title = strings.TrimSpace(in.Title)

	if in.Slug == "" {
		v.AddError("Slug", "Slug is required")
	}
	if in.Slug != "" && !reSlug.MatchString(in.Slug) {
		v.AddError("Slug", "Slug must be lowercase words separated by dashes")
	}

	if in.Title == "" {
		v.AddError("Title", "Title is required")
	}
	if utf8.RuneCountInString(in.Title) > 140 {
		v.AddError("Title", "Title must be at most 140 characters")
	}

	for _, m := range in.Modules {
		if strings.TrimSpace(m) == "" {
			v.AddError("Modules", "Module titles cannot be blank")
			break
		}
	}

	if in.MaxStudents != nil && *in.MaxStudents < 1 {
		v.AddError("MaxStudents", "Max students must be greater than 0")
	}

	return v.AsError()
}

type RetrieveProgram struct {
	Slug string
}

func (in *RetrieveProgram) Validate() error {
	v := validator.New()

	in.Slug = strings.TrimSpace(strings.ToLower(in.Slug))

	if in.Slug == "" {
		v.AddError("Slug", "Slug is required")
	}

	return v.AsError()
}

type ListPrograms struct {
	PageArgs PageArgs
}

type DeactivateProgram struct {
	ProgramID string

	loggedInUserID string
}

func (in *DeactivateProgram) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in DeactivateProgram) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *DeactivateProgram) Validate() error {
	v := validator.New()

	if in.ProgramID == "" {
		v.AddError("ProgramID", "Program ID is required")
	}
	if in.ProgramID != "" && !id.Valid(in.ProgramID) {
		v.AddError("ProgramID", "Program ID is invalid")
	}

	return v.AsError()
}

type CreateCohort struct {
	ProgramID   string
	Name        string
	StartDate   time.Time
	MaxStudents *int32

	loggedInUserID string
}

func (in *CreateCohort) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateCohort) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateCohort) Validate() error {
	v := validator.New()

	in.Name = strings.TrimSpace(in.Name)

	if in.ProgramID == "" {
		v.AddError("ProgramID", "Program ID is required")
	}
	if in.ProgramID != "" && !id.Valid(in.ProgramID) {
		v.AddError("ProgramID", "Program ID is invalid")
	}

	if in.Name == "" {
		v.AddError("Name", "Name is required")
	}

	if in.StartDate.IsZero() {
		v.AddError("StartDate", "Start date is required")
	}
	if !in.StartDate.IsZero() && !in.StartDate.After(time.Now()) {
		v.AddError("StartDate", "Start date must be in the future")
	}

	if in.MaxStudents != nil && *in.MaxStudents < 1 {
		v.AddError("MaxStudents", "Max students must be greater than 0")
	}

	return v.AsError()
}
