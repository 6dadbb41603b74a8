package types

import (
	"strings"
	"time"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"studentID"`
	ProgramID      string           `db:"program_id" json:"programID"`
	CoachID        *string          `db:"coach_id" json:"coachID"`
	CohortID       *string          `db:"cohort_id" json:"cohortID"`
	EnrolledAt     time.Time        `db:"enrolled_at" json:"enrolledAt"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Progress       int32            `db:"progress" json:"progress"`
	PaymentStatus  PaymentStatus    `db:"payment_status" json:"paymentStatus"`
	CompletionDate *time.Time       `db:"completion_date" json:"completionDate"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updatedAt"`

	ProgramTitle   string   `db:"program_title" json:"programTitle"`
	ProgramSlug    string   `db:"program_slug" json:"programSlug"`
	ProgramModules []string `db:"program_modules" json:"-"`

	Modules []EnrollmentModule `db:"-" json:"modules,omitempty"`
}

type ModuleStatus string

const (
	ModuleStatusCompleted ModuleStatus = "Completed"
	ModuleStatusUpcoming  ModuleStatus = "Upcoming"
)

type EnrollmentModule struct {
	Title  string       `json:"title"`
	Status ModuleStatus `json:"status"`
}

type EnrolledProgram struct {
	EnrollmentID string `json:"enrollmentID"`
	ProgramID    string `json:"programID"`
}

type EnrollInProgram struct {
	ProgramSlug string
	CoachID     *string
	Date        *time.Time

	loggedInUserID string
	programID      string
	cohortID       *string
}

func (in *EnrollInProgram) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in EnrollInProgram) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *EnrollInProgram) SetProgramID(programID string) {
	in.programID = programID
}

func (in EnrollInProgram) ProgramID() string {
	return in.programID
}

func (in *EnrollInProgram) SetCohortID(cohortID *string) {
	in.cohortID = cohortID
}

func (in EnrollInProgram) CohortID() *string {
	return in.cohortID
}

func (in *EnrollInProgram) Validate() error {
	v := validator.New()

	in.ProgramSlug = strings.TrimSpace(strings.ToLower(in.ProgramSlug))

	if in.ProgramSlug == "" {
		v.AddError("ProgramSlug", "Program slug is required")
	}

	if in.CoachID != nil && !id.Valid(*in.CoachID) {
		v.AddError("CoachID", "Coach ID is invalid")
	}

	return v.AsError()
}

type UpdateEnrollmentProgress struct {
	EnrollmentID string
	Progress     int32

	loggedInUserID string
}

func (in *UpdateEnrollmentProgress) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in UpdateEnrollmentProgress) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *UpdateEnrollmentProgress) Validate() error {
	v := validator.New()

	if in.EnrollmentID == "" {
		v.AddError("EnrollmentID", "Enrollment ID is required")
	}
	if in.EnrollmentID != "" && !id.Valid(in.EnrollmentID) {
		v.AddError("EnrollmentID", "Enrollment ID is invalid")
	}

	return v.AsError()
}

type ListEnrollments struct {
	Status *EnrollmentStatus

	loggedInUserID string
}

func (in *ListEnrollments) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListEnrollments) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListEnrollments) Validate() error {
	v := validator.New()

	if in.Status != nil {
		switch *in.Status {
		case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		default:
			v.AddError("Status", "Status is invalid")
		}
	}

	return v.AsError()
}
