package types

import (
	"time"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleCoach   UserRole = "coach"
	UserRoleAdmin   UserRole = "admin"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	Role      UserRole  `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (u User) IsCoachOrAdmin() bool {
	return u.Role == UserRoleCoach || u.Role == UserRoleAdmin
}

type RetrieveUser struct {
	UserID string
}

func (in *RetrieveUser) Validate() error {
	v := validator.New()

	if in.UserID == "" {
		v.AddError("UserID", "User ID is required")
	}
	if in.UserID != "" && !id.Valid(in.UserID) {
		v.AddError("UserID", "User ID is invalid")
	}

	return v.AsError()
}

type CreateUser struct {
	Email    string
	Username string
	Role     UserRole
}

func (in *CreateUser) Validate() error {
	v := validator.New()

	if in.Email == "" {
		v.AddError("Email", "Email is required")
	}
	if in.Username == "" {
		v.AddError("Username", "Username is required")
	}

	if in.Role == "" {
		in.Role = UserRoleStudent
	}
	switch in.Role {
	case UserRoleStudent, UserRoleCoach, UserRoleAdmin:
	default:
		v.AddError("Role", "Role is invalid")
	}

	return v.AsError()
}
