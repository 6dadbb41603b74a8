package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nicolasparada/go-db"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

func (c *Cockroach) CreateUser(ctx context.Context, in types.CreateUser) (types.User, error) {
	var out types.User

	const q = `
		INSERT INTO users (id, email, username, role)
		VALUES (@user_id, LOWER(@email), @username, @role)
		RETURNING users.*
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":  id.Generate(),
		"email":    in.Email,
		"username": in.Username,
		"role":     in.Role,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if isUniqueViolation(err) {
		return out, errs.NewAlreadyExistsError("User", "A user with that email or username already exists")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted user: %w", err)
	}

	return out, nil
}

func (c *Cockroach) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	const q = `
		SELECT users.*
		FROM users
		WHERE users.id = @user_id
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.UserID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect user: %w", err)
	}

	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
