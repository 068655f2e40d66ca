package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, hashed_password, first_name, last_name, is_admin, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

const createUser = `
INSERT INTO users (email, hashed_password, first_name, last_name, is_admin)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	IsAdmin        bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Email, arg.HashedPassword, arg.FirstName, arg.LastName, arg.IsAdmin,
	))
}

const getUserByEmail = `
SELECT ` + userColumns + ` FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT ` + userColumns + ` FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}
