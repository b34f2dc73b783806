package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresRepo stores accounts in Postgres via database/sql (pgx stdlib
// driver). Roles are stored as a JSON document in a text column to keep the
// repo free of driver-specific array types.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id            TEXT PRIMARY KEY,
//	    user_name     TEXT NOT NULL UNIQUE,
//	    email         TEXT NOT NULL DEFAULT '',
//	    first_name    TEXT NOT NULL DEFAULT '',
//	    last_name     TEXT NOT NULL DEFAULT '',
//	    phone         TEXT NOT NULL DEFAULT '',
//	    roles         TEXT NOT NULL DEFAULT '[]',
//	    password_hash TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const userColumns = "id, user_name, email, first_name, last_name, phone, roles, password_hash, created_at, updated_at"

func (r *PostgresRepo) Create(ctx context.Context, u User) error {
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_name) DO NOTHING`,
		u.ID, u.UserName, u.Email, u.FirstName, u.LastName, u.Phone,
		string(roles), u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return err
	}

	// ON CONFLICT swallows the duplicate; surface it as ErrUserExists.
	existing, err := r.FindByUserName(ctx, u.UserName)
	if err != nil {
		return err
	}
	if existing.ID != u.ID {
		return ErrUserExists
	}
	return nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *PostgresRepo) FindByUserName(ctx context.Context, userName string) (User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(user_name) = lower($1)", userName)
	return scanUser(row)
}

func (r *PostgresRepo) Update(ctx context.Context, u User) error {
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, phone = $5,
		    roles = $6, password_hash = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone,
		string(roles), u.PasswordHash, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY user_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var roles string
	err := row.Scan(
		&u.ID, &u.UserName, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
		&roles, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		// A corrupt roles column grants nothing.
		u.Roles = nil
	}
	return u, nil
}
