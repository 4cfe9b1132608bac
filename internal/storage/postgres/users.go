package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/muvico/platform/internal/domain/users"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// UserRepository persists users in Postgres.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a postgres-backed user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, name, password_hash, admin, created_at, updated_at`

func (r *UserRepository) FindByID(ctx context.Context, id string) (users.User, error) {
	var u users.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (users.User, error) {
	var u users.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, user users.User) (users.User, error) {
	now := time.Now().UTC()

	if user.ID == "" {
		const insert = `
            INSERT INTO users (username, name, password_hash, admin, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6)
            RETURNING id
        `
		if err := r.db.QueryRowxContext(ctx, insert,
			user.Username,
			user.Name,
			user.PasswordHash,
			user.Admin,
			now,
			now,
		).Scan(&user.ID); err != nil {
			if isUniqueViolation(err) {
				return users.User{}, users.ErrUsernameExists
			}
			return users.User{}, fmt.Errorf("insert user: %w", err)
		}
		user.CreatedAt = now
		user.UpdatedAt = now
		return user, nil
	}

	const update = `
        UPDATE users
           SET username = $2,
               name = $3,
               password_hash = $4,
               admin = $5,
               updated_at = $6
         WHERE id = $1
        RETURNING created_at
    `
	var created time.Time
	err := r.db.QueryRowxContext(ctx, update,
		user.ID,
		user.Username,
		user.Name,
		user.PasswordHash,
		user.Admin,
		now,
	).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return users.User{}, users.ErrNotFound
		}
		if isUniqueViolation(err) {
			return users.User{}, users.ErrUsernameExists
		}
		return users.User{}, fmt.Errorf("update user: %w", err)
	}
	user.CreatedAt = created
	user.UpdatedAt = now
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]users.User, error) {
	if limit <= 0 {
		limit = 50
	}
	list := []users.User{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE admin`); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isInvalidID(err) {
		return users.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

// isInvalidID reports a malformed UUID, which cannot match any row.
func isInvalidID(err error) bool {
	return pgCode(err) == invalidTextRepresentation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ users.Repository = (*UserRepository)(nil)
