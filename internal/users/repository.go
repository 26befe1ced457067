package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for identities and roles.
type Repository interface {
	GetUserByNormalizedName(ctx context.Context, normalized string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	InsertUser(ctx context.Context, user User) error
	ListUserRoles(ctx context.Context, userID string) ([]string, error)
	GetRoleByNormalizedName(ctx context.Context, normalized string) (*Role, error)
	InsertRole(ctx context.Context, role Role) error
	InsertUserRole(ctx context.Context, userID, roleID string) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetUserByNormalizedName fetches a user by lookup key.
func (r *PGRepository) GetUserByNormalizedName(ctx context.Context, normalized string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id::text, username, normalized_username, password_hash, created_at, updated_at
FROM users WHERE normalized_username = $1`, normalized)
	return scanUser(row)
}

// GetUserByID fetches a user by identifier.
func (r *PGRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id::text, username, normalized_username, password_hash, created_at, updated_at
FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// InsertUser persists a new identity.
func (r *PGRepository) InsertUser(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, username, normalized_username, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.NormalizedUsername, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return mapWriteError("insert user", err)
}

// ListUserRoles returns the role names assigned to a user ordered by name.
func (r *PGRepository) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT ro.name FROM user_roles ur
JOIN roles ro ON ro.id = ur.role_id
WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("users: list roles: %w", err)
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRoleByNormalizedName fetches a role by lookup key.
func (r *PGRepository) GetRoleByNormalizedName(ctx context.Context, normalized string) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id::text, name, normalized_name, created_at FROM roles WHERE normalized_name = $1`, normalized).
		Scan(&role.ID, &role.Name, &role.NormalizedName, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: get role: %w", err)
	}
	return &role, nil
}

// InsertRole persists a new role.
func (r *PGRepository) InsertRole(ctx context.Context, role Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO roles (id, name, normalized_name, created_at) VALUES ($1, $2, $3, $4)`,
		role.ID, role.Name, role.NormalizedName, role.CreatedAt)
	return mapWriteError("insert role", err)
}

// InsertUserRole links a user to a role. Existing links are left untouched.
func (r *PGRepository) InsertUserRole(ctx context.Context, userID, roleID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID, time.Now().UTC())
	return mapWriteError("assign role", err)
}

// ListUserIDs returns every identity id, oldest first.
func (r *PGRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("users: list ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("users: list ids: %w", err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.NormalizedUsername, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan user: %w", err)
	}
	return &user, nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("users: %s: %w", op, httpx.ErrDuplicate)
	}
	return fmt.Errorf("users: %s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
