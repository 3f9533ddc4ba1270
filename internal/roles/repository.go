package roles

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// Repository provides PostgreSQL backed persistence for role documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by code.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, permissions, created_at, updated_at FROM roles ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindByCodes returns the roles whose code or legacy display name is in the
// supplied list. Unknown codes are skipped, not errors.
func (r *Repository) FindByCodes(ctx context.Context, codes []string) ([]Role, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, permissions, created_at, updated_at
		 FROM roles WHERE code = ANY($1) OR name = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by code.
func (r *Repository) GetRole(ctx context.Context, code string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT code, name, permissions, created_at, updated_at FROM roles WHERE code = $1`, code)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// UpsertRole inserts or replaces a role document.
func (r *Repository) UpsertRole(ctx context.Context, role Role) (Role, error) {
	permsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (code, name, permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (code) DO UPDATE SET name = $2, permissions = $3, updated_at = NOW()
		 RETURNING code, name, permissions, created_at, updated_at`,
		role.Code, role.Name, permsJSON)
	return scanRole(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var permsJSON []byte
	if err := row.Scan(&role.Code, &role.Name, &permsJSON, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &role.Permissions); err != nil {
			return Role{}, err
		}
	}
	if role.Permissions == nil {
		role.Permissions = map[string]bool{}
	}
	return role, nil
}
