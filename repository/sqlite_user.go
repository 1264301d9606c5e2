package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, constructor.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, role, permissions, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Permissions,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (id, email, name, password_hash, role, permissions)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.Permissions,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create user", "email already in use", "invalid user reference")
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?, permissions = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		user.Name, user.Email, user.Role, user.Permissions, user.ID)
	if err != nil {
		return mapWriteError(err, "update user", "email already in use", "invalid user reference")
	}
	return requireAffected(res)
}

func (r *sqliteUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteUserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Delete removes the user; refresh tokens go with it through the FK cascade.
func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(res)
}
