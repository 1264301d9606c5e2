// Package models defines the domain types shared by every layer, together with
// the request payloads the HTTP API accepts and their validation rules.
package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// User is a dashboard account. Storefront customers never log in; they only
// appear as order snapshots.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Permissions  Permission `json:"permissions"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EffectivePermissions folds the role defaults into the stored bitmask.
func (u *User) EffectivePermissions() Permission {
	return u.Permissions | u.Role.DefaultPermissions()
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalises the email and checks both fields are present.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" {
		return fmt.Errorf("current password is required")
	}
	if err := validatePassword(r.NewPassword); err != nil {
		return err
	}
	if r.CurrentPassword == r.NewPassword {
		return fmt.Errorf("new password must differ from the current one")
	}
	return nil
}

// CreateUserRequest is used by the users admin and the CLI.
type CreateUserRequest struct {
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Password    string      `json:"password"`
	Role        UserRole    `json:"role"`
	Permissions *Permission `json:"permissions"`
}

func (r *CreateUserRequest) Validate() error {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email

	r.Name = strings.TrimSpace(r.Name)
	if utf8.RuneCountInString(r.Name) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.Role == "" {
		r.Role = RoleEditor
	}
	if !r.Role.Valid() {
		return fmt.Errorf("role must be one of: admin, editor")
	}
	if r.Permissions != nil && *r.Permissions&^PermAll != 0 {
		return fmt.Errorf("unknown permission bits")
	}
	return nil
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Name        *string     `json:"name"`
	Email       *string     `json:"email"`
	Role        *UserRole   `json:"role"`
	Permissions *Permission `json:"permissions"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if utf8.RuneCountInString(trimmed) > 100 {
			return fmt.Errorf("name must be at most 100 characters")
		}
		r.Name = &trimmed
	}
	if r.Email != nil {
		email, err := normalizeEmail(*r.Email)
		if err != nil {
			return err
		}
		r.Email = &email
	}
	if r.Role != nil && !r.Role.Valid() {
		return fmt.Errorf("role must be one of: admin, editor")
	}
	if r.Permissions != nil && *r.Permissions&^PermAll != 0 {
		return fmt.Errorf("unknown permission bits")
	}
	return nil
}

func validatePassword(p string) error {
	n := utf8.RuneCountInString(p)
	if n < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	// bcrypt ignores everything past 72 bytes.
	if len(p) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("email is invalid")
	}
	return email, nil
}
