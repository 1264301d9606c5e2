// Package repository defines the persistence interfaces the services depend on
// and their SQLite implementations. Services never write SQL themselves.
package repository

import (
	"context"
	"time"

	"github.com/pillarworks/storefront/models"
)

// UserRepository stores dashboard accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Update writes name, role and permissions.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
