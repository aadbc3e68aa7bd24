// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/profilekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides CRUD access for identity accounts.
type UserRepository interface {
	// Create inserts a new user; errs.ErrAlreadyExists on duplicate email.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdatePassword replaces the password hash and salt.
	UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error
	// Delete removes the user together with its profile document.
	Delete(ctx context.Context, id uuid.UUID) error
}
