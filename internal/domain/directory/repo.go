package directory

import "context"

type Repository interface {
	// Create fails with ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, u *User) error
	// GetByEmail matches case-insensitively and fails with ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
