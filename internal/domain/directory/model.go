package directory

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrAlreadyExists    = errors.New("user already onboarded")
	ErrUsernameRequired = errors.New("username is required")
	ErrInvalidAge       = errors.New("age must be greater than zero")
	ErrEmailRequired    = errors.New("email is required")
)

// User is a patient profile created by onboarding. CreatedBy holds the
// identity email and is unique regardless of case.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Age       int       `json:"age"`
	Location  string    `json:"location"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type OnboardRequest struct {
	Username string `json:"username"`
	Age      int    `json:"age"`
	Location string `json:"location"`
}

func (r OnboardRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrUsernameRequired
	}
	if r.Age <= 0 {
		return ErrInvalidAge
	}
	return nil
}

// NormalizeEmail is the lookup key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
