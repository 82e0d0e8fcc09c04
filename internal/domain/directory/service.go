package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/medrecords/internal/domain/records"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "directory").Logger()}
}

// CheckIfUserExists returns nil, nil when no user has the email.
func (s *Service) CheckIfUserExists(ctx context.Context, email string) (*User, error) {
	if NormalizeEmail(email) == "" {
		return nil, ErrEmailRequired
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// Onboard creates the profile for email.
func (s *Service) Onboard(ctx context.Context, email string, req OnboardRequest) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u := &User{
		Username:  strings.TrimSpace(req.Username),
		Age:       req.Age,
		Location:  strings.TrimSpace(req.Location),
		CreatedBy: email,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("user onboarded")
	return u, nil
}

// ResolveOwner maps an email to the record owner it acts as.
func (s *Service) ResolveOwner(ctx context.Context, email string) (records.Owner, error) {
	u, err := s.CheckIfUserExists(ctx, email)
	if err != nil {
		return records.Owner{}, err
	}
	if u == nil {
		return records.Owner{}, records.ErrNoOwner
	}
	return records.Owner{UserID: u.ID, Email: u.CreatedBy}, nil
}
