// Package session decides where a user goes as the identity session
// settles: to login, to onboarding, or to the display page.
package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/medrecords/internal/domain/directory"
	"github.com/ehr/medrecords/internal/platform/auth"
	"github.com/ehr/medrecords/pkg/routes"
)

type Action string

const (
	ActionNone     Action = "none"
	ActionLogin    Action = "login"
	ActionNavigate Action = "navigate"
)

// NoticeLookupFailed is shown when the directory could not be reached and
// the user was sent to onboarding.
const NoticeLookupFailed = "We could not check your profile. Please complete onboarding."

// State is the slice of the identity session the controller reacts to.
type State struct {
	Ready         bool
	Authenticated bool
	UserID        string
	Email         string
}

func StateOf(s auth.Session) State {
	st := State{Ready: s.Ready, Authenticated: s.Authenticated}
	if s.User != nil {
		st.UserID = s.User.ID
		st.Email = s.User.Email
	}
	return st
}

type Decision struct {
	Action Action `json:"action"`
	Path   string `json:"path,omitempty"`
	Notice string `json:"notice,omitempty"`
}

// Directory answers whether an email has been onboarded. A nil user with a
// nil error means no.
type Directory interface {
	CheckIfUserExists(ctx context.Context, email string) (*directory.User, error)
}

// Provider is the identity provider's imperative surface.
type Provider interface {
	Login(ctx context.Context)
}

type Navigator interface {
	Navigate(path string)
}

type Notifier interface {
	Alert(message string)
}

type Controller struct {
	dir    Directory
	logger zerolog.Logger
}

func NewController(dir Directory, logger zerolog.Logger) *Controller {
	return &Controller{dir: dir, logger: logger.With().Str("component", "session").Logger()}
}

// Evaluate picks exactly one action for st. A failed lookup still yields a
// decision (onboarding with a notice) alongside the error.
func (c *Controller) Evaluate(ctx context.Context, st State) (Decision, error) {
	switch {
	case st.Ready && !st.Authenticated:
		return Decision{Action: ActionLogin}, nil
	case st.Authenticated && st.UserID != "" && st.Email != "":
		u, err := c.dir.CheckIfUserExists(ctx, st.Email)
		if err != nil {
			return Decision{Action: ActionNavigate, Path: routes.Onboarding, Notice: NoticeLookupFailed},
				fmt.Errorf("directory lookup: %w", err)
		}
		if u != nil {
			return Decision{Action: ActionNavigate, Path: routes.DisplayInfo}, nil
		}
		return Decision{Action: ActionNavigate, Path: routes.Onboarding}, nil
	default:
		return Decision{Action: ActionNone}, nil
	}
}

// Runner applies decisions to a live session.
type Runner struct {
	ctrl     *Controller
	provider Provider
	nav      Navigator
	notify   Notifier
}

func (c *Controller) Runner(provider Provider, nav Navigator, notify Notifier) *Runner {
	return &Runner{ctrl: c, provider: provider, nav: nav, notify: notify}
}

// Run consumes session states until ctx is done or states is closed.
// Repeated identical states are ignored. Login is requested at most once per
// unauthenticated stretch and never while authenticated.
func (r *Runner) Run(ctx context.Context, states <-chan State) error {
	var (
		prev         State
		seen         bool
		loginPending bool
	)
	for {
		var st State
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-states:
			if !ok {
				return nil
			}
			st = s
		}

		if seen && st == prev {
			continue
		}
		prev, seen = st, true
		if st.Authenticated {
			loginPending = false
		}

		d, err := r.ctrl.Evaluate(ctx, st)
		if err != nil {
			r.ctrl.logger.Error().Err(err).Str("user_id", st.UserID).Msg("session redirect lookup failed")
		}
		switch d.Action {
		case ActionLogin:
			if loginPending {
				continue
			}
			loginPending = true
			r.provider.Login(ctx)
		case ActionNavigate:
			if d.Notice != "" && r.notify != nil {
				r.notify.Alert(d.Notice)
			}
			r.nav.Navigate(d.Path)
		}
	}
}
