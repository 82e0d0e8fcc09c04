package auth

import "context"

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session mirrors the identity provider lifecycle: Ready once the provider
// can answer, Authenticated once a valid identity is present.
type Session struct {
	Ready         bool  `json:"ready"`
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// Email returns the session user's email, or "".
func (s Session) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey).(Session)
	return s
}
