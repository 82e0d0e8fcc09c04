package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// TokenCookie is the cookie the identity provider's web SDK stores the
// access token in when no Authorization header is sent.
const TokenCookie = "privy-token"

// LinkedAccount is one account attached to an identity.
type LinkedAccount struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// LinkedAccounts decodes either a JSON array or a JSON string holding one.
type LinkedAccounts []LinkedAccount

func (l *LinkedAccounts) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		b = []byte(s)
	}
	var accounts []LinkedAccount
	if err := json.Unmarshal(b, &accounts); err != nil {
		return err
	}
	*l = accounts
	return nil
}

type Claims struct {
	jwt.RegisteredClaims
	Email          string         `json:"email,omitempty"`
	LinkedAccounts LinkedAccounts `json:"linked_accounts,omitempty"`
}

// EmailAddress returns the email claim, falling back to the first linked
// email account.
func (c *Claims) EmailAddress() string {
	if c.Email != "" {
		return c.Email
	}
	for _, a := range c.LinkedAccounts {
		if a.Type == "email" && a.Address != "" {
			return a.Address
		}
	}
	return ""
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey is used for development/testing only
	SigningKey []byte
}

var ErrNoToken = errors.New("no identity token")

// Verifier validates identity tokens issued by the identity provider.
type Verifier struct {
	cfg  JWTConfig
	jwks *JWKSCache
}

func NewVerifier(cfg JWTConfig) *Verifier {
	v := &Verifier{cfg: cfg}
	if len(cfg.SigningKey) == 0 && cfg.JWKSURL != "" {
		v.jwks = NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
	}
	return v
}

// Ready reports whether the verifier has key material to check tokens with.
func (v *Verifier) Ready() bool {
	if len(v.cfg.SigningKey) > 0 {
		return true
	}
	return v.jwks != nil && v.jwks.Loaded()
}

// Refresh retries a failed key fetch, at most once per retry interval, and
// reports readiness. A verifier whose startup fetch failed recovers here.
func (v *Verifier) Refresh(ctx context.Context) bool {
	if v.jwks != nil {
		v.jwks.retryIfEmpty(ctx)
	}
	return v.Ready()
}

// Warm fetches the JWKS so that Ready turns true before the first request.
func (v *Verifier) Warm(ctx context.Context) error {
	if v.jwks == nil {
		return nil
	}
	return v.jwks.Fetch(ctx)
}

func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	if len(v.cfg.SigningKey) > 0 {
		return func(*jwt.Token) (interface{}, error) { return v.cfg.SigningKey, nil }
	}
	return func(token *jwt.Token) (interface{}, error) {
		if v.jwks == nil {
			return nil, fmt.Errorf("no JWKS configured")
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.jwks.GetKey(ctx, kid)
	}
}

// Verify parses and validates a compact token.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	methods := []string{"ES256", "RS256"}
	if len(v.cfg.SigningKey) > 0 {
		methods = []string{"HS256"}
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyFunc(ctx), opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
			return "", fmt.Errorf("invalid authorization format")
		}
		return strings.TrimSpace(tok), nil
	}
	if ck, err := r.Cookie(TokenCookie); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	return "", ErrNoToken
}

// SessionMiddleware attaches the caller's Session to the request context.
// It never rejects; invalid or missing tokens yield an unauthenticated
// session.
func SessionMiddleware(v *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			sess := Session{}

			if tok, err := tokenFromRequest(req); err == nil {
				if claims, err := v.Verify(req.Context(), tok); err == nil {
					sess.Authenticated = true
					sess.User = &User{ID: claims.Subject, Email: claims.EmailAddress()}
				} else {
					c.Set("auth_error", err.Error())
				}
			}
			sess.Ready = v.Refresh(req.Context())

			c.SetRequest(req.WithContext(WithSession(req.Context(), sess)))
			return next(c)
		}
	}
}

// RequireSession rejects requests without an authenticated session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			if !sess.Authenticated || sess.User == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// IssueDevToken signs an HS256 token for local development.
func IssueDevToken(key []byte, issuer, subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
