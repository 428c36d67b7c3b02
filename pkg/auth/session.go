package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionTTL is the lifetime of a session from issuance
	DefaultSessionTTL = 24 * time.Hour

	// SessionCookieName carries the session token
	SessionCookieName = "admin_session"

	// MinSessionSecretBytes is the shortest accepted HMAC key
	MinSessionSecretBytes = 32
)

var (
	// ErrSessionMalformed is returned for tokens that cannot be parsed or fail signature verification
	ErrSessionMalformed = errors.New("session token is malformed")
	// ErrSessionExpired is returned once now >= exp
	ErrSessionExpired = errors.New("session token has expired")
)

type sessionClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// SessionCodec issues and validates HS256-signed session tokens.
// Validation is purely local and never touches the store.
type SessionCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewSessionCodec creates a codec signing with secret
func NewSessionCodec(secret []byte) (*SessionCodec, error) {
	if len(secret) < MinSessionSecretBytes {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretBytes)
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	return &SessionCodec{
		secret: key,
		now:    time.Now,
		// expiry is checked by Validate against the codec clock
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// WithClock replaces the codec clock. Intended for tests and tools.
func (c *SessionCodec) WithClock(now func() time.Time) *SessionCodec {
	c.now = now
	return c
}

// Issue mints a token for identity valid for DefaultSessionTTL
func (c *SessionCodec) Issue(identity Identity) (string, Claim, error) {
	return c.IssueWithTTL(identity, DefaultSessionTTL)
}

// IssueWithTTL mints a token valid for ttl. Expiry has one-second precision.
func (c *SessionCodec) IssueWithTTL(identity Identity, ttl time.Duration) (string, Claim, error) {
	now := c.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	claims := sessionClaims{
		ID:       identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     identity.Role,
		Name:     identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claim{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, Claim{Identity: identity, ExpiresAt: exp.Time.UTC()}, nil
}

// Validate verifies the signature and expiry of token and returns its claim unchanged
func (c *SessionCodec) Validate(token string) (*Claim, error) {
	var claims sessionClaims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
	}
	if claims.ExpiresAt == nil || claims.ID == "" {
		return nil, ErrSessionMalformed
	}

	exp := claims.ExpiresAt.Time.UTC()
	if !c.now().Before(exp) {
		return nil, ErrSessionExpired
	}

	return &Claim{
		Identity: Identity{
			ID:       claims.ID,
			Username: claims.Username,
			Email:    claims.Email,
			Role:     claims.Role,
			Name:     claims.Name,
		},
		ExpiresAt: exp,
	}, nil
}

// SessionCookie wraps token in the admin_session cookie
func SessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(DefaultSessionTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the admin_session cookie
func ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
