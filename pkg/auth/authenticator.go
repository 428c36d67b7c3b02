package auth

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// ErrInvalidCredentials is the single failure for unknown users, inactive
// users and wrong passwords
var ErrInvalidCredentials = httputil.NewError(httputil.KindUnauthorized, "Invalid credentials")

// Authenticator checks login credentials against the user store
type Authenticator struct {
	users  *UserStore
	hasher Hasher
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(users *UserStore, hasher Hasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate resolves identifier (username, or email when it contains '@')
// and verifies password. It has no side effects.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*Identity, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.Authenticate")
	defer span.End()

	user, err := a.lookup(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		a.hasher.DummyVerify(password)
		span.SetAttributes(attribute.String("auth.outcome", "invalid"))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		span.RecordError(err)
		return nil, httputil.WrapError(err, "failed to load user")
	}

	// Verify runs even for inactive accounts
	verified := a.hasher.Verify(password, user.PasswordHash)
	if !verified || !user.IsActive {
		span.SetAttributes(attribute.String("auth.outcome", "invalid"))
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("auth.outcome", "success"))
	identity := user.Identity()
	return &identity, nil
}

func (a *Authenticator) lookup(ctx context.Context, identifier string) (*AdminUser, error) {
	user, err := a.users.GetUserByUsername(ctx, identifier)
	if err == nil || !errors.Is(err, storage.ErrNotFound) || !strings.Contains(identifier, "@") {
		return user, err
	}
	return a.users.GetUserByEmail(ctx, identifier)
}
