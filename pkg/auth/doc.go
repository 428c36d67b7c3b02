// Package auth authenticates administrators and manages their accounts.
//
// # Overview
//
// Credentials are checked by the Authenticator against the admin_users
// collection. A successful login is turned into a signed session token by the
// SessionCodec and carried in the admin_session cookie. Privileged requests
// validate that token locally without touching the store.
//
// # Key Components
//
// Password hashing: bcrypt with a configurable cost
//
//	hasher, _ := auth.NewBcryptHasher(0)
//	digest, _ := hasher.Hash("correct horse battery")
//	ok := hasher.Verify("correct horse battery", digest)
//
// Authentication: username or email lookup with a single failure value
//
//	identity, err := authenticator.Authenticate(ctx, "alice", password)
//	if errors.Is(err, auth.ErrInvalidCredentials) {
//		// unknown user, wrong password and inactive account look the same
//	}
//
// Sessions: HS256 tokens valid for 24 hours
//
//	codec, _ := auth.NewSessionCodec(secret)
//	token, claim, _ := codec.Issue(*identity)
//	http.SetCookie(w, auth.SessionCookie(token, true))
//
// Bootstrap: exactly one super admin is created on an empty store, even when
// several processes start at once
//
//	created, err := bootstrapper.EnsureSuperAdmin(ctx)
//
// # Related Packages
//
//   - pkg/rbac: role resolution for the role carried in the session
//   - pkg/storage: credential store contract
//   - pkg/middleware: session cookie middleware
package auth
