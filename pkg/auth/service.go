package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// MinPasswordLength applies to every password set through the API
const MinPasswordLength = 8

// RoleResolver reports whether a role name can be assigned. The lookup reads
// through r so it sees the same transaction as the user write.
type RoleResolver interface {
	ExistsIn(ctx context.Context, r storage.Reader, name string) (bool, error)
}

// CreateUserInput holds the fields of a new admin account
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// UpdateUserInput holds a partial account update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UserService implements admin account management
type UserService struct {
	db     storage.Store
	users  *UserStore
	hasher Hasher
	roles  RoleResolver
	now    func() time.Time
}

// NewUserService creates a new user service
func NewUserService(db storage.Store, users *UserStore, hasher Hasher, roles RoleResolver) *UserService {
	return &UserService{db: db, users: users, hasher: hasher, roles: roles, now: time.Now}
}

// List returns all admin accounts
func (s *UserService) List(ctx context.Context) ([]AdminUser, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, httputil.WrapError(err, "failed to list users")
	}
	return users, nil
}

// Get returns one admin account
func (s *UserService) Get(ctx context.Context, id string) (*AdminUser, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, classifyUserErr(err, id, "failed to load user")
	}
	return user, nil
}

// Create adds an admin account. Username uniqueness is enforced by the store.
func (s *UserService) Create(ctx context.Context, in CreateUserInput, createdBy string) (*AdminUser, error) {
	username := NormalizeUsername(in.Username)
	email := NormalizeEmail(in.Email)
	if err := httputil.Validate(
		httputil.Required("username", username),
		httputil.Required("email", email),
		httputil.Required("password", in.Password),
		httputil.Required("role", in.Role),
		httputil.MinLength("password", in.Password, MinPasswordLength),
	); err != nil {
		return nil, err
	}
	if strings.ContainsAny(username, "@ \t") {
		return nil, httputil.NewError(httputil.KindValidation, "username must not contain '@' or whitespace")
	}
	if !strings.Contains(email, "@") {
		return nil, httputil.NewError(httputil.KindValidation, "email is invalid")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Name:         strings.TrimSpace(in.Name),
		IsActive:     true,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.Update(ctx, func(tx storage.Tx) error {
		if err := s.requireRole(ctx, tx, in.Role); err != nil {
			return err
		}
		return putUser(ctx, tx, user, false)
	})
	var appErr *httputil.Error
	switch {
	case err == nil:
	case errors.As(err, &appErr):
		return nil, appErr
	case errors.Is(err, storage.ErrDuplicate):
		return nil, httputil.Errorf(httputil.KindConflict, "username %q already exists", username)
	default:
		return nil, httputil.WrapError(err, "failed to create user")
	}
	return user, nil
}

// Update applies a partial update to the account with id
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*AdminUser, error) {
	var email string
	if in.Email != nil {
		email = NormalizeEmail(*in.Email)
		if !strings.Contains(email, "@") {
			return nil, httputil.NewError(httputil.KindValidation, "email is invalid")
		}
	}
	if in.Role != nil && strings.TrimSpace(*in.Role) == "" {
		return nil, httputil.NewError(httputil.KindValidation, "role is required")
	}
	var hash string
	if in.Password != nil {
		if err := httputil.Validate(httputil.MinLength("password", *in.Password, MinPasswordLength)); err != nil {
			return nil, err
		}
		var err error
		if hash, err = s.hash(*in.Password); err != nil {
			return nil, err
		}
	}

	var updated *AdminUser
	err := s.db.Update(ctx, func(tx storage.Tx) error {
		user, err := getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.Email != nil {
			user.Email = email
		}
		if in.Name != nil {
			user.Name = strings.TrimSpace(*in.Name)
		}
		if in.Role != nil {
			if err := s.requireRole(ctx, tx, *in.Role); err != nil {
				return err
			}
			user.Role = *in.Role
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
		if in.Password != nil {
			user.PasswordHash = hash
		}
		user.UpdatedAt = s.now().UTC()

		updated = user
		return putUser(ctx, tx, user, true)
	})
	if err != nil {
		return nil, classifyUserErr(err, id, "failed to update user")
	}
	return updated, nil
}

// Delete removes the account targetID. Callers cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, callerID, targetID string) error {
	if callerID == targetID {
		return httputil.NewError(httputil.KindConflict, "you cannot delete your own account")
	}

	err := s.db.Update(ctx, func(tx storage.Tx) error {
		return tx.Delete(ctx, storage.CollectionUsers, targetID)
	})
	if err != nil {
		return classifyUserErr(err, targetID, "failed to delete user")
	}
	return nil
}

// ChangePassword replaces the caller's password after verifying the current one
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	if err := httputil.Validate(
		httputil.Required("currentPassword", current),
		httputil.Required("newPassword", next),
		httputil.Required("confirmPassword", confirm),
	); err != nil {
		return err
	}
	if next != confirm {
		return httputil.NewError(httputil.KindValidation, "new passwords do not match")
	}
	if err := httputil.Validate(httputil.MinLength("newPassword", next, MinPasswordLength)); err != nil {
		return err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return classifyUserErr(err, userID, "failed to load user")
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return httputil.NewError(httputil.KindValidation, "current password is incorrect")
	}

	hash, err := s.hash(next)
	if err != nil {
		return err
	}

	err = s.db.Update(ctx, func(tx storage.Tx) error {
		fresh, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		fresh.PasswordHash = hash
		fresh.UpdatedAt = s.now().UTC()
		return putUser(ctx, tx, fresh, true)
	})
	if err != nil {
		return classifyUserErr(err, userID, "failed to change password")
	}
	return nil
}

func (s *UserService) requireRole(ctx context.Context, r storage.Reader, role string) error {
	if strings.TrimSpace(role) == "" {
		return httputil.NewError(httputil.KindValidation, "role is required")
	}
	ok, err := s.roles.ExistsIn(ctx, r, role)
	if err != nil {
		return httputil.WrapError(err, "failed to resolve role")
	}
	if !ok {
		return httputil.Errorf(httputil.KindValidation, "role %q does not exist", role)
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", httputil.Errorf(httputil.KindValidation, "password must be at most %d bytes", MaxPasswordBytes)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", httputil.WrapError(err, "failed to hash password")
	}
	return hash, nil
}

func classifyUserErr(err error, id, message string) error {
	var appErr *httputil.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, storage.ErrNotFound):
		return httputil.Errorf(httputil.KindNotFound, "user %q not found", id)
	default:
		return httputil.WrapError(err, message)
	}
}
