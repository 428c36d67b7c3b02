package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// userDocument is the stored form of AdminUser, the only place the hash is serialised
type userDocument struct {
	AdminUser
	PasswordHash string `json:"passwordHash"`
}

func toDocument(u *AdminUser) userDocument {
	return userDocument{AdminUser: *u, PasswordHash: u.PasswordHash}
}

func (d userDocument) user() *AdminUser {
	u := d.AdminUser
	u.PasswordHash = d.PasswordHash
	return &u
}

// UserStore reads and writes admin_users documents
type UserStore struct {
	db storage.Store
}

// NewUserStore creates a new user store
func NewUserStore(db storage.Store) *UserStore {
	return &UserStore{db: db}
}

// GetUser retrieves a user by id. Returns storage.ErrNotFound when absent.
func (s *UserStore) GetUser(ctx context.Context, id string) (*AdminUser, error) {
	return getUser(ctx, s.db, id)
}

// GetUserByUsername retrieves a user by (case-insensitive) username
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	return findOneUser(ctx, s.db, storage.Filter{"username": NormalizeUsername(username)})
}

// GetUserByEmail retrieves a user by (case-insensitive) email
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*AdminUser, error) {
	return findOneUser(ctx, s.db, storage.Filter{"email": NormalizeEmail(email)})
}

// ListUsers returns every user, oldest first
func (s *UserStore) ListUsers(ctx context.Context) ([]AdminUser, error) {
	recs, err := s.db.Find(ctx, storage.CollectionUsers, storage.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	docs, err := storage.DecodeAll[userDocument](recs)
	if err != nil {
		return nil, err
	}
	users := make([]AdminUser, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.user())
	}
	return users, nil
}

// NormalizeUsername lowercases and trims a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func getUser(ctx context.Context, r storage.Reader, id string) (*AdminUser, error) {
	rec, err := r.Get(ctx, storage.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	var doc userDocument
	if err := rec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.user(), nil
}

func findOneUser(ctx context.Context, r storage.Reader, f storage.Filter) (*AdminUser, error) {
	recs, err := r.Find(ctx, storage.CollectionUsers, storage.Query{Filter: f, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if len(recs) == 0 {
		return nil, storage.ErrNotFound
	}
	var doc userDocument
	if err := recs[0].Decode(&doc); err != nil {
		return nil, err
	}
	return doc.user(), nil
}

func putUser(ctx context.Context, tx storage.Tx, u *AdminUser, replace bool) error {
	rec, err := storage.NewRecord(u.ID, u.CreatedAt, toDocument(u))
	if err != nil {
		return err
	}
	if replace {
		return tx.Replace(ctx, storage.CollectionUsers, rec)
	}
	return tx.Insert(ctx, storage.CollectionUsers, rec)
}
