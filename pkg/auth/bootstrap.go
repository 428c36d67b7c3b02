package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// BootstrapConfig holds the credentials of the initial super admin
type BootstrapConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Bootstrapper guarantees that at least one super_admin account exists
type Bootstrapper struct {
	db      storage.Store
	hasher  Hasher
	cfg     BootstrapConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	group   singleflight.Group
	now     func() time.Time
}

// NewBootstrapper creates a new bootstrapper
func NewBootstrapper(db storage.Store, hasher Hasher, cfg BootstrapConfig, logger *observability.Logger, metrics *observability.Metrics) *Bootstrapper {
	return &Bootstrapper{
		db:      db,
		hasher:  hasher,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// EnsureSuperAdmin creates the configured super admin if no super_admin exists.
// Callers collapsed into the same in-flight call share its result. The shared
// call is detached from the caller's cancellation; a cancelled caller stops
// waiting but the bootstrap carries on for the others.
func (b *Bootstrapper) EnsureSuperAdmin(ctx context.Context) (bool, error) {
	if b.cfg.Password == "" {
		b.logger.Warn("bootstrap password not configured, skipping super admin bootstrap")
		return false, nil
	}

	ch := b.group.DoChan("ensure", func() (interface{}, error) {
		return b.ensure(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

func (b *Bootstrapper) ensure(ctx context.Context) (bool, error) {
	superAdmins := storage.Filter{"role": rbac.RoleSuperAdmin}

	n, err := b.db.Count(ctx, storage.CollectionUsers, superAdmins)
	if err != nil {
		return false, fmt.Errorf("failed to count super admins: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	hash, err := b.hasher.Hash(b.cfg.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	now := b.now().UTC()
	user := &AdminUser{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(b.cfg.Username),
		Email:        NormalizeEmail(b.cfg.Email),
		PasswordHash: hash,
		Role:         rbac.RoleSuperAdmin,
		Name:         strings.TrimSpace(b.cfg.Name),
		IsActive:     true,
		CreatedBy:    "system",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := false
	err = b.db.Update(ctx, func(tx storage.Tx) error {
		n, err := tx.Count(ctx, storage.CollectionUsers, superAdmins)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := putUser(ctx, tx, user, false); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create super admin: %w", err)
	}

	if created {
		b.metrics.BootstrapCreateTotal.Inc()
		b.logger.WithFields(map[string]interface{}{
			"user_id":  user.ID,
			"username": user.Username,
		}).Info("created bootstrap super admin")
	}
	return created, nil
}
