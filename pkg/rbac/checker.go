package rbac

import (
	"context"
	"fmt"

	"github.com/platinummonkey/cmsadmin/pkg/observability"
)

// Checker answers whether a role grants a permission
type Checker interface {
	HasPermission(ctx context.Context, role string, permission Permission) (bool, error)
}

// Evaluator resolves role permissions from the live role records
type Evaluator struct {
	store *Store
}

var _ Checker = (*Evaluator)(nil)

// NewEvaluator creates a new permission evaluator
func NewEvaluator(store *Store) *Evaluator {
	return &Evaluator{store: store}
}

// HasPermission reports whether role grants permission.
// super_admin is always granted; unknown roles are granted nothing.
func (e *Evaluator) HasPermission(ctx context.Context, role string, permission Permission) (bool, error) {
	ctx, span := observability.Tracer().Start(ctx, "rbac.HasPermission")
	defer span.End()

	if role == RoleSuperAdmin {
		return true, nil
	}

	resolved, err := e.resolve(ctx, role)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if resolved == nil {
		return false, nil
	}
	return resolved.Has(permission), nil
}

// EffectivePermissions returns the permissions role grants, expanding the wildcard
func (e *Evaluator) EffectivePermissions(ctx context.Context, role string) ([]Permission, error) {
	if role == RoleSuperAdmin {
		return expandAll(), nil
	}

	resolved, err := e.resolve(ctx, role)
	if err != nil || resolved == nil {
		return nil, err
	}

	var out []Permission
	for _, info := range catalog {
		if resolved.Has(info.Permission) {
			out = append(out, info.Permission)
		}
	}
	return out, nil
}

// resolve loads the role record, falling back to the seed table for system roles
func (e *Evaluator) resolve(ctx context.Context, name string) (*Role, error) {
	role, err := e.store.GetRoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to resolve role %q: %w", name, err)
	}

	if seed, ok := SystemRole(name); ok {
		return &seed, nil
	}
	return nil, nil
}

func expandAll() []Permission {
	out := make([]Permission, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info.Permission)
	}
	return out
}
