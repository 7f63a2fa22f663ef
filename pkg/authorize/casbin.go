// Package authorize guards the admin surface with casbin RBAC. Policies are
// "p, role, resource, action, effect"; "g, user, role" rows grant a role to
// one user on top of the role carried by the session token.
package authorize

import (
	"context"
	"errors"
	"fmt"

	casbin "github.com/casbin/casbin/v2"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidArgs = errors.New("invalid authorization arguments")
)

type IAuthorization interface {
	Enforce(ctx context.Context, sub Subject, object Resource, action Action) (bool, error)
	// MustEnforce returns ErrForbidden when the subject is not allowed.
	MustEnforce(ctx context.Context, sub Subject, object Resource, action Action) error

	AddRoleForUser(ctx context.Context, userID string, role Role) (bool, error)
	AddPermission(ctx context.Context, p PermissionPolicy) (bool, error)
}

// Enforcer is the part of casbin's enforcers this package drives.
type Enforcer interface {
	LoadPolicy() error
	Enforce(rvals ...interface{}) (bool, error)
	AddPolicy(params ...interface{}) (bool, error)
	AddGroupingPolicy(params ...interface{}) (bool, error)
}

var _ Enforcer = (*casbin.DistributedEnforcer)(nil)

type Authorization struct {
	enforcer Enforcer
}

// NewAuthorization loads the policy of an already configured enforcer.
func NewAuthorization(e Enforcer) (IAuthorization, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: enforcer is nil", ErrInvalidArgs)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policy: %w", err)
	}
	return &Authorization{enforcer: e}, nil
}

func (a *Authorization) Enforce(_ context.Context, sub Subject, object Resource, action Action) (bool, error) {
	if sub.UserID == "" && sub.Role == "" {
		return false, fmt.Errorf("%w: empty subject", ErrInvalidArgs)
	}
	if _, ok := KnownResources[object]; !ok {
		return false, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgs, object)
	}
	if _, ok := KnownActions[action]; !ok {
		return false, fmt.Errorf("%w: unknown action %q", ErrInvalidArgs, action)
	}

	for _, s := range []string{string(sub.Role), sub.UserID} {
		if s == "" {
			continue
		}
		ok, err := a.enforcer.Enforce(s, string(object), string(action))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (a *Authorization) MustEnforce(ctx context.Context, sub Subject, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, sub, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (a *Authorization) AddRoleForUser(_ context.Context, userID string, role Role) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: empty user", ErrInvalidArgs)
	}
	if _, ok := KnownRoles[role]; !ok {
		return false, fmt.Errorf("%w: unknown role %q", ErrInvalidArgs, role)
	}
	return a.enforcer.AddGroupingPolicy(userID, string(role))
}

func (a *Authorization) AddPermission(_ context.Context, p PermissionPolicy) (bool, error) {
	if _, ok := KnownRoles[p.Subject]; !ok {
		return false, fmt.Errorf("%w: unknown role %q", ErrInvalidArgs, p.Subject)
	}
	if _, ok := KnownResources[p.Object]; !ok && p.Object != WildcardResource {
		return false, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgs, p.Object)
	}
	if _, ok := KnownActions[p.Action]; !ok && p.Action != WildcardAction {
		return false, fmt.Errorf("%w: unknown action %q", ErrInvalidArgs, p.Action)
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return false, fmt.Errorf("%w: invalid effect %q", ErrInvalidArgs, p.Effect)
	}
	return a.enforcer.AddPolicy(string(p.Subject), string(p.Object), string(p.Action), string(p.Effect))
}
