package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline installed by `estacao system init`.
var DefaultPolicies = []PermissionPolicy{
	{RoleAdmin, WildcardResource, WildcardAction, EffectAllow},

	{RoleManagement, ResourceConsulta, ActionRead, EffectAllow},
	{RoleManagement, ResourceConsulta, ActionList, EffectAllow},
	{RoleManagement, ResourceConsulta, ActionUpdate, EffectAllow},
	{RoleManagement, ResourceRepasse, ActionExecute, EffectAllow},
	{RoleManagement, ResourceAvulsa, ActionCreate, EffectAllow},

	{RolePsychologist, ResourceRoom, ActionExecute, EffectAllow},
	{RolePsychologist, ResourceConsulta, ActionExecute, EffectAllow},
	{RolePsychologist, ResourceAddress, ActionRead, EffectAllow},

	{RolePatient, ResourceRoom, ActionExecute, EffectAllow},
	{RolePatient, ResourceConsulta, ActionExecute, EffectAllow},
	{RolePatient, ResourceAddress, ActionRead, EffectAllow},
}

func SeedDefaultPolicies(ctx context.Context, auth IAuthorization, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	added := 0
	for _, p := range DefaultPolicies {
		ok, err := auth.AddPermission(ctx, p)
		if err != nil {
			return fmt.Errorf("add policy %v: %w", p, err)
		}
		if ok {
			added++
		}
	}
	log.Info("seeded default RBAC policies", "total", len(DefaultPolicies), "added", added)
	return nil
}
