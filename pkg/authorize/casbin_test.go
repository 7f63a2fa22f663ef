package authorize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estacaoterapia/estacao_backend/pkg/reqctx"
)

const testModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

func newTestAuth(t *testing.T) IAuthorization {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.conf")
	policyPath := filepath.Join(dir, "policy.csv")
	require.NoError(t, os.WriteFile(modelPath, []byte(testModel), 0o644))
	require.NoError(t, os.WriteFile(policyPath, nil, 0o644))

	e, err := casbin.NewDistributedEnforcer(modelPath, fileadapter.NewAdapter(policyPath))
	require.NoError(t, err)
	e.EnableAutoSave(false)

	auth, err := NewAuthorization(e)
	require.NoError(t, err)
	require.NoError(t, SeedDefaultPolicies(context.Background(), auth, nil))
	return auth
}

func TestNewAuthorizationNil(t *testing.T) {
	_, err := NewAuthorization(nil)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestEnforceDefaultPolicies(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		role   Role
		object Resource
		action Action
		want   bool
	}{
		{"admin anything", RoleAdmin, ResourceAudit, ActionRead, true},
		{"management status", RoleManagement, ResourceConsulta, ActionUpdate, true},
		{"management grant", RoleManagement, ResourceAvulsa, ActionCreate, true},
		{"management audit", RoleManagement, ResourceAudit, ActionRead, false},
		{"patient room", RolePatient, ResourceRoom, ActionExecute, true},
		{"patient admin status", RolePatient, ResourceConsulta, ActionUpdate, false},
		{"psychologist grant", RolePsychologist, ResourceAvulsa, ActionCreate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := auth.Enforce(ctx, Subject{UserID: "u1", Role: tt.role}, tt.object, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEnforceUserGrant(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()
	sub := Subject{UserID: "u42", Role: RolePsychologist}

	assert.ErrorIs(t, auth.MustEnforce(ctx, sub, ResourceRepasse, ActionExecute), ErrForbidden)

	_, err := auth.AddRoleForUser(ctx, "u42", RoleManagement)
	require.NoError(t, err)
	assert.NoError(t, auth.MustEnforce(ctx, sub, ResourceRepasse, ActionExecute))
}

func TestEnforceInvalidArgs(t *testing.T) {
	auth := NewAuditedAuthorization(newTestAuth(t), nil)
	ctx := context.Background()

	_, err := auth.Enforce(ctx, Subject{}, ResourceRoom, ActionExecute)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = auth.Enforce(ctx, Subject{Role: RoleAdmin}, "wallet", ActionRead)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = auth.Enforce(ctx, Subject{Role: RoleAdmin}, ResourceRoom, "fly")
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = auth.AddPermission(ctx, PermissionPolicy{"Guest", ResourceRoom, ActionRead, EffectAllow})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

type testClaims struct{ id uuid.UUID }

func (c testClaims) GetUserID() uuid.UUID { return c.id }
func (c testClaims) GetRole() string      { return "Management" }
func (c testClaims) IsExpired() bool      { return false }

func TestSubjectFromContext(t *testing.T) {
	_, err := SubjectFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSubjectInContext)

	id := uuid.New()
	sub, err := SubjectFromContext(reqctx.WithClaims(context.Background(), testClaims{id: id}))
	require.NoError(t, err)
	assert.Equal(t, Subject{UserID: id.String(), Role: RoleManagement}, sub)
}
