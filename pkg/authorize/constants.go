package authorize

type (
	Action   string
	Resource string
	Role     string
)

const (
	ActionRead    Action = "read"
	ActionList    Action = "list"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionExecute Action = "execute"

	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionRead: {}, ActionList: {}, ActionCreate: {}, ActionUpdate: {}, ActionExecute: {},
}

const (
	ResourceConsulta Resource = "consulta"
	ResourceRoom     Resource = "room"
	ResourceRepasse  Resource = "repasse"
	ResourceAvulsa   Resource = "consulta_avulsa"
	ResourceAddress  Resource = "address"
	ResourceAudit    Resource = "audit"

	WildcardResource Resource = "*"
)

var KnownResources = map[Resource]struct{}{
	ResourceConsulta: {}, ResourceRoom: {}, ResourceRepasse: {},
	ResourceAvulsa: {}, ResourceAddress: {}, ResourceAudit: {},
}

// Roles match users.role and the session token's role claim.
const (
	RolePatient      Role = "Patient"
	RolePsychologist Role = "Psychologist"
	RoleAdmin        Role = "Admin"
	RoleManagement   Role = "Management"
)

var KnownRoles = map[Role]struct{}{
	RolePatient: {}, RolePsychologist: {}, RoleAdmin: {}, RoleManagement: {},
}

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// PermissionPolicy is one "p, role, obj, act, eft" row.
type PermissionPolicy struct {
	Subject Role
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}

// Subject is who asks: the user id (for per-user grants) and the role claim.
type Subject struct {
	UserID string
	Role   Role
}
