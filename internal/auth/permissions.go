package auth

// Permission keys used across the campaign application. Handlers gate routes
// on these; the builtin role table below assigns defaults.
const (
	PermAssetCreate  = "asset:create"
	PermAssetRead    = "asset:read"
	PermAssetUpdate  = "asset:update"
	PermAssetDelete  = "asset:delete"
	PermAssetApprove = "asset:approve"

	PermCampaignCreate  = "campaign:create"
	PermCampaignRead    = "campaign:read"
	PermCampaignUpdate  = "campaign:update"
	PermCampaignDelete  = "campaign:delete"
	PermCampaignApprove = "campaign:approve"

	PermClientCreate = "client:create"
	PermClientRead   = "client:read"
	PermClientUpdate = "client:update"
	PermClientDelete = "client:delete"

	PermTemplateCreate = "template:create"
	PermTemplateRead   = "template:read"
	PermTemplateUpdate = "template:update"

	PermReviewRequest = "review:request"
	PermReviewSignOff = "review:signoff"

	PermUserManage = "user:manage"
)

// Role names. Each role's defaults are a curated subset of the next one up.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleEditor  = "editor"
	RoleViewer  = "viewer"
)

var viewerPermissions = []string{
	PermAssetRead,
	PermCampaignRead,
	PermClientRead,
	PermTemplateRead,
}

var editorPermissions = append([]string{
	PermAssetCreate,
	PermAssetUpdate,
	PermCampaignCreate,
	PermCampaignUpdate,
	PermTemplateCreate,
	PermTemplateUpdate,
	PermReviewRequest,
}, viewerPermissions...)

var managerPermissions = append([]string{
	PermAssetDelete,
	PermAssetApprove,
	PermCampaignDelete,
	PermCampaignApprove,
	PermClientCreate,
	PermClientUpdate,
	PermReviewSignOff,
}, editorPermissions...)

var adminPermissions = append([]string{
	PermClientDelete,
	PermUserManage,
}, managerPermissions...)

// rolePermissionDefaults is the builtin role table used when the credential
// store carries no override for a role. Unknown roles resolve to nothing.
var rolePermissionDefaults = map[string][]string{
	RoleAdmin:   adminPermissions,
	RoleManager: managerPermissions,
	RoleEditor:  editorPermissions,
	RoleViewer:  viewerPermissions,
}

// DefaultRolePermissions returns a copy of the builtin permission set for a
// role; nil for unknown roles.
func DefaultRolePermissions(role string) []string {
	defaults, ok := rolePermissionDefaults[role]
	if !ok {
		return nil
	}
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}
