package rbac

// Role names. Keep these stable; they are stored on user profiles.
const (
	RoleSuperAdmin   = "super_admin"
	RoleTenantAdmin  = "tenant_admin"
	RoleProjectAdmin = "project_admin"
	RoleEditor       = "editor"
	RoleViewer       = "viewer"
	RoleGuest        = "guest"
)

// Permission is a "<resource>:<action>" capability string.
type Permission string

const (
	PermSystemAdmin Permission = "system:admin"
	PermSystemRead  Permission = "system:read"

	PermTenantCreate Permission = "tenant:create"
	PermTenantUpdate Permission = "tenant:update"
	PermTenantDelete Permission = "tenant:delete"
	PermTenantRead   Permission = "tenant:read"

	PermUserCreate Permission = "user:create"
	PermUserUpdate Permission = "user:update"
	PermUserDelete Permission = "user:delete"
	PermUserRead   Permission = "user:read"

	PermProjectCreate Permission = "project:create"
	PermProjectUpdate Permission = "project:update"
	PermProjectDelete Permission = "project:delete"
	PermProjectRead   Permission = "project:read"

	PermNodeCreate Permission = "node:create"
	PermNodeUpdate Permission = "node:update"
	PermNodeDelete Permission = "node:delete"
	PermNodeRead   Permission = "node:read"

	PermBlockCreate Permission = "block:create"
	PermBlockUpdate Permission = "block:update"
	PermBlockDelete Permission = "block:delete"
	PermBlockRead   Permission = "block:read"

	PermThemeCreate Permission = "theme:create"
	PermThemeUpdate Permission = "theme:update"
	PermThemeDelete Permission = "theme:delete"
	PermThemeRead   Permission = "theme:read"
)

var contentPerms = []Permission{
	PermNodeCreate, PermNodeUpdate, PermNodeDelete, PermNodeRead,
	PermBlockCreate, PermBlockUpdate, PermBlockDelete, PermBlockRead,
	PermThemeCreate, PermThemeUpdate, PermThemeDelete, PermThemeRead,
}

var rolePermissions = map[string][]Permission{
	RoleSuperAdmin: append([]Permission{
		PermSystemAdmin, PermSystemRead,
		PermTenantCreate, PermTenantUpdate, PermTenantDelete, PermTenantRead,
		PermUserCreate, PermUserUpdate, PermUserDelete, PermUserRead,
		PermProjectCreate, PermProjectUpdate, PermProjectDelete, PermProjectRead,
	}, contentPerms...),
	RoleTenantAdmin: append([]Permission{
		PermTenantRead,
		PermUserCreate, PermUserUpdate, PermUserDelete, PermUserRead,
		PermProjectCreate, PermProjectUpdate, PermProjectDelete, PermProjectRead,
	}, contentPerms...),
	RoleProjectAdmin: append([]Permission{
		PermProjectRead,
	}, contentPerms...),
	RoleEditor: {
		PermProjectRead,
		PermNodeCreate, PermNodeUpdate, PermNodeDelete, PermNodeRead,
		PermBlockCreate, PermBlockUpdate, PermBlockDelete, PermBlockRead,
		PermThemeCreate, PermThemeUpdate, PermThemeRead,
	},
	RoleViewer: {
		PermProjectRead,
		PermNodeRead, PermBlockRead, PermThemeRead,
	},
	RoleGuest: {
		PermBlockRead, PermThemeRead,
	},
}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// PermissionsFor returns the capability set for a role. Unknown or empty
// roles fall back to the viewer set.
func PermissionsFor(role string) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return rolePermissions[RoleViewer]
	}
	return perms
}

func HasPermission(role string, p Permission) bool {
	for _, have := range PermissionsFor(role) {
		if have == p {
			return true
		}
	}
	return false
}

// CanTouchResource reports whether role may act on a resource owned by
// ownerID. Owners always may; anyone else needs the permission or the
// system-admin capability.
func CanTouchResource(role, userID, ownerID string, p Permission) bool {
	if userID != "" && userID == ownerID {
		return true
	}
	if HasPermission(role, PermSystemAdmin) {
		return true
	}
	return HasPermission(role, p)
}
