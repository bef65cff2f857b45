package rbac

// Permission names understood by the authorization layer. The catalog is
// closed: rows in the permissions table are seeded from this list and the
// evaluator only ever sees these names.
const (
	PermAccessAdminPanel = "access_admin_panel"

	PermAssignRoles           = "assign_roles"
	PermBanUserLowerRole      = "ban_user_lower_role"
	PermModifyRoles           = "modify_roles"
	PermModifyRolePermissions = "modify_role_permissions"

	PermCreateCategory = "create_category"
	PermModifyCategory = "modify_category"
	PermDeleteCategory = "delete_category"

	PermLockThread   = "lock_thread"
	PermPinThread    = "pin_thread"
	PermDeleteThread = "delete_thread"
)

// AllPermissions lists every permission in the catalog, paired with the
// description stored alongside it.
func AllPermissions() []Permission {
	return []Permission{
		{Name: PermAccessAdminPanel, Description: "Open the admin panel"},
		{Name: PermAssignRoles, Description: "Assign a role to a user"},
		{Name: PermBanUserLowerRole, Description: "Ban or unban a user with a lower role"},
		{Name: PermModifyRoles, Description: "Create, edit and delete roles"},
		{Name: PermModifyRolePermissions, Description: "Edit the permissions granted to roles"},
		{Name: PermCreateCategory, Description: "Create a board category"},
		{Name: PermModifyCategory, Description: "Edit a board category"},
		{Name: PermDeleteCategory, Description: "Delete a board category"},
		{Name: PermLockThread, Description: "Lock or unlock a thread"},
		{Name: PermPinThread, Description: "Pin or unpin a thread"},
		{Name: PermDeleteThread, Description: "Delete any thread"},
	}
}
