package rbac

// The evaluator decides whether an actor may perform a named action given
// role, permission and hierarchy facts supplied by callers. It performs no
// I/O and never errors: a missing fact always evaluates to a denial.

// HasPermission reports whether the granted set contains the named
// permission. Flat checks (creating a category, locking a thread) need
// nothing more than this.
func HasPermission(granted PermissionSet, name string) bool {
	return granted.Has(name)
}

// CanActOnHierarchy governs privileged actions that compare two users, such
// as banning. It holds only when the required permission is granted, both
// hierarchy levels are known, and the actor sits strictly above the target
// (lower level means higher privilege).
func CanActOnHierarchy(actorLevel, targetLevel *int32, required string, granted PermissionSet) bool {
	if !HasPermission(granted, required) {
		return false
	}
	if actorLevel == nil || targetLevel == nil {
		return false
	}
	return *actorLevel < *targetLevel
}

// IsRoleDeletable permits role deletion only when no user references the
// role. Users are never cascade-deleted.
func IsRoleDeletable(userCountForRole int64) bool {
	return userCountForRole == 0
}
