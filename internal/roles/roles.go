package roles

// Role names. Keep these stable; they are part of the token contract.
const (
	RoleSuperAdmin = "super_admin"
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleWorker     = "worker"
	RoleCustomer   = "customer"
)

// Hierarchy orders roles from most to least privileged. This is static
// configuration, never derived from data; index 0 is the most privileged.
var Hierarchy = []string{
	RoleSuperAdmin,
	RoleOwner,
	RoleManager,
	RoleWorker,
	RoleCustomer,
}

// rank returns a role's position in the hierarchy. Unknown roles have no
// rank and grant nothing.
func rank(role string) (int, bool) {
	for i, r := range Hierarchy {
		if r == role {
			return i, true
		}
	}
	return 0, false
}

// HasMinRole reports whether the most privileged held role is at least as
// privileged as minRole. Unknown held roles are ignored; a held set with no
// recognized role is never privileged enough. An empty or unknown minRole
// denies. Pure function, no side effects.
func HasMinRole(held []string, minRole string) bool {
	min, ok := rank(minRole)
	if !ok {
		return false
	}

	best := -1
	for _, r := range held {
		if i, ok := rank(r); ok && (best == -1 || i < best) {
			best = i
		}
	}
	return best != -1 && best <= min
}
