package access

// UserRole is the user's role
type UserRole string

const (
	// RoleMember is the default role (i.e. view)
	RoleMember UserRole = "member"
	// RoleDoctor is a medical staff role (i.e. view, post)
	RoleDoctor UserRole = "doctor"
	// RoleAdmin is an admin role (i.e. view, post, approve)
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleMember, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role carries admin privileges
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// DefaultPostingAccess returns the hasPostingAccess flag seeded at
// registration. Doctors and admins post events without requesting access.
func (r UserRole) DefaultPostingAccess() bool {
	switch r {
	case RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleMember: 0,
		RoleDoctor: 1,
		RoleAdmin:  2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleMember,
		RoleDoctor,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
