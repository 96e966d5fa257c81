package auth

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleVisitor, RoleAppliedAlumni, RoleRegisteredAlumni, RoleAdmin:
		return true
	default:
		return false
	}
}

// roleHierarchy orders roles by privilege; unknown roles rank below visitor.
var roleHierarchy = map[UserRole]int{
	RoleVisitor:          0,
	RoleAppliedAlumni:    1,
	RoleRegisteredAlumni: 2,
	RoleAdmin:            3,
}

// RoleAtLeast checks if role meets the minimum required level
func RoleAtLeast(role, minRole UserRole) bool {
	currentLevel, ok := roleHierarchy[role]
	if !ok {
		return false
	}

	minLevel, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleVisitor,
		RoleAppliedAlumni,
		RoleRegisteredAlumni,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// RoleSet is the set of roles a protected operation allows. Each operation
// declares its own set explicitly; there is no implicit ordering.
type RoleSet map[UserRole]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...UserRole) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether role is in the set.
func (s RoleSet) Contains(role UserRole) bool {
	_, ok := s[role]
	return ok
}

// Roles returns the members in hierarchical order, for error metadata.
func (s RoleSet) Roles() []UserRole {
	out := make([]UserRole, 0, len(s))
	for _, r := range GetAllRoles() {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// AdminOnly gates administrative mutations.
func AdminOnly() RoleSet {
	return NewRoleSet(RoleAdmin)
}

// RegisteredOrApplied gates alumni self-service operations. Admins pass too,
// same as the original access rules.
func RegisteredOrApplied() RoleSet {
	return NewRoleSet(RoleAdmin, RoleRegisteredAlumni, RoleAppliedAlumni)
}
