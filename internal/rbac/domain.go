package rbac

import "strings"

// Permission is an opaque capability tag carried on tokens.
type Permission string

// PermissionClaim is the token claim holding permission values.
const PermissionClaim = "Permissions"

// Known permissions. PermAll is the wildcard and satisfies every check.
const (
	PermAll           Permission = "perm:All"
	PermRegister      Permission = "perm:Register"
	PermReadData      Permission = "perm:ReadData"
	PermWriteData     Permission = "perm:WriteData"
	PermGenerateToken Permission = "perm:GenerateToken"
)

// RoleAdmin gates privileged token issuance.
const RoleAdmin = "Administrators"

var availablePermissions = []Permission{PermAll, PermRegister, PermReadData, PermWriteData, PermGenerateToken}

var availableRoles = []string{RoleAdmin}

// AvailablePermissions lists every permission in declaration order.
func AvailablePermissions() []Permission {
	out := make([]Permission, len(availablePermissions))
	copy(out, availablePermissions)
	return out
}

// AvailableRoles lists the roles seeded at startup.
func AvailableRoles() []string {
	out := make([]string, len(availableRoles))
	copy(out, availableRoles)
	return out
}

// Privileged reports whether p can only be obtained through a privileged path.
func (p Permission) Privileged() bool {
	switch p {
	case PermAll, PermRegister, PermGenerateToken:
		return true
	}
	return false
}

// String returns the wire value.
func (p Permission) String() string {
	return string(p)
}

// DefaultPermissions is every non-privileged permission. User tokens carry
// exactly this set.
func DefaultPermissions() []Permission {
	out := make([]Permission, 0, len(availablePermissions))
	for _, p := range availablePermissions {
		if !p.Privileged() {
			out = append(out, p)
		}
	}
	return out
}

// ParsePermission maps a wire value onto the closed enumeration.
func ParsePermission(raw string) (Permission, bool) {
	raw = strings.TrimSpace(raw)
	for _, p := range availablePermissions {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// Strings converts permissions to their wire values.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
