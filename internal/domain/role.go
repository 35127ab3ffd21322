package domain

import "fmt"

// Role is the closed set of account tiers in a household.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole converts a string into a Role, rejecting anything outside the
// two known tiers.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// IsAdmin reports whether the role carries administrative capability.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanRevokeDevice reports whether a caller with this role may revoke a
// device owned by ownerID. Owners may always revoke their own devices;
// admins may revoke anyone's.
func (r Role) CanRevokeDevice(callerID, ownerID string) bool {
	return callerID == ownerID || r.IsAdmin()
}

func (r Role) String() string {
	return string(r)
}
