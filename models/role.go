package models

// Permission is a bit flag set of dashboard capabilities.
type Permission int64

const (
	PermManageContent      Permission = 1 << iota // 1
	PermManageTheme                               // 2
	PermManageCatalog                             // 4
	PermManageFAQs                                // 8
	PermManageOrders                              // 16
	PermManageIntegrations                        // 32
	PermManageSettings                            // 64
	PermManageUsers                               // 128
	PermAdmin                                     // 256
)

// PermAll is every known bit (511).
const PermAll Permission = (1 << 9) - 1

// Has reports whether perm is granted. PermAdmin grants everything.
func (p Permission) Has(perm Permission) bool {
	if p&PermAdmin != 0 {
		return true
	}
	return p&perm == perm
}

// UserRole is the coarse role stored on a user. Extra bits can be granted on
// top of the role defaults through the users admin.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleEditor UserRole = "editor"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

// DefaultPermissions returns the bits a role carries implicitly.
func (r UserRole) DefaultPermissions() Permission {
	switch r {
	case RoleAdmin:
		return PermAll
	case RoleEditor:
		return PermManageContent | PermManageTheme | PermManageCatalog | PermManageFAQs
	default:
		return 0
	}
}
