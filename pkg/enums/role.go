package enums

import "fmt"

// Role is the shop role carried in access tokens.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleFrontDesk  Role = "front_desk"
)

var validRoles = []Role{
	RoleAdmin,
	RoleManager,
	RoleTechnician,
	RoleFrontDesk,
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageBilling reports whether the role may create or settle invoices.
func (r Role) CanManageBilling() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleFrontDesk
}

// CanManageInventory reports whether the role may create or restock items.
func (r Role) CanManageInventory() bool {
	return r == RoleAdmin || r == RoleManager
}

func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
