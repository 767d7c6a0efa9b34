package enums

// Role is the actor role resolved from the bearer token.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleFarmer Role = "farmer"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

var validRoles = []Role{
	RoleBuyer,
	RoleFarmer,
	RoleAdmin,
	RoleSystem,
}

func (v Role) String() string { return string(v) }

func (v Role) IsValid() bool { return member(validRoles, v) }

func ParseRole(value string) (Role, error) {
	return parse("role", validRoles, value)
}
