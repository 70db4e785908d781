package domain

import "fmt"

// Role is the acting principal's role. Authorization happens at the transport
// layer; services trust the role the caller was admitted with.
type Role string

const (
	RoleDonor            Role = "donor"
	RoleHospitalStaff    Role = "hospital_staff"
	RoleBloodBankManager Role = "blood_bank_manager"
)

var roles = map[Role]struct{}{
	RoleDonor:            {},
	RoleHospitalStaff:    {},
	RoleBloodBankManager: {},
}

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
