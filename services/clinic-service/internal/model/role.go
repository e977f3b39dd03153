package model

import (
	"fmt"
	"strconv"
)

// Role is the numeric role code issued by the identity provider.
type Role int

const (
	RoleSuperAdmin  Role = 1
	RolePatient     Role = 2
	RoleDentist     Role = 3
	RoleClinicAdmin Role = 4
)

func ParseRole(s string) (Role, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid role %q", s)
	}
	r := Role(n)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown role %d", n)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r >= RoleSuperAdmin && r <= RoleClinicAdmin
}

func (r Role) IsPatient() bool { return r == RolePatient }

// IsStaff covers everyone who works at the clinic.
func (r Role) IsStaff() bool {
	return r == RoleSuperAdmin || r == RoleDentist || r == RoleClinicAdmin
}

func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleClinicAdmin
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID    string
	Role      Role
	PatientID int64
	DentistID int64
}

// SystemActor is the actor used by background sweeps. It carries the patient role so
// automatic cancellations are attributed the same way as patient ones.
func SystemActor() Actor {
	return Actor{UserID: "system", Role: RolePatient}
}
