package domain

import "fmt"

// BloodGroup is the eight-valued ABO/Rh classification. It is a domain
// primitive that enforces validity at parse time.
type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

var bloodGroups = map[BloodGroup]struct{}{
	BloodGroupAPos: {}, BloodGroupANeg: {},
	BloodGroupBPos: {}, BloodGroupBNeg: {},
	BloodGroupABPos: {}, BloodGroupABNeg: {},
	BloodGroupOPos: {}, BloodGroupONeg: {},
}

// ParseBloodGroup validates and returns a BloodGroup.
func ParseBloodGroup(s string) (BloodGroup, error) {
	bg := BloodGroup(s)
	if _, ok := bloodGroups[bg]; !ok {
		return "", fmt.Errorf("unknown blood group: %q", s)
	}
	return bg, nil
}

func (g BloodGroup) String() string { return string(g) }

func (g BloodGroup) IsNil() bool { return g == "" }
