package donor

import (
	"time"

	id "lifeline/pkg/domain"
)

// Gender of the donor as self-reported.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Donor is a registered donor profile. Verification and availability are
// toggles the pool query filters on; health and history fields feed the
// eligibility evaluator.
type Donor struct {
	ID          id.DonorID
	UserID      id.UserID
	FullName    string
	DateOfBirth time.Time
	Gender      Gender
	BloodGroup  id.BloodGroup
	WeightKg    float64
	HeightCm    *float64

	PhoneNumber      string
	EmergencyContact string
	Address          string
	City             string
	State            string
	Country          string
	Pincode          string

	HasChronicDisease     bool
	ChronicDiseaseDetails string

	// LastDonationDate only advances through a completed donation.
	LastDonationDate *time.Time
	TotalDonations   int

	IsAvailable bool
	IsVerified  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Age computes full years between the donor's birth date and asOf.
func (d Donor) Age(asOf time.Time) int {
	years := asOf.Year() - d.DateOfBirth.Year()
	// Birthday not reached yet this year.
	if asOf.Month() < d.DateOfBirth.Month() ||
		(asOf.Month() == d.DateOfBirth.Month() && asOf.Day() < d.DateOfBirth.Day()) {
		years--
	}
	return years
}

// ProfileUpdate carries the donor-editable subset of profile fields. Nil
// pointers leave the stored value untouched.
type ProfileUpdate struct {
	IsAvailable      *bool
	PhoneNumber      *string
	EmergencyContact *string
	Address          *string
	City             *string
	State            *string
}
