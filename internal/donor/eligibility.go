package donor

import (
	"fmt"
	"time"
)

// Eligibility thresholds. The three-month gap follows national blood bank
// guidance for whole-blood donation.
const (
	MinAge      = 18
	MaxAge      = 60
	MinWeightKg = 45.0

	donationGapMonths = 3
)

// Stable eligibility messages. These are part of the API surface: clients
// display them verbatim and tests pin them.
const (
	MsgEligible       = "Eligible to donate"
	MsgAgeOutOfRange  = "Age must be between 18 and 60 years"
	MsgUnderweight    = "Weight must be at least 45 kg"
	MsgChronicDisease = "Cannot donate due to chronic disease"
)

// CanDonate reports whether the donor may donate as of the given date. Rules
// run in order and the first failure wins. Pure: safe to call at selection
// time and again at response time, where eligibility may have drifted.
func CanDonate(d Donor, asOf time.Time) (bool, string) {
	if age := d.Age(asOf); age < MinAge || age > MaxAge {
		return false, MsgAgeOutOfRange
	}
	if d.WeightKg < MinWeightKg {
		return false, MsgUnderweight
	}
	if d.HasChronicDisease {
		return false, MsgChronicDisease
	}
	return canDonateBasedOnTime(d, asOf)
}

// canDonateBasedOnTime enforces the gap between donations. The boundary date
// itself is eligible.
func canDonateBasedOnTime(d Donor, asOf time.Time) (bool, string) {
	if d.LastDonationDate == nil {
		return true, MsgEligible
	}

	nextEligible := NextEligibleDate(*d.LastDonationDate)
	if asOf.Before(nextEligible) {
		daysRemaining := int(nextEligible.Sub(asOf).Hours() / 24)
		return false, fmt.Sprintf(
			"Must wait %d more days before next donation (3-month gap required)",
			daysRemaining,
		)
	}
	return true, MsgEligible
}

// NextEligibleDate returns the first date the donor may donate again.
func NextEligibleDate(lastDonation time.Time) time.Time {
	return lastDonation.AddDate(0, donationGapMonths, 0)
}
