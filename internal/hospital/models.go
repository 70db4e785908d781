package hospital

import (
	"time"

	id "lifeline/pkg/domain"
)

// Hospital is a registered requesting institution. IsActive gates request
// submission: deactivated hospitals keep their history but cannot submit.
type Hospital struct {
	ID            id.HospitalID
	Name          string
	Email         string
	PhoneNumber   string
	Address       string
	City          string
	State         string
	Country       string
	LicenseNumber string
	IsActive      bool
	CreatedAt     time.Time
}
