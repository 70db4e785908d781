// Package store provides donor pool persistence. Implementations must return
// Search results in ascending donor-id order so tiered selection is
// reproducible.
package store

import (
	"context"
	"time"

	"lifeline/internal/donor"
	id "lifeline/pkg/domain"
)

// Filter aliases the service-level search contract so call sites read the
// same either way.
type Filter = donor.SearchFilter

// Store is the donor pool port. RecordDonation is the single write path for
// donation history: it must set last_donation_date and bump total_donations
// by exactly one as an atomic unit.
type Store interface {
	Create(ctx context.Context, d donor.Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (donor.Donor, error)
	Search(ctx context.Context, filter Filter) ([]donor.Donor, error)
	UpdateProfile(ctx context.Context, donorID id.DonorID, update donor.ProfileUpdate, updatedAt time.Time) (donor.Donor, error)
	SetVerified(ctx context.Context, donorID id.DonorID, verified bool, updatedAt time.Time) error
	RecordDonation(ctx context.Context, donorID id.DonorID, on time.Time) error
}

// BoolPtr is a convenience for building filters.
func BoolPtr(v bool) *bool { return &v }
