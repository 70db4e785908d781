package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lifeline/internal/donor"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

// InMemory keeps the donor pool in process memory. It favors clarity over
// performance and backs unit tests and local development.
type InMemory struct {
	mu     sync.RWMutex
	donors map[id.DonorID]donor.Donor
}

func NewInMemory() *InMemory {
	return &InMemory{donors: make(map[id.DonorID]donor.Donor)}
}

func (s *InMemory) Create(_ context.Context, d donor.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donors[d.ID]; ok {
		return sentinel.ErrConflict
	}
	s.donors[d.ID] = d
	return nil
}

func (s *InMemory) FindByID(_ context.Context, donorID id.DonorID) (donor.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.donors[donorID]; ok {
		return d, nil
	}
	return donor.Donor{}, sentinel.ErrNotFound
}

func (s *InMemory) Search(_ context.Context, filter Filter) ([]donor.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []donor.Donor
	for _, d := range s.donors {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	// Ascending donor id keeps national-tier truncation reproducible.
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func matches(d donor.Donor, f Filter) bool {
	if !f.BloodGroup.IsNil() && d.BloodGroup != f.BloodGroup {
		return false
	}
	if f.Verified != nil && d.IsVerified != *f.Verified {
		return false
	}
	if f.Available != nil && d.IsAvailable != *f.Available {
		return false
	}
	if f.City != "" && !strings.EqualFold(d.City, f.City) {
		return false
	}
	if f.State != "" && !strings.EqualFold(d.State, f.State) {
		return false
	}
	if f.ExcludeCity != "" && strings.EqualFold(d.City, f.ExcludeCity) {
		return false
	}
	if f.ExcludeState != "" && strings.EqualFold(d.State, f.ExcludeState) {
		return false
	}
	return true
}

func (s *InMemory) UpdateProfile(_ context.Context, donorID id.DonorID, update donor.ProfileUpdate, updatedAt time.Time) (donor.Donor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[donorID]
	if !ok {
		return donor.Donor{}, sentinel.ErrNotFound
	}
	if update.IsAvailable != nil {
		d.IsAvailable = *update.IsAvailable
	}
	if update.PhoneNumber != nil {
		d.PhoneNumber = *update.PhoneNumber
	}
	if update.EmergencyContact != nil {
		d.EmergencyContact = *update.EmergencyContact
	}
	if update.Address != nil {
		d.Address = *update.Address
	}
	if update.City != nil {
		d.City = *update.City
	}
	if update.State != nil {
		d.State = *update.State
	}
	d.UpdatedAt = updatedAt
	s.donors[donorID] = d
	return d, nil
}

func (s *InMemory) SetVerified(_ context.Context, donorID id.DonorID, verified bool, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[donorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.IsVerified = verified
	d.UpdatedAt = updatedAt
	s.donors[donorID] = d
	return nil
}

func (s *InMemory) RecordDonation(_ context.Context, donorID id.DonorID, on time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[donorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	donatedOn := on
	d.LastDonationDate = &donatedOn
	d.TotalDonations++
	d.UpdatedAt = on
	s.donors[donorID] = d
	return nil
}
