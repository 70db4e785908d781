package store

import (
	"context"
	"sync"
	"time"

	"lifeline/internal/hospital"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

// InMemory keeps hospitals in process memory for tests and local development.
type InMemory struct {
	mu        sync.RWMutex
	hospitals map[id.HospitalID]hospital.Hospital
}

func NewInMemory() *InMemory {
	return &InMemory{hospitals: make(map[id.HospitalID]hospital.Hospital)}
}

func (s *InMemory) Create(_ context.Context, h hospital.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hospitals[h.ID]; ok {
		return sentinel.ErrConflict
	}
	// Mirrors the unique license constraint of the postgres schema.
	for _, existing := range s.hospitals {
		if existing.LicenseNumber == h.LicenseNumber {
			return sentinel.ErrConflict
		}
	}
	s.hospitals[h.ID] = h
	return nil
}

func (s *InMemory) FindByID(_ context.Context, hospitalID id.HospitalID) (hospital.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.hospitals[hospitalID]; ok {
		return h, nil
	}
	return hospital.Hospital{}, sentinel.ErrNotFound
}

func (s *InMemory) SetActive(_ context.Context, hospitalID id.HospitalID, active bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hospitals[hospitalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	h.IsActive = active
	s.hospitals[hospitalID] = h
	return nil
}
