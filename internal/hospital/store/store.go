package store

import (
	"context"
	"time"

	"lifeline/internal/hospital"
	id "lifeline/pkg/domain"
)

// Store is the hospital registry port.
type Store interface {
	Create(ctx context.Context, h hospital.Hospital) error
	FindByID(ctx context.Context, hospitalID id.HospitalID) (hospital.Hospital, error)
	SetActive(ctx context.Context, hospitalID id.HospitalID, active bool, at time.Time) error
}
