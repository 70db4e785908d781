package hospital

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// Registry is the hospital persistence port the service depends on.
type Registry interface {
	Create(ctx context.Context, h Hospital) error
	FindByID(ctx context.Context, hospitalID id.HospitalID) (Hospital, error)
	SetActive(ctx context.Context, hospitalID id.HospitalID, active bool, at time.Time) error
}

// Service owns hospital registration and activation, a blood bank manager
// surface.
type Service struct {
	registry Registry
	logger   *slog.Logger
}

func NewService(registry Registry, logger *slog.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// NewHospital carries registration input.
type NewHospital struct {
	Name          string
	Email         string
	PhoneNumber   string
	Address       string
	City          string
	State         string
	Country       string
	LicenseNumber string
}

// Register creates an active hospital. The license number is the uniqueness
// key.
func (s *Service) Register(ctx context.Context, input NewHospital) (Hospital, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Hospital{}, dErrors.New(dErrors.CodeBadRequest, "hospital name is required")
	}
	if strings.TrimSpace(input.LicenseNumber) == "" {
		return Hospital{}, dErrors.New(dErrors.CodeBadRequest, "license number is required")
	}
	if strings.TrimSpace(input.City) == "" {
		return Hospital{}, dErrors.New(dErrors.CodeBadRequest, "city is required")
	}

	h := Hospital{
		ID:            id.NewHospitalID(),
		Name:          input.Name,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
		Address:       input.Address,
		City:          input.City,
		State:         input.State,
		Country:       input.Country,
		LicenseNumber: input.LicenseNumber,
		IsActive:      true,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.registry.Create(ctx, h); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Hospital{}, dErrors.New(dErrors.CodeConflict, "a hospital with this license number already exists")
		}
		return Hospital{}, dErrors.Wrap(dErrors.CodeInternal, "create hospital", err)
	}
	s.logger.InfoContext(ctx, "hospital registered",
		"hospital_id", h.ID.String(), "city", h.City)
	return h, nil
}

// Get returns one hospital.
func (s *Service) Get(ctx context.Context, hospitalID id.HospitalID) (Hospital, error) {
	h, err := s.registry.FindByID(ctx, hospitalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Hospital{}, dErrors.New(dErrors.CodeNotFound, "hospital not found").
				With("hospital_id", hospitalID.String())
		}
		return Hospital{}, dErrors.Wrap(dErrors.CodeInternal, "find hospital", err)
	}
	return h, nil
}

// SetActive flips the submission gate. Deactivated hospitals keep their
// history but cannot submit new requests.
func (s *Service) SetActive(ctx context.Context, hospitalID id.HospitalID, active bool) (Hospital, error) {
	if err := s.registry.SetActive(ctx, hospitalID, active, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Hospital{}, dErrors.New(dErrors.CodeNotFound, "hospital not found").
				With("hospital_id", hospitalID.String())
		}
		return Hospital{}, dErrors.Wrap(dErrors.CodeInternal, "set hospital active", err)
	}
	s.logger.InfoContext(ctx, "hospital activation changed",
		"hospital_id", hospitalID.String(), "active", active)
	return s.Get(ctx, hospitalID)
}
