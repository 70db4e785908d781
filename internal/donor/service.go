package donor

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

// Store is the donor pool port the service depends on. The concrete
// implementations live in internal/donor/store.
type Store interface {
	Create(ctx context.Context, d Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (Donor, error)
	UpdateProfile(ctx context.Context, donorID id.DonorID, update ProfileUpdate, updatedAt time.Time) (Donor, error)
}

// Directory is the read side used for the donor listing; it matches the
// store-level Search but is declared here so the service owns its own port.
type Directory interface {
	Search(ctx context.Context, filter SearchFilter) ([]Donor, error)
}

// SearchFilter mirrors the pool query contract: case-insensitive city/state,
// zero values unconstrained.
type SearchFilter struct {
	BloodGroup   id.BloodGroup
	Verified     *bool
	Available    *bool
	City         string
	State        string
	ExcludeCity  string
	ExcludeState string
}

// View decorates a donor with a live eligibility verdict, evaluated against
// the request clock.
type View struct {
	Donor              Donor
	CanDonateNow       bool
	EligibilityMessage string
}

// Service owns donor profile operations and the enriched directory.
type Service struct {
	store     Store
	directory Directory
	logger    *slog.Logger
}

func NewService(store Store, directory Directory, logger *slog.Logger) *Service {
	return &Service{store: store, directory: directory, logger: logger}
}

// NewDonor carries validated-at-the-edge registration input.
type NewDonor struct {
	UserID           id.UserID
	FullName         string
	DateOfBirth      time.Time
	Gender           Gender
	BloodGroup       string
	WeightKg         float64
	PhoneNumber      string
	EmergencyContact string
	Address          string
	City             string
	State            string
	Country          string
	Pincode          string

	HasChronicDisease     bool
	ChronicDiseaseDetails string
}

// Register creates an unverified donor profile. Verification is an
// administrative step outside this service.
func (s *Service) Register(ctx context.Context, input NewDonor) (Donor, error) {
	bloodGroup, err := id.ParseBloodGroup(input.BloodGroup)
	if err != nil {
		return Donor{}, dErrors.New(dErrors.CodeBadRequest, err.Error())
	}
	if strings.TrimSpace(input.FullName) == "" {
		return Donor{}, dErrors.New(dErrors.CodeBadRequest, "full name is required")
	}
	if input.DateOfBirth.IsZero() {
		return Donor{}, dErrors.New(dErrors.CodeBadRequest, "date of birth is required")
	}
	if input.WeightKg <= 0 {
		return Donor{}, dErrors.New(dErrors.CodeBadRequest, "weight must be positive")
	}
	if input.UserID.IsNil() {
		return Donor{}, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}

	now := requestcontext.Now(ctx)
	d := Donor{
		ID:                    id.NewDonorID(),
		UserID:                input.UserID,
		FullName:              input.FullName,
		DateOfBirth:           input.DateOfBirth,
		Gender:                input.Gender,
		BloodGroup:            bloodGroup,
		WeightKg:              input.WeightKg,
		PhoneNumber:           input.PhoneNumber,
		EmergencyContact:      input.EmergencyContact,
		Address:               input.Address,
		City:                  input.City,
		State:                 input.State,
		Country:               input.Country,
		Pincode:               input.Pincode,
		HasChronicDisease:     input.HasChronicDisease,
		ChronicDiseaseDetails: input.ChronicDiseaseDetails,
		IsAvailable:           true,
		IsVerified:            false,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Donor{}, dErrors.New(dErrors.CodeConflict, "donor profile already exists")
		}
		return Donor{}, dErrors.Wrap(dErrors.CodeInternal, "create donor", err)
	}
	return d, nil
}

// ListFilter narrows the donor directory. EligibleOnly applies the full
// eligibility evaluation after the pool query.
type ListFilter struct {
	BloodGroup   string
	City         string
	State        string
	EligibleOnly bool
}

// List returns verified, available donors enriched with eligibility verdicts.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]View, error) {
	search := SearchFilter{
		Verified:  boolPtr(true),
		Available: boolPtr(true),
		City:      filter.City,
		State:     filter.State,
	}
	if filter.BloodGroup != "" {
		bloodGroup, err := id.ParseBloodGroup(filter.BloodGroup)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, err.Error())
		}
		search.BloodGroup = bloodGroup
	}

	donors, err := s.directory.Search(ctx, search)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "search donors", err)
	}

	today := requestcontext.Today(ctx)
	views := make([]View, 0, len(donors))
	for _, d := range donors {
		ok, msg := CanDonate(d, today)
		if filter.EligibleOnly && !ok {
			continue
		}
		views = append(views, View{Donor: d, CanDonateNow: ok, EligibilityMessage: msg})
	}
	return views, nil
}

// Get returns one donor with a live eligibility verdict.
func (s *Service) Get(ctx context.Context, donorID id.DonorID) (View, error) {
	d, err := s.store.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return View{}, dErrors.New(dErrors.CodeNotFound, "donor not found").
				With("donor_id", donorID.String())
		}
		return View{}, dErrors.Wrap(dErrors.CodeInternal, "find donor", err)
	}
	ok, msg := CanDonate(d, requestcontext.Today(ctx))
	return View{Donor: d, CanDonateNow: ok, EligibilityMessage: msg}, nil
}

// UpdateProfile applies the donor-editable field subset.
func (s *Service) UpdateProfile(ctx context.Context, donorID id.DonorID, update ProfileUpdate) (Donor, error) {
	d, err := s.store.UpdateProfile(ctx, donorID, update, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Donor{}, dErrors.New(dErrors.CodeNotFound, "donor not found").
				With("donor_id", donorID.String())
		}
		return Donor{}, dErrors.Wrap(dErrors.CodeInternal, "update donor profile", err)
	}
	s.logger.InfoContext(ctx, "donor profile updated", "donor_id", donorID.String())
	return d, nil
}

func boolPtr(v bool) *bool { return &v }
